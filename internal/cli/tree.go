package cli

import (
	"github.com/spf13/cobra"

	"github.com/Project-Sylos/IndexTree/sdk"
)

func newBuildCmd(g *globalFlags) *cobra.Command {
	var qc sdk.QueryContext
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Walk a context upstream and cache every node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			result, err := client.BuildAndCache(cmd.Context(), qc)
			if err != nil {
				return describeError(err)
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	contextFlags(cmd, &qc)
	return cmd
}

func newPresentCmd(g *globalFlags) *cobra.Command {
	var qc sdk.QueryContext
	cmd := &cobra.Command{
		Use:   "present",
		Short: "Walk a context and print it merged with its periods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			records, err := client.BuildAndPresent(cmd.Context(), qc)
			if err != nil {
				return describeError(err)
			}
			return printJSON(cmd.OutOrStdout(), records)
		},
	}
	contextFlags(cmd, &qc)
	return cmd
}

func newLookupCmd(g *globalFlags) *cobra.Command {
	var (
		qc     sdk.QueryContext
		parent string
	)
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Print the cached root of a context, or the children of --parent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			result, err := client.LookupCached(cmd.Context(), qc, parent)
			if err != nil {
				return describeError(err)
			}
			if result.Node != nil {
				return printJSON(cmd.OutOrStdout(), result.Node)
			}
			return printJSON(cmd.OutOrStdout(), result.Nodes)
		},
	}
	contextFlags(cmd, &qc)
	cmd.Flags().StringVar(&parent, "parent", "", "Parent id (p_parent_id); empty selects the root")
	return cmd
}

func newTreeCmd(g *globalFlags) *cobra.Command {
	var qc sdk.QueryContext
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the cached context as a nested tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			roots, err := client.CachedTree(cmd.Context(), qc)
			if err != nil {
				return describeError(err)
			}
			return printJSON(cmd.OutOrStdout(), roots)
		},
	}
	contextFlags(cmd, &qc)
	return cmd
}
