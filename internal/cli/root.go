// Package cli implements the indextree command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Project-Sylos/IndexTree/internal/config"
	"github.com/Project-Sylos/IndexTree/internal/types"
	"github.com/Project-Sylos/IndexTree/sdk"
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	configPath string
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "indextree",
		Short:         "Fetch, cache and merge indicator hierarchies from the statistics API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Configuration file (JSON or YAML)")

	root.AddCommand(
		newServeCmd(g),
		newBuildCmd(g),
		newPresentCmd(g),
		newLookupCmd(g),
		newTreeCmd(g),
		newDemoCmd(g),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers the config file, .env files and the environment
func (g *globalFlags) loadConfig() (*types.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// openClient loads the configuration and opens the cache store
func (g *globalFlags) openClient(ctx context.Context) (*sdk.Client, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return sdk.NewWithConfig(ctx, *cfg)
}

// contextFlags binds the query context of the tree commands
func contextFlags(cmd *cobra.Command, qc *sdk.QueryContext) {
	f := cmd.Flags()
	f.IntVar(&qc.MeasureID, "measure-id", 1, "Measure id (p_measure_id)")
	f.IntVar(&qc.IndexID, "index-id", 0, "Indicator id (p_index_id)")
	f.IntVar(&qc.PeriodID, "period-id", 0, "Period kind id (p_period_id)")
	f.StringVar(&qc.Terms, "terms", "", "Comma-separated term ids (p_terms)")
	f.IntVar(&qc.TermID, "term-id", 0, "Term id (p_term_id)")
	f.StringVar(&qc.DicIDs, "dic-ids", "", "Comma-separated dictionary ids (p_dicIds)")
	f.IntVar(&qc.Idx, "idx", 0, "Index slot (idx)")
	cmd.MarkFlagRequired("index-id")
	cmd.MarkFlagRequired("period-id")
	cmd.MarkFlagRequired("terms")
	cmd.MarkFlagRequired("term-id")
	cmd.MarkFlagRequired("dic-ids")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describeError appends the mapped status to a service error
func describeError(err error) error {
	return fmt.Errorf("%s (status %d)", sdk.ErrorMessage(err), sdk.StatusCode(err))
}
