package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Project-Sylos/IndexTree/internal/api"
	"github.com/Project-Sylos/IndexTree/internal/types"
	"github.com/Project-Sylos/IndexTree/sdk"
)

const shutdownGrace = 30 * time.Second

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.API.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.API.Port = port
			}
			return Serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides config)")
	return cmd
}

// Serve runs the API until SIGINT or SIGTERM
func Serve(ctx context.Context, cfg *types.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := sdk.NewWithConfig(ctx, *cfg)
	if err != nil {
		return err
	}

	server, err := api.NewServer(client, &cfg.API)
	if err != nil {
		client.Close()
		return err
	}
	return server.Run(ctx, shutdownGrace)
}
