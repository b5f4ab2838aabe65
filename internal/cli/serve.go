package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/agentoven/boardroom/pkg/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the boardroom server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			server.SetupLogging(cfg.Log, cmd.ErrOrStderr())
			log.Info().Str("version", cfg.Version).Msg("🏛️ Boardroom starting...")

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, err := server.New(ctx, cfg)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")

	return cmd
}
