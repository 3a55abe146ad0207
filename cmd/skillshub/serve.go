package main

import (
	"github.com/spf13/cobra"

	"github.com/esat-hub/skills-hub/pkg/logger"
)

var serveOverrides = []flagOverride{
	{flag: "storage", key: "STORAGE_DRIVER"},
	{flag: "addr", key: "HTTP_ADDR"},
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API",
		Long: `Run the REST API until SIGINT or SIGTERM.

With --storage memory the server starts with the demo catalog and accounts and
needs neither Postgres nor Redis.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, serveOverrides, nil)
			if err != nil {
				return err
			}

			log := newLogger(cfg)
			log.Info("starting skills hub",
				logger.String("version", version),
				logger.Bool("debug", cfg.App.Debug),
			)

			a, err := buildApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			return a.run(cmd.Context())
		},
	}

	cmd.Flags().String("storage", "", "storage backend: postgres or memory (overrides STORAGE_DRIVER)")
	cmd.Flags().String("addr", "", "listen address (overrides HTTP_ADDR)")

	return cmd
}
