package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/esat-hub/skills-hub/config"
	"github.com/esat-hub/skills-hub/pkg/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "skillshub",
		Short:         "Skill progression and validation service",
		Long:          "skillshub tracks the skills users are working on, lets administrators validate them and derives each user's avatar level.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringSlice("env-file", []string{".env"}, "dotenv files to load before reading the environment")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

// flagOverride maps a command-line flag onto the environment key it replaces.
type flagOverride struct {
	flag string
	key  string
}

var commonOverrides = []flagOverride{
	{flag: "log-level", key: "LOG_LEVEL"},
}

// loadConfig reads .env files and the environment, then applies the flags the
// user actually set on top.
func loadConfig(cmd *cobra.Command, extra []flagOverride, forced map[string]any) (*config.Config, error) {
	envFiles, err := cmd.Flags().GetStringSlice("env-file")
	if err != nil {
		return nil, err
	}

	overrides := make(map[string]any, len(forced))
	for _, o := range append(commonOverrides, extra...) {
		f := cmd.Flags().Lookup(o.flag)
		if f == nil || !f.Changed {
			continue
		}
		overrides[o.key] = f.Value.String()
	}
	for k, v := range forced {
		overrides[k] = v
	}

	return config.LoadWithOptions(config.Options{EnvFiles: envFiles, Overrides: overrides})
}

func newLogger(cfg *config.Config) *logger.Logger {
	format := logger.FormatJSON
	if cfg.Observability.LogFormat == string(logger.FormatText) {
		format = logger.FormatText
	}

	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug && level > logger.LevelDebug {
		level = logger.LevelDebug
	}

	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     level,
		Format:    format,
		AddCaller: cfg.App.Debug,
	}).With(
		logger.String("service", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
}
