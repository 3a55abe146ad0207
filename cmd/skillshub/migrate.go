package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/esat-hub/skills-hub/config"
	"github.com/esat-hub/skills-hub/internal/infrastructure/persistence/postgres"
	"github.com/esat-hub/skills-hub/pkg/logger"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(conn *postgres.Connection, m *postgres.Migrator, log *logger.Logger) error {
				applied, err := m.Up(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)

				seed, _ := cmd.Flags().GetBool("seed")
				if !seed {
					return nil
				}
				res, err := postgres.Seed(cmd.Context(), conn)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d skill(s) and %d user(s)\n", res.Skills, res.Users)
				return nil
			})
		},
	}
	up.Flags().Bool("seed", false, "load the demo catalog and accounts after migrating")

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(_ *postgres.Connection, m *postgres.Migrator, _ *logger.Logger) error {
				if err := m.Down(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "rolled back 1 migration")
				return nil
			})
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show which migrations are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(_ *postgres.Connection, m *postgres.Migrator, _ *logger.Logger) error {
				statuses, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED AT")
				for _, s := range statuses {
					at := "pending"
					if s.Applied {
						at = s.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Version, s.Name, at)
				}
				return tw.Flush()
			})
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

// withMigrator connects to Postgres regardless of STORAGE_DRIVER and hands a
// migrator to fn.
func withMigrator(cmd *cobra.Command, fn func(*postgres.Connection, *postgres.Migrator, *logger.Logger) error) error {
	cfg, err := loadConfig(cmd, nil, map[string]any{"STORAGE_DRIVER": config.StoragePostgres})
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	conn, err := connectPostgres(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	m, err := postgres.NewMigrator(conn)
	if err != nil {
		return err
	}
	defer m.Close()

	return fn(conn, m, log)
}
