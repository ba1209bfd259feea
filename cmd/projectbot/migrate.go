package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	coredatabase "github.com/m3rciful/projectbot/core/database"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres session schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, done, err := databaseConfig(cmd)
				if err != nil {
					return err
				}
				defer done()
				return coredatabase.RunMigrations(cmd.Context(), db)
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations (one step by default)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n <= 0 {
						return fmt.Errorf("steps must be a positive number, got %q", args[0])
					}
					steps = n
				}
				db, done, err := databaseConfig(cmd)
				if err != nil {
					return err
				}
				defer done()
				return coredatabase.RollbackMigrations(cmd.Context(), db, steps)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, done, err := databaseConfig(cmd)
				if err != nil {
					return err
				}
				defer done()
				ver, dirty, err := coredatabase.MigrationVersion(cmd.Context(), db)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d dirty=%t\n", ver, dirty)
				return nil
			},
		},
	)
	return cmd
}

func databaseConfig(cmd *cobra.Command) (coredatabase.Config, func(), error) {
	cfg, done, err := loadConfig(cmd)
	if err != nil {
		return coredatabase.Config{}, nil, err
	}
	if cfg.Database.Host == "" {
		done()
		return coredatabase.Config{}, nil, errors.New("database.host is not configured")
	}
	return cfg.Database, done, nil
}
