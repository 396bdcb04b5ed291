package main

import (
	"fmt"

	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
)

func migrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply or roll back the database schema",
	}

	cmd.AddCommand(migrateDirCmd(a, "up", migrate.Up, "Applied"))
	cmd.AddCommand(migrateDirCmd(a, "down", migrate.Down, "Rolled back"))

	return cmd
}

func migrateDirCmd(a *app, use string, dir migrate.MigrationDirection, verb string) *cobra.Command {
	return &cobra.Command{
		Use:  use,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := dbpkg.Migrate(a.db, a.config.DBDriver, dir)
			if err != nil {
				return fmt.Errorf("migrate %s: %w", use, err)
			}

			a.logger.Info().Int("migrations", n).Msgf("migrate %s", use)
			okColor.Fprintf(cmd.OutOrStdout(), "%s %d migrations\n", verb, n)

			return nil
		},
	}
}
