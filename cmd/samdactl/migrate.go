package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/samda/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errVersionedOnly = errors.New("versioned migrations are only kept for postgres")

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Bring the schema up to date",
	Long: `Apply pending migrations.

Postgres runs the embedded versioned SQL files. SQLite and MySQL are built
from the models.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, d deps) error {
			if err := migration.Apply(d.DB, d.DBCfg); err != nil {
				return err
			}
			d.Log.Info("schema up to date", zap.String("db_type", d.DBCfg.Type))
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert applied migrations",
	Example: `  # Revert the latest migration
  samdactl migrate down

  # Revert three migrations
  samdactl migrate down --steps 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, _ := cmd.Flags().GetInt("steps")
		return withApp(cmd.Context(), func(ctx context.Context, d deps) error {
			if d.DBCfg.Type != "postgres" {
				return errVersionedOnly
			}
			sqlDB, err := d.DB.DB()
			if err != nil {
				return err
			}
			if err := migration.Rollback(sqlDB, steps); err != nil {
				return err
			}
			d.Log.Info("migrations reverted", zap.Int("steps", steps))
			return nil
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, d deps) error {
			if d.DBCfg.Type != "postgres" {
				return errVersionedOnly
			}
			sqlDB, err := d.DB.DB()
			if err != nil {
				return err
			}
			version, dirty, err := migration.Version(sqlDB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", version, dirty)
			return nil
		})
	},
}

func init() {
	migrateDownCmd.Flags().Int("steps", 1, "Number of migrations to revert")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
}
