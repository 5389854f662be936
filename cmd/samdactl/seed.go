package main

import (
	"context"

	"github.com/smallbiznis/samda/internal/migration"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create document counters and the default tax profile",
	Long: `Ensure one counter exists per document category with the configured
prefix, and create the default tax profile from billing.yml when missing.

Existing counters keep their next number. Running seed twice is harmless.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		migrate, _ := cmd.Flags().GetBool("migrate")
		return withApp(cmd.Context(), func(ctx context.Context, d deps) error {
			if migrate {
				if err := migration.Apply(d.DB, d.DBCfg); err != nil {
					return err
				}
			}
			if err := d.Seeder.Run(ctx); err != nil {
				return err
			}
			d.Log.Info("seed complete")
			return nil
		})
	},
}

func init() {
	seedCmd.Flags().Bool("migrate", false, "Apply migrations before seeding")
}
