package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/samda/internal/audit"
	"github.com/smallbiznis/samda/internal/clock"
	"github.com/smallbiznis/samda/internal/config"
	"github.com/smallbiznis/samda/internal/observability"
	"github.com/smallbiznis/samda/internal/seed"
	"github.com/smallbiznis/samda/internal/sequence"
	"github.com/smallbiznis/samda/internal/tax"
	"github.com/smallbiznis/samda/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "samdactl",
	Short: "Operator commands for the SAMDA billing ledger",
	Long: `samdactl manages the SAMDA database outside the HTTP server.

Configuration is read from the same environment variables and .env file
as the server (DB_TYPE, DB_HOST, DB_PATH, BILLING_CONFIG_PATH, ...).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

type deps struct {
	fx.In

	DB     *gorm.DB
	DBCfg  db.Config
	Log    *zap.Logger
	Seeder *seed.Seeder
}

// withApp starts a trimmed application graph without the HTTP server and
// hands its dependencies to fn.
func withApp(ctx context.Context, fn func(ctx context.Context, d deps) error) error {
	var d deps
	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(func(cfg config.Config) (*snowflake.Node, error) {
			return snowflake.NewNode(cfg.SnowflakeNode)
		}),
		db.Module,
		clock.Module,
		audit.Module,
		sequence.Module,
		tax.Module,
		seed.Module,
		fx.Populate(&d),
	)
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = app.Stop(context.Background()) }()

	return fn(ctx, d)
}
