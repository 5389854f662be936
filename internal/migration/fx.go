package migration

import (
	"context"

	"github.com/smallbiznis/samda/internal/config"
	"github.com/smallbiznis/samda/internal/seed"
	"github.com/smallbiznis/samda/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, dbCfg db.Config, seeder *seed.Seeder, log *zap.Logger) error {
		if cfg.RunMigrations {
			if err := Apply(conn, dbCfg); err != nil {
				return err
			}
			log.Info("schema up to date", zap.String("db_type", dbCfg.Type))
		}
		if cfg.SeedOnStart {
			return seeder.Run(context.Background())
		}
		return nil
	}),
)
