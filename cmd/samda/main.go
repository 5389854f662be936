package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/samda/internal/clock"
	"github.com/smallbiznis/samda/internal/config"
	"github.com/smallbiznis/samda/internal/migration"
	"github.com/smallbiznis/samda/internal/observability"
	"github.com/smallbiznis/samda/internal/server"
	"github.com/smallbiznis/samda/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		server.Module,
		migration.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
