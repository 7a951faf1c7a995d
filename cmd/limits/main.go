package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/fiscalia/limits/internal/accumulate"
	"github.com/fiscalia/limits/internal/audit"
	"github.com/fiscalia/limits/internal/clock"
	"github.com/fiscalia/limits/internal/config"
	"github.com/fiscalia/limits/internal/fence"
	"github.com/fiscalia/limits/internal/ledger"
	"github.com/fiscalia/limits/internal/limitconfig"
	"github.com/fiscalia/limits/internal/logger"
	"github.com/fiscalia/limits/internal/metrics"
	"github.com/fiscalia/limits/internal/migration"
	"github.com/fiscalia/limits/internal/recalc"
	"github.com/fiscalia/limits/internal/scheduler"
	"github.com/fiscalia/limits/internal/server"
	"github.com/fiscalia/limits/internal/snapshot"
	"github.com/fiscalia/limits/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		metrics.Module,
		fence.Module,

		// Domains
		audit.Module,
		limitconfig.Module,
		snapshot.Module,
		ledger.Module,
		accumulate.Module,
		recalc.Module,
		scheduler.Module,

		// Transport
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
