package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/crashchain/crashchain/internal/clock"
	"github.com/crashchain/crashchain/internal/config"
	"github.com/crashchain/crashchain/internal/dashboard"
	"github.com/crashchain/crashchain/internal/ledger"
	"github.com/crashchain/crashchain/internal/migration"
	"github.com/crashchain/crashchain/internal/notifier"
	"github.com/crashchain/crashchain/internal/observability"
	"github.com/crashchain/crashchain/internal/obdrecord"
	"github.com/crashchain/crashchain/internal/pinning"
	"github.com/crashchain/crashchain/internal/pipeline"
	"github.com/crashchain/crashchain/internal/report"
	"github.com/crashchain/crashchain/internal/server"
	"github.com/crashchain/crashchain/internal/submission"
	"github.com/crashchain/crashchain/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		submission.Module,
		report.Module,
		pinning.Module,
		ledger.Module,
		obdrecord.Module,
		pipeline.Module,
		dashboard.Module,
		notifier.Module,

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
