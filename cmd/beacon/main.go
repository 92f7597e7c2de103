package main

import (
	"github.com/beaconhq/beacon/internal/config"
	"github.com/beaconhq/beacon/internal/migration"
	"github.com/beaconhq/beacon/internal/observability"
	"github.com/beaconhq/beacon/internal/server"
	"github.com/beaconhq/beacon/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,

		// Schema and bootstrap data
		migration.Module,

		// HTTP server plus every domain module it serves
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
