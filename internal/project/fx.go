package project

import (
	"github.com/beaconhq/beacon/internal/project/repository"
	"github.com/beaconhq/beacon/internal/project/service"
	"go.uber.org/fx"
)

var Module = fx.Module("project.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
