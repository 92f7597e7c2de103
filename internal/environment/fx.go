package environment

import (
	"github.com/beaconhq/beacon/internal/environment/repository"
	"github.com/beaconhq/beacon/internal/environment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("environment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
