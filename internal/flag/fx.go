package flag

import (
	"github.com/beaconhq/beacon/internal/flag/repository"
	"github.com/beaconhq/beacon/internal/flag/service"
	"go.uber.org/fx"
)

var Module = fx.Module("flag.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
