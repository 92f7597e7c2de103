package organization

import (
	"github.com/beaconhq/beacon/internal/organization/repository"
	"github.com/beaconhq/beacon/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
