package audit

import (
	"github.com/beaconhq/beacon/internal/audit/repository"
	"github.com/beaconhq/beacon/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
