package subscription

import (
	"github.com/railzwaylabs/agencyops/internal/subscription/repository"
	"github.com/railzwaylabs/agencyops/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
