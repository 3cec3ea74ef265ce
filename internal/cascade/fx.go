package cascade

import (
	"github.com/railzwaylabs/agencyops/internal/cascade/service"
	"go.uber.org/fx"
)

var Module = fx.Module("cascade.service",
	fx.Provide(service.NewRedisStore),
	fx.Provide(service.New),
)
