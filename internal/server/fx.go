package server

import (
	"github.com/railzwaylabs/agencyops/internal/authorization"
	"go.uber.org/fx"
)

var Module = fx.Module("server",
	fx.Provide(func(a *authorization.Authorizer) CapabilityResolver { return a }),
	fx.Provide(NewServer),
	fx.Invoke(RegisterHTTP),
)
