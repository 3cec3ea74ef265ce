package audit

import (
	"github.com/railzwaylabs/agencyops/internal/audit/repository"
	"github.com/railzwaylabs/agencyops/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
