package catalog

import (
	"github.com/railzwaylabs/agencyops/internal/catalog/repository"
	"github.com/railzwaylabs/agencyops/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
