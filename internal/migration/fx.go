package migration

import (
	"context"

	"github.com/railzwaylabs/agencyops/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module migrates when the app starts. It is only included by the migrate
// command; serve checks the schema through the bootstrap gate instead.
var Module = fx.Module("migrations",
	fx.Invoke(func(lc fx.Lifecycle, conn *gorm.DB, cfg config.Config, log *zap.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return Migrate(ctx, conn, cfg, log)
			},
		})
	}),
)
