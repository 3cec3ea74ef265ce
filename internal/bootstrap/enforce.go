package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/fx"
)

// EnforceSchemaGate fails startup when the database was not migrated to the
// schema embedded in this binary.
func EnforceSchemaGate(lc fx.Lifecycle, gate SchemaGate) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := gate.MustBeActive(ctx); err != nil {
				return fmt.Errorf("schema not ready, run migrate first: %w", err)
			}
			return nil
		},
	})
}
