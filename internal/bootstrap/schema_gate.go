package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/railzwaylabs/agencyops/internal/config"
	"github.com/railzwaylabs/agencyops/internal/migration"
	"github.com/railzwaylabs/agencyops/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrSchemaOutdated = errors.New("schema_outdated")

type SchemaGate interface {
	MustBeActive(ctx context.Context) error
}

type schemaGate struct {
	db       *gorm.DB
	manifest migration.Manifest
}

// autoMigratedGate accepts development databases whose schema comes from the
// models rather than versioned migrations.
type autoMigratedGate struct{}

func (autoMigratedGate) MustBeActive(context.Context) error { return nil }

func NewSchemaGate(conn *gorm.DB, cfg config.Config, log *zap.Logger) (SchemaGate, error) {
	if conn == nil {
		return nil, errors.New("schema gate requires database handle")
	}
	if cfg.Database.Driver != db.DriverPostgres && cfg.Database.Driver != "" {
		log.Named("bootstrap").Warn("schema gate disabled for auto-migrated driver",
			zap.String("driver", cfg.Database.Driver),
		)
		return autoMigratedGate{}, nil
	}

	manifest, err := migration.LoadManifest()
	if err != nil {
		return nil, err
	}
	return &schemaGate{db: conn, manifest: manifest}, nil
}

func (g *schemaGate) MustBeActive(ctx context.Context) error {
	state, err := migration.ReadSchemaState(ctx, g.db)
	if err != nil {
		return err
	}
	if err := state.Matches(g.manifest); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaOutdated, err)
	}
	return nil
}
