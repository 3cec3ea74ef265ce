package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/railzwaylabs/agencyops/internal/audit/domain"
	catalogdomain "github.com/railzwaylabs/agencyops/internal/catalog/domain"
	"github.com/railzwaylabs/agencyops/internal/config"
	contractdomain "github.com/railzwaylabs/agencyops/internal/contract/domain"
	installmentdomain "github.com/railzwaylabs/agencyops/internal/installment/domain"
	subscriptiondomain "github.com/railzwaylabs/agencyops/internal/subscription/domain"
	"github.com/railzwaylabs/agencyops/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists the tables owned by the engine, parents first.
func Models() []any {
	return []any{
		&catalogdomain.Plan{},
		&catalogdomain.Service{},
		&contractdomain.Contract{},
		&subscriptiondomain.Subscription{},
		&installmentdomain.Installment{},
		&auditdomain.AuditLog{},
	}
}

// Migrate brings the schema up to date. Postgres runs the embedded SQL
// migrations; sqlite and mysql, used for development, are auto-migrated from
// the models.
func Migrate(ctx context.Context, conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	logger := log.Named("migration")

	if cfg.Database.Driver != db.DriverPostgres && cfg.Database.Driver != "" {
		if err := conn.WithContext(ctx).AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		logger.Info("schema auto-migrated", zap.String("driver", cfg.Database.Driver))
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	manifest, err := RunMigrations(ctx, sqlDB)
	if err != nil {
		return err
	}
	logger.Info("schema migrated",
		zap.Uint("version", manifest.Version),
		zap.String("checksum", manifest.Checksum),
	)
	return nil
}

// RunMigrations applies all embedded migrations under the advisory lock and
// activates the bootstrap state.
func RunMigrations(ctx context.Context, sqlDB *sql.DB) (Manifest, error) {
	if sqlDB == nil {
		return Manifest{}, errors.New("migration database handle is required")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	unlock, err := acquireAdvisoryLock(ctx, sqlDB)
	if err != nil {
		return Manifest{}, err
	}
	defer func() {
		_ = unlock(context.Background())
	}()

	manifest, err := LoadManifest()
	if err != nil {
		return Manifest{}, err
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return Manifest{}, fmt.Errorf("open migrations: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return Manifest{}, fmt.Errorf("create migration source: %w", err)
	}
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return Manifest{}, fmt.Errorf("create migration driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return Manifest{}, fmt.Errorf("create migrator: %w", err)
	}

	if _, err := ensureNotDirty(migrator); err != nil {
		return Manifest{}, err
	}
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return Manifest{}, fmt.Errorf("apply migrations: %w", err)
	}

	current, err := ensureNotDirty(migrator)
	if err != nil {
		return Manifest{}, err
	}
	if current != manifest.Version {
		return Manifest{}, fmt.Errorf("schema version mismatch after migrate: got %d want %d", current, manifest.Version)
	}

	if err := stampSchemaState(ctx, sqlDB, manifest, time.Now()); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

func ensureNotDirty(migrator *migrate.Migrate) (uint, error) {
	version, dirty, err := migrator.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("database migrations are dirty at version %d", version)
	}
	return version, nil
}
