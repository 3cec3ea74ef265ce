package migration

import (
	"context"
	"testing"

	"github.com/railzwaylabs/agencyops/internal/config"
	"github.com/railzwaylabs/agencyops/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManifest(t *testing.T) {
	manifest, err := LoadManifest()
	require.NoError(t, err)
	assert.Equal(t, uint(1), manifest.Version)
	assert.Equal(t, "1", manifest.VersionString())
	assert.Len(t, manifest.Checksum, 64)

	again, err := LoadManifest()
	require.NoError(t, err)
	assert.Equal(t, manifest.Checksum, again.Checksum)
}

func TestParseMigrationVersion(t *testing.T) {
	version, ok := parseMigrationVersion("000012_add_notes.up.sql")
	assert.True(t, ok)
	assert.Equal(t, uint(12), version)

	for _, name := range []string{"init.up.sql", "_x.up.sql", "000000_zero.up.sql", "12.up.sql"} {
		_, ok := parseMigrationVersion(name)
		assert.False(t, ok, name)
	}
}

func TestMigrateAutoMigratesSQLite(t *testing.T) {
	db := testutil.NewDB(t)
	var cfg config.Config
	cfg.Database.Driver = "sqlite"

	require.NoError(t, Migrate(context.Background(), db, cfg, zap.NewNop()))
	for _, table := range []string{"catalog_plans", "catalog_services", "contracts", "subscriptions", "installments", "audit_logs"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}
