package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	SchemaStatusInitializing = "initializing"
	SchemaStatusActive       = "active"
)

var ErrSchemaStateMissing = errors.New("schema_state_missing")

// SchemaState is the single row stamped by the migrate command once every
// versioned migration has been applied.
type SchemaState struct {
	ID            bool       `gorm:"column:id;primaryKey"`
	Status        string     `gorm:"column:status;not null"`
	SchemaVersion string     `gorm:"column:schema_version;not null"`
	Checksum      *string    `gorm:"column:checksum"`
	ActivatedAt   *time.Time `gorm:"column:activated_at"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
}

func (SchemaState) TableName() string { return "system_bootstrap_state" }

// Matches reports why the stamped state does not describe manifest, or nil.
func (s SchemaState) Matches(manifest Manifest) error {
	if s.Status != SchemaStatusActive {
		return fmt.Errorf("schema state is %q, want %q", s.Status, SchemaStatusActive)
	}
	if s.SchemaVersion != manifest.VersionString() {
		return fmt.Errorf("schema version %s, binary expects %s", s.SchemaVersion, manifest.VersionString())
	}
	if s.Checksum != nil && *s.Checksum != "" && *s.Checksum != manifest.Checksum {
		return fmt.Errorf("schema checksum %s, binary expects %s", *s.Checksum, manifest.Checksum)
	}
	return nil
}

func ReadSchemaState(ctx context.Context, db *gorm.DB) (SchemaState, error) {
	var state SchemaState
	err := db.WithContext(ctx).Where("id = ?", true).Take(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SchemaState{}, ErrSchemaStateMissing
	}
	if err != nil {
		return SchemaState{}, err
	}

	state.Status = strings.ToLower(strings.TrimSpace(state.Status))
	state.SchemaVersion = strings.TrimSpace(state.SchemaVersion)
	if state.Checksum != nil {
		trimmed := strings.TrimSpace(*state.Checksum)
		state.Checksum = &trimmed
	}
	return state, nil
}

// stampSchemaState runs on the migrator's own connection, after Up.
func stampSchemaState(ctx context.Context, db *sql.DB, manifest Manifest, at time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO system_bootstrap_state (id, status, schema_version, checksum, activated_at, created_at)
		VALUES (TRUE, $1, $2, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    schema_version = EXCLUDED.schema_version,
		    checksum = EXCLUDED.checksum,
		    activated_at = EXCLUDED.activated_at
	`, SchemaStatusActive, manifest.VersionString(), manifest.Checksum, at.UTC())
	if err != nil {
		return fmt.Errorf("stamp schema state: %w", err)
	}
	return nil
}
