package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, contract *Contract) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Contract, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, orgID snowflake.ID, key string) (*Contract, error)
	ListByClient(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID) ([]Contract, error)
	// Patch writes fields and updated_at. An empty fields map only touches updated_at.
	Patch(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, fields map[string]any, at time.Time) error
	Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (int64, error)
}
