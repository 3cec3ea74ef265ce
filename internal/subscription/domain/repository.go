package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Subscription, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, orgID snowflake.ID, key string) (*Subscription, error)
	ListByClient(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID) ([]Subscription, error)
	ListByContract(ctx context.Context, db *gorm.DB, orgID, contractID snowflake.ID) ([]Subscription, error)
	// Patch writes fields and updated_at. An empty fields map only touches updated_at.
	Patch(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, fields map[string]any, at time.Time) error
	Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (int64, error)
	// UnlinkContract clears contract_id on every subscription of the contract.
	UnlinkContract(ctx context.Context, db *gorm.DB, orgID, contractID snowflake.ID, at time.Time) (int64, error)
}
