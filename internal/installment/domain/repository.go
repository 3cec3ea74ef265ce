package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/railzwaylabs/agencyops/internal/catalog/domain"
	"gorm.io/gorm"
)

type Repository interface {
	InsertBatch(ctx context.Context, db *gorm.DB, items []Installment) error
	ListByClient(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID) ([]Installment, error)
	ListBySubscription(ctx context.Context, db *gorm.DB, orgID, subscriptionID snowflake.ID, itemType catalogdomain.Kind) ([]Installment, error)
	CountOpen(ctx context.Context, db *gorm.DB, orgID, subscriptionID snowflake.ID, itemType catalogdomain.Kind) (int64, error)
	CancelOpen(ctx context.Context, db *gorm.DB, orgID, subscriptionID snowflake.ID, itemType catalogdomain.Kind, at time.Time) (int64, error)
}
