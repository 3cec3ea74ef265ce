package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/railzwaylabs/agencyops/internal/catalog/domain"
	"github.com/railzwaylabs/agencyops/internal/installment/domain"
	"gorm.io/gorm"
)

const insertBatchSize = 100

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, items []domain.Installment) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(items, insertBatchSize).Error
}

func (r *repo) ListByClient(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID) ([]domain.Installment, error) {
	var items []domain.Installment
	err := db.WithContext(ctx).
		Where("org_id = ? AND client_id = ?", orgID, clientID).
		Order("due_date ASC, sequence ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListBySubscription(ctx context.Context, db *gorm.DB, orgID, subscriptionID snowflake.ID, itemType catalogdomain.Kind) ([]domain.Installment, error) {
	var items []domain.Installment
	err := db.WithContext(ctx).
		Where("org_id = ? AND contract_item_id = ? AND item_type = ?", orgID, subscriptionID, itemType).
		Order("sequence ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CountOpen(ctx context.Context, db *gorm.DB, orgID, subscriptionID snowflake.ID, itemType catalogdomain.Kind) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Installment{}).
		Where("org_id = ? AND contract_item_id = ? AND item_type = ?", orgID, subscriptionID, itemType).
		Where("status IN ?", domain.OpenStatuses).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CancelOpen flips every open installment of the subscription to cancelado.
// Rows are never deleted.
func (r *repo) CancelOpen(ctx context.Context, db *gorm.DB, orgID, subscriptionID snowflake.ID, itemType catalogdomain.Kind, at time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Installment{}).
		Where("org_id = ? AND contract_item_id = ? AND item_type = ?", orgID, subscriptionID, itemType).
		Where("status IN ?", domain.OpenStatuses).
		Updates(map[string]any{
			"status":       domain.StatusCancelado,
			"cancelled_at": at,
			"updated_at":   at,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
