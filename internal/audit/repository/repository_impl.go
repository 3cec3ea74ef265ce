package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/agencyops/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) ListByTarget(ctx context.Context, db *gorm.DB, orgID snowflake.ID, targetType, targetID string) ([]domain.AuditLog, error) {
	var logs []domain.AuditLog
	err := db.WithContext(ctx).
		Where("org_id = ? AND target_type = ? AND target_id = ?", orgID, targetType, targetID).
		Order("created_at ASC, id ASC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *repo) ListRange(ctx context.Context, db *gorm.DB, orgID snowflake.ID, req domain.ExportRequest) ([]domain.AuditLog, error) {
	query := db.WithContext(ctx).Model(&domain.AuditLog{}).
		Where("org_id = ?", orgID).
		Where("created_at >= ? AND created_at < ?", req.StartDate, req.EndDate)

	if req.TargetType != "" {
		query = query.Where("target_type = ?", req.TargetType)
	}
	if len(req.Actions) > 0 {
		query = query.Where("action IN ?", req.Actions)
	}

	var logs []domain.AuditLog
	if err := query.Order("created_at ASC, id ASC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
