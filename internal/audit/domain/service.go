package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/agencyops/internal/errs"
	"gorm.io/gorm"
)

type Service interface {
	// AuditLog records one action. A nil orgID falls back to the organization
	// in ctx; empty actor fields fall back to the request actor.
	AuditLog(ctx context.Context, orgID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error
	ListByTarget(ctx context.Context, targetType, targetID string) ([]AuditLog, error)
	Export(ctx context.Context, req ExportRequest) (*ExportResult, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	ListByTarget(ctx context.Context, db *gorm.DB, orgID snowflake.ID, targetType, targetID string) ([]AuditLog, error)
	ListRange(ctx context.Context, db *gorm.DB, orgID snowflake.ID, req ExportRequest) ([]AuditLog, error)
}

var (
	ErrInvalidOrganization = errs.NewValidation("org_id", "invalid_organization", "organization is required")
	ErrInvalidAction       = errs.NewValidation("action", "invalid_action", "action is required")
	ErrInvalidRange        = errs.NewValidation("end_date", "invalid_range", "end_date must be after start_date")
)
