package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	ActorTypeUser   = "user"
	ActorTypeSystem = "system"
)

// AuditLog is an append-only record of a change to billing data.
type AuditLog struct {
	ID         snowflake.ID      `json:"id" gorm:"primaryKey"`
	OrgID      *snowflake.ID     `json:"org_id,omitempty" gorm:"index"`
	ActorType  string            `json:"actor_type" gorm:"type:varchar(16);not null"`
	ActorID    *string           `json:"actor_id,omitempty" gorm:"type:text"`
	Action     string            `json:"action" gorm:"type:varchar(64);not null;index"`
	TargetType string            `json:"target_type" gorm:"type:varchar(32);not null"`
	TargetID   *string           `json:"target_id,omitempty" gorm:"type:varchar(64);index"`
	IPAddress  *string           `json:"ip_address,omitempty" gorm:"type:varchar(64)"`
	UserAgent  *string           `json:"user_agent,omitempty" gorm:"type:text"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at" gorm:"not null;index"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// ExportRequest selects the audit trail of one organization over [StartDate, EndDate).
type ExportRequest struct {
	StartDate  time.Time
	EndDate    time.Time
	TargetType string
	Actions    []string
}

// ExportResult carries the exported JSON and its SHA-256 checksum.
type ExportResult struct {
	Data     []byte `json:"-"`
	Checksum string `json:"checksum"`
	Count    int    `json:"count"`
}
