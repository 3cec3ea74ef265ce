package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/agencyops/internal/lifecycle"
	"gorm.io/datatypes"
)

// Contract groups a client's subscriptions under one commercial agreement.
type Contract struct {
	ID             snowflake.ID           `json:"id" gorm:"primaryKey"`
	OrgID          snowflake.ID           `json:"org_id" gorm:"not null;index"`
	ClientID       snowflake.ID           `json:"client_id" gorm:"not null;index"`
	Name           *string                `json:"name,omitempty" gorm:"type:text"`
	Status         lifecycle.Status       `json:"status" gorm:"type:varchar(16);not null"`
	SigningState   lifecycle.SigningState `json:"signing_state" gorm:"type:varchar(16);not null"`
	StartDate      *datatypes.Date        `json:"start_date,omitempty"`
	EndDate        *datatypes.Date        `json:"end_date,omitempty"`
	SignedAt       *datatypes.Date        `json:"signed_at,omitempty"`
	CancelledAt    *datatypes.Date        `json:"cancelled_at,omitempty"`
	Notes          string                 `json:"notes" gorm:"type:text;not null;default:''"`
	IdempotencyKey *string                `json:"-" gorm:"type:varchar(128);uniqueIndex:ux_contracts_idempotency"`
	CreatedAt      time.Time              `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time              `json:"updated_at" gorm:"not null"`
}

func (Contract) TableName() string { return "contracts" }

type CreateRequest struct {
	ClientID       string
	Name           *string
	Status         string
	SigningState   string
	StartDate      *time.Time
	EndDate        *time.Time
	SignedAt       *time.Time
	CancelledAt    *time.Time
	Notes          string
	IdempotencyKey string
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	ID           string
	Name         *string
	Status       *string
	SigningState *string
	StartDate    *time.Time
	EndDate      *time.Time
	SignedAt     *time.Time
	CancelledAt  *time.Time
	Notes        *string
}
