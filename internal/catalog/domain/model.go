package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Kind discriminates the two catalog families. It is also the item_type that
// ties an installment back to its subscription.
type Kind string

const (
	KindPlan    Kind = "plan"
	KindService Kind = "service"
)

func (k Kind) Valid() bool {
	switch k {
	case KindPlan, KindService:
		return true
	default:
		return false
	}
}

type Plan struct {
	ID               snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrgID            snowflake.ID    `json:"org_id" gorm:"not null;index"`
	Code             string          `json:"code" gorm:"type:text;not null"`
	Name             string          `json:"name" gorm:"type:text;not null"`
	DefaultValue     decimal.Decimal `json:"default_value" gorm:"type:numeric(14,2);not null"`
	Currency         string          `json:"currency" gorm:"type:varchar(3);not null"`
	RecurrenceMonths int             `json:"recurrence_months" gorm:"not null;default:1"`
	Active           bool            `json:"active" gorm:"not null;default:true"`
	CreatedAt        time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time       `json:"updated_at" gorm:"not null"`
}

func (Plan) TableName() string { return "catalog_plans" }

type Service struct {
	ID           snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrgID        snowflake.ID    `json:"org_id" gorm:"not null;index"`
	Code         string          `json:"code" gorm:"type:text;not null"`
	Name         string          `json:"name" gorm:"type:text;not null"`
	DefaultValue decimal.Decimal `json:"default_value" gorm:"type:numeric(14,2);not null"`
	Currency     string          `json:"currency" gorm:"type:varchar(3);not null"`
	Active       bool            `json:"active" gorm:"not null;default:true"`
	CreatedAt    time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time       `json:"updated_at" gorm:"not null"`
}

func (Service) TableName() string { return "catalog_services" }

// Item is the kind-agnostic view the linker and the generator work with.
type Item struct {
	Kind             Kind            `json:"kind"`
	ID               snowflake.ID    `json:"id"`
	Name             string          `json:"name"`
	DefaultValue     decimal.Decimal `json:"default_value"`
	Currency         string          `json:"currency"`
	RecurrenceMonths int             `json:"recurrence_months"`
}

// Recurrence is the installment period length in months; services and plans
// without a recurrence bill monthly.
func (i Item) Recurrence() int {
	if i.Kind != KindPlan || i.RecurrenceMonths <= 0 {
		return 1
	}
	return i.RecurrenceMonths
}

func (p Plan) Item() Item {
	return Item{
		Kind:             KindPlan,
		ID:               p.ID,
		Name:             p.Name,
		DefaultValue:     p.DefaultValue,
		Currency:         p.Currency,
		RecurrenceMonths: p.RecurrenceMonths,
	}
}

func (s Service) Item() Item {
	return Item{
		Kind:         KindService,
		ID:           s.ID,
		Name:         s.Name,
		DefaultValue: s.DefaultValue,
		Currency:     s.Currency,
	}
}
