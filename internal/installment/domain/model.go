package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/railzwaylabs/agencyops/internal/catalog/domain"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPendente    Status = "pendente"
	StatusPago        Status = "pago"
	StatusVencido     Status = "vencido"
	StatusCancelado   Status = "cancelado"
	StatusReembolsado Status = "reembolsado"
)

// OpenStatuses are the statuses of installments still awaiting resolution.
var OpenStatuses = []Status{StatusPendente, StatusVencido}

func ParseStatus(value string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(value))); s {
	case StatusPendente, StatusPago, StatusVencido, StatusCancelado, StatusReembolsado:
		return s, nil
	default:
		return "", ErrInvalidStatus
	}
}

const TypeRevenue = "revenue"

// Installment is one billing event owed by a client for a subscription,
// referenced through (ContractItemID, ItemType).
type Installment struct {
	ID             snowflake.ID       `json:"id" gorm:"primaryKey"`
	OrgID          snowflake.ID       `json:"org_id" gorm:"not null;index"`
	ClientID       snowflake.ID       `json:"client_id" gorm:"not null;index"`
	ContractItemID snowflake.ID       `json:"contract_item_id" gorm:"not null;index:idx_installments_item"`
	ItemType       catalogdomain.Kind `json:"item_type" gorm:"type:varchar(16);not null;index:idx_installments_item"`
	Type           string             `json:"type" gorm:"type:varchar(16);not null"`
	Sequence       int                `json:"sequence" gorm:"not null"`
	Value          decimal.Decimal    `json:"value" gorm:"type:numeric(14,2);not null"`
	Currency       string             `json:"currency" gorm:"type:varchar(3);not null"`
	DueDate        datatypes.Date     `json:"due_date" gorm:"not null"`
	Status         Status             `json:"status" gorm:"type:varchar(16);not null"`
	PaymentDate    *datatypes.Date    `json:"payment_date,omitempty"`
	PaymentMethod  *string            `json:"payment_method,omitempty" gorm:"type:text"`
	CancelledAt    *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time          `json:"updated_at" gorm:"not null"`
}

func (Installment) TableName() string { return "installments" }

// Overdue reports whether a pending installment is past due on today. The
// vencido status is derived at read time, never written by a batch job.
func (i Installment) Overdue(today time.Time) bool {
	return i.Status == StatusPendente && time.Time(i.DueDate).Before(today)
}

// GenerateRequest carries the subscription terms the schedule is derived from.
type GenerateRequest struct {
	OrgID            snowflake.ID
	ClientID         snowflake.ID
	SubscriptionID   snowflake.ID
	ItemType         catalogdomain.Kind
	Value            decimal.Decimal
	Currency         string
	StartDate        time.Time
	EndDate          *time.Time
	RecurrenceMonths int
}
