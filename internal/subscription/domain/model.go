package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/railzwaylabs/agencyops/internal/catalog/domain"
	"github.com/railzwaylabs/agencyops/internal/lifecycle"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Subscription is a client's purchase of one catalog plan or service. Plan and
// service subscriptions share the table and are told apart by Kind.
type Subscription struct {
	ID             snowflake.ID           `json:"id" gorm:"primaryKey"`
	OrgID          snowflake.ID           `json:"org_id" gorm:"not null;index"`
	ClientID       snowflake.ID           `json:"client_id" gorm:"not null;index"`
	Kind           catalogdomain.Kind     `json:"kind" gorm:"type:varchar(16);not null"`
	CatalogRef     snowflake.ID           `json:"catalog_ref" gorm:"not null"`
	ContractID     *snowflake.ID          `json:"contract_id,omitempty" gorm:"index"`
	Value          decimal.Decimal        `json:"value" gorm:"type:numeric(14,2);not null"`
	Currency       string                 `json:"currency" gorm:"type:varchar(3);not null"`
	Status         lifecycle.Status       `json:"status" gorm:"type:varchar(16);not null"`
	SigningState   lifecycle.SigningState `json:"signing_state" gorm:"type:varchar(16);not null"`
	StartDate      datatypes.Date         `json:"start_date" gorm:"not null"`
	EndDate        *datatypes.Date        `json:"end_date,omitempty"`
	SignedAt       *datatypes.Date        `json:"signed_at,omitempty"`
	CancelledAt    *datatypes.Date        `json:"cancelled_at,omitempty"`
	Notes          string                 `json:"notes" gorm:"type:text;not null;default:''"`
	IdempotencyKey *string                `json:"-" gorm:"type:varchar(128);uniqueIndex:ux_subscriptions_idempotency"`
	CreatedAt      time.Time              `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time              `json:"updated_at" gorm:"not null"`
}

func (Subscription) TableName() string { return "subscriptions" }

// Capabilities is resolved per request for the caller and passed in explicitly.
type Capabilities struct {
	CanEditBillingFields bool
}

type SuggestDatesRequest struct {
	Kind       string
	CatalogRef string
	ContractID string
}

// DateSuggestion is offered to the caller and never enforced.
type DateSuggestion struct {
	StartDate        time.Time  `json:"start_date"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	RecurrenceMonths int        `json:"recurrence_months"`
}

type CreateRequest struct {
	Kind           string
	ClientID       string
	CatalogRef     string
	ContractID     *string
	Value          *decimal.Decimal
	Currency       string
	StartDate      *time.Time
	EndDate        *time.Time
	Status         string
	SigningState   string
	SignedAt       *time.Time
	CancelledAt    *time.Time
	Notes          string
	IdempotencyKey string
}

// UpdateRequest is a partial update; nil fields are left unchanged. Value,
// Currency and the date fields require CanEditBillingFields.
type UpdateRequest struct {
	ID           string
	Status       *string
	SigningState *string
	Notes        *string

	Value       *decimal.Decimal
	Currency    *string
	StartDate   *time.Time
	EndDate     *time.Time
	SignedAt    *time.Time
	CancelledAt *time.Time
}

// HasBillingFields reports whether the request touches any field reserved to
// callers allowed to edit billing data.
func (r UpdateRequest) HasBillingFields() bool {
	return r.Value != nil || r.Currency != nil || r.StartDate != nil ||
		r.EndDate != nil || r.SignedAt != nil || r.CancelledAt != nil
}

type ProposalMode string

const (
	// ProposalPropose offers the end date to a contract that has none.
	ProposalPropose ProposalMode = "propose"
	// ProposalOverwrite asks to replace the contract's different end date.
	ProposalOverwrite ProposalMode = "overwrite"
)

// EndDateProposal offers the subscription's end date to its contract. It is
// applied only through PropagateEndDate.
type EndDateProposal struct {
	ContractID      snowflake.ID `json:"contract_id"`
	Mode            ProposalMode `json:"mode"`
	ProposedEndDate time.Time    `json:"proposed_end_date"`
	CurrentEndDate  *time.Time   `json:"current_end_date,omitempty"`
}

type CreateResult struct {
	Subscription *Subscription `json:"subscription"`
	// InstallmentsErr is set when the subscription was stored but its
	// installment schedule could not be generated.
	InstallmentsErr  error            `json:"-"`
	InstallmentCount int              `json:"installment_count"`
	EndDateProposal  *EndDateProposal `json:"end_date_proposal,omitempty"`
}

type UpdateResult struct {
	Subscription    *Subscription    `json:"subscription"`
	EndDateProposal *EndDateProposal `json:"end_date_proposal,omitempty"`
}

type PropagateEndDateRequest struct {
	SubscriptionID string
	Overwrite      bool
}
