package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/railzwaylabs/agencyops/internal/catalog/domain"
	"github.com/railzwaylabs/agencyops/internal/errs"
)

type Service interface {
	// GenerateForSubscription derives and persists the installment schedule of a
	// newly created subscription. It is called once per subscription.
	GenerateForSubscription(ctx context.Context, req GenerateRequest) ([]Installment, error)
	ListByClient(ctx context.Context, clientID string) ([]Installment, error)
	ListBySubscription(ctx context.Context, subscriptionID string, itemType catalogdomain.Kind) ([]Installment, error)
	CountOpen(ctx context.Context, subscriptionID snowflake.ID, itemType catalogdomain.Kind) (int64, error)
	CancelOpen(ctx context.Context, subscriptionID snowflake.ID, itemType catalogdomain.Kind) (int64, error)
}

var (
	ErrInvalidOrganization = errs.NewValidation("org_id", "invalid_organization", "organization is required")
	ErrInvalidClient       = errs.NewValidation("client_id", "invalid_client", "invalid client id")
	ErrInvalidSubscription = errs.NewValidation("contract_item_id", "invalid_subscription", "invalid subscription id")
	ErrInvalidItemType     = errs.NewValidation("item_type", "invalid_item_type", "item type must be plan or service")
	ErrInvalidStatus       = errs.NewValidation("status", "invalid_status", "unknown installment status")
	ErrInvalidValue        = errs.NewValidation("value", "invalid_value", "value must not be negative")
	ErrInvalidCurrency     = errs.NewValidation("currency", "invalid_currency", "currency must be a 3-letter code")
	ErrInvalidStartDate    = errs.NewValidation("start_date", "invalid_start_date", "start_date is required")
	ErrInvalidEndDate      = errs.NewValidation("end_date", "invalid_end_date", "end_date must not be before start_date")
)
