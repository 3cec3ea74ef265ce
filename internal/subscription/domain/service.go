package domain

import (
	"context"
	"errors"

	cascadedomain "github.com/railzwaylabs/agencyops/internal/cascade/domain"
	contractdomain "github.com/railzwaylabs/agencyops/internal/contract/domain"
	"github.com/railzwaylabs/agencyops/internal/errs"
)

type Service interface {
	SuggestDates(ctx context.Context, req SuggestDatesRequest) (*DateSuggestion, error)
	// Create stores the subscription and generates its installments once. A
	// generation failure is reported on the result, not as an error.
	Create(ctx context.Context, req CreateRequest) (*CreateResult, error)
	Update(ctx context.Context, req UpdateRequest, caps Capabilities) (*UpdateResult, error)
	// PropagateEndDate copies the subscription's end date onto its contract.
	PropagateEndDate(ctx context.Context, req PropagateEndDateRequest) (*contractdomain.Contract, error)
	Get(ctx context.Context, id string) (*Subscription, error)
	ListByClient(ctx context.Context, clientID string) ([]Subscription, error)
	ListByContract(ctx context.Context, contractID string) ([]Subscription, error)
	Delete(ctx context.Context, id string, cascadeInstallments bool) (*cascadedomain.Result, error)
	Cancel(ctx context.Context, id string, cascadeInstallments bool) (*cascadedomain.Result, error)
}

var (
	ErrInvalidOrganization    = errs.NewValidation("org_id", "invalid_organization", "organization is required")
	ErrInvalidID              = errs.NewValidation("id", "invalid_id", "invalid subscription id")
	ErrInvalidClient          = errs.NewValidation("client_id", "invalid_client", "invalid client id")
	ErrInvalidContract        = errs.NewValidation("contract_id", "invalid_contract", "invalid contract id")
	ErrContractMismatch       = errs.NewValidation("contract_id", "contract_client_mismatch", "contract belongs to another client")
	ErrInvalidKind            = errs.NewValidation("kind", "invalid_kind", "kind must be plan or service")
	ErrInvalidCatalogRef      = errs.NewValidation("catalog_ref", "invalid_catalog_ref", "invalid catalog reference")
	ErrInvalidValue           = errs.NewValidation("value", "invalid_value", "value must not be negative")
	ErrInvalidCurrency        = errs.NewValidation("currency", "invalid_currency", "currency must be a 3-letter code")
	ErrMissingStartDate       = errs.NewValidation("start_date", "required", "start_date is required")
	ErrInvalidEndDate         = errs.NewValidation("end_date", "end_before_start", "end_date must not be before start_date")
	ErrNoEndDate              = errs.NewValidation("end_date", "no_end_date", "subscription has no end_date to propagate")
	ErrNotLinked              = errs.NewValidation("contract_id", "not_linked", "subscription is not linked to a contract")
	ErrEndBeforeContractStart = errs.NewValidation("end_date", "before_contract_start", "end_date is before the contract start_date")

	// ErrEndDateOverwriteNotConfirmed is returned when propagation would replace
	// a different contract end date without an explicit overwrite.
	ErrEndDateOverwriteNotConfirmed = errs.NewValidation("overwrite", "overwrite_not_confirmed", "contract already has a different end_date")
	ErrBillingFieldsRestricted      = errs.Permission("billing_fields_restricted")
	ErrInstallmentsNotGenerated     = errors.New("installments_not_generated")
	ErrIdempotencyConflict          = errors.New("idempotency_key_conflict")
	ErrNotFound                     = errs.NotFound("subscription_not_found")
	ErrContractNotFound             = errs.NotFound("contract_not_found")
)
