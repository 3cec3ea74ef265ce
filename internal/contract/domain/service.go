package domain

import (
	"context"
	"errors"

	cascadedomain "github.com/railzwaylabs/agencyops/internal/cascade/domain"
	"github.com/railzwaylabs/agencyops/internal/errs"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Contract, error)
	Update(ctx context.Context, req UpdateRequest) (*Contract, error)
	Get(ctx context.Context, id string) (*Contract, error)
	ListByClient(ctx context.Context, clientID string) ([]Contract, error)
	// Delete and Cancel go through the cascade coordinator. With cascade false
	// a contract that has subscriptions is handled shallowly.
	Delete(ctx context.Context, id string, cascade bool) (*cascadedomain.Result, error)
	Cancel(ctx context.Context, id string, cascade bool) (*cascadedomain.Result, error)
}

var (
	ErrInvalidOrganization = errs.NewValidation("org_id", "invalid_organization", "organization is required")
	ErrInvalidID           = errs.NewValidation("id", "invalid_id", "invalid contract id")
	ErrInvalidClient       = errs.NewValidation("client_id", "invalid_client", "invalid client id")
	ErrInvalidEndDate      = errs.NewValidation("end_date", "end_before_start", "end_date must not be before start_date")
	ErrIdempotencyConflict = errors.New("idempotency_key_conflict")
	ErrNotFound            = errs.NotFound("contract_not_found")
)
