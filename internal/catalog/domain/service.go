package domain

import (
	"context"

	"github.com/railzwaylabs/agencyops/internal/errs"
)

// Catalog is read-only reference data for the billing engine.
type Catalog interface {
	GetPlan(ctx context.Context, id string) (*Plan, error)
	GetService(ctx context.Context, id string) (*Service, error)
	ListPlans(ctx context.Context) ([]Plan, error)
	ListServices(ctx context.Context) ([]Service, error)
	Resolve(ctx context.Context, kind Kind, id string) (Item, error)
}

var (
	ErrInvalidOrganization = errs.NewValidation("org_id", "invalid_organization", "organization is required")
	ErrInvalidID           = errs.NewValidation("catalog_ref", "invalid_id", "invalid catalog reference")
	ErrInvalidKind         = errs.NewValidation("kind", "invalid_kind", "kind must be plan or service")
	ErrPlanNotFound        = errs.NotFound("plan_not_found")
	ErrServiceNotFound     = errs.NotFound("service_not_found")
)
