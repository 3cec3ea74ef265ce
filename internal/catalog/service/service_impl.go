package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/agencyops/internal/catalog/domain"
	"github.com/railzwaylabs/agencyops/internal/errs"
	"github.com/railzwaylabs/agencyops/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Catalog {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("catalog.service"),
		repo: p.Repo,
	}
}

func (s *Service) GetPlan(ctx context.Context, id string) (*domain.Plan, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	planID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	plan, err := s.repo.FindPlanByID(ctx, s.db, orgID, planID)
	if err != nil {
		return nil, errs.Store(err, domain.ErrPlanNotFound)
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}

func (s *Service) GetService(ctx context.Context, id string) (*domain.Service, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	serviceID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindServiceByID(ctx, s.db, orgID, serviceID)
	if err != nil {
		return nil, errs.Store(err, domain.ErrServiceNotFound)
	}
	if item == nil {
		return nil, domain.ErrServiceNotFound
	}
	return item, nil
}

func (s *Service) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	items, err := s.repo.ListPlans(ctx, s.db, orgID)
	if err != nil {
		return nil, errs.Store(err, nil)
	}
	return items, nil
}

func (s *Service) ListServices(ctx context.Context) ([]domain.Service, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	items, err := s.repo.ListServices(ctx, s.db, orgID)
	if err != nil {
		return nil, errs.Store(err, nil)
	}
	return items, nil
}

func (s *Service) Resolve(ctx context.Context, kind domain.Kind, id string) (domain.Item, error) {
	switch kind {
	case domain.KindPlan:
		plan, err := s.GetPlan(ctx, id)
		if err != nil {
			return domain.Item{}, err
		}
		return plan.Item(), nil
	case domain.KindService:
		item, err := s.GetService(ctx, id)
		if err != nil {
			return domain.Item{}, err
		}
		return item.Item(), nil
	default:
		return domain.Item{}, domain.ErrInvalidKind
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
