package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/railzwaylabs/agencyops/internal/catalog/domain"
	"github.com/railzwaylabs/agencyops/internal/clock"
	"github.com/railzwaylabs/agencyops/internal/errs"
	"github.com/railzwaylabs/agencyops/internal/installment/domain"
	"github.com/railzwaylabs/agencyops/internal/observability"
	"github.com/railzwaylabs/agencyops/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *observability.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	metrics *observability.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("installment.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) GenerateForSubscription(ctx context.Context, req domain.GenerateRequest) ([]domain.Installment, error) {
	items, err := BuildInstallments(req, s.genID, s.clock.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.repo.InsertBatch(ctx, s.db, items); err != nil {
		s.metrics.InstallmentGenerationFailed(string(req.ItemType))
		return nil, errs.Store(err, nil)
	}

	s.metrics.InstallmentsGenerated(string(req.ItemType), len(items))
	s.log.Info("installments generated",
		zap.String("subscription_id", req.SubscriptionID.String()),
		zap.String("item_type", string(req.ItemType)),
		zap.Int("count", len(items)),
	)
	return items, nil
}

func (s *Service) ListByClient(ctx context.Context, clientID string) ([]domain.Installment, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	id, err := parseID(clientID, domain.ErrInvalidClient)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListByClient(ctx, s.db, orgID, id)
	if err != nil {
		return nil, errs.Store(err, nil)
	}
	return s.deriveOverdue(ctx, items), nil
}

func (s *Service) ListBySubscription(ctx context.Context, subscriptionID string, itemType catalogdomain.Kind) ([]domain.Installment, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if !itemType.Valid() {
		return nil, domain.ErrInvalidItemType
	}

	id, err := parseID(subscriptionID, domain.ErrInvalidSubscription)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListBySubscription(ctx, s.db, orgID, id, itemType)
	if err != nil {
		return nil, errs.Store(err, nil)
	}
	return s.deriveOverdue(ctx, items), nil
}

func (s *Service) CountOpen(ctx context.Context, subscriptionID snowflake.ID, itemType catalogdomain.Kind) (int64, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, domain.ErrInvalidOrganization
	}
	if !itemType.Valid() {
		return 0, domain.ErrInvalidItemType
	}

	count, err := s.repo.CountOpen(ctx, s.db, orgID, subscriptionID, itemType)
	if err != nil {
		return 0, errs.Store(err, nil)
	}
	return count, nil
}

func (s *Service) CancelOpen(ctx context.Context, subscriptionID snowflake.ID, itemType catalogdomain.Kind) (int64, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, domain.ErrInvalidOrganization
	}
	if !itemType.Valid() {
		return 0, domain.ErrInvalidItemType
	}

	cancelled, err := s.repo.CancelOpen(ctx, s.db, orgID, subscriptionID, itemType, s.clock.Now(ctx))
	if err != nil {
		return 0, errs.Store(err, nil)
	}
	return cancelled, nil
}

func (s *Service) deriveOverdue(ctx context.Context, items []domain.Installment) []domain.Installment {
	today := clock.Today(ctx, s.clock)
	for i := range items {
		if items[i].Overdue(today) {
			items[i].Status = domain.StatusVencido
		}
	}
	return items
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}
