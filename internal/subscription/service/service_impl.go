package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/agencyops/internal/calendar"
	cascadedomain "github.com/railzwaylabs/agencyops/internal/cascade/domain"
	catalogdomain "github.com/railzwaylabs/agencyops/internal/catalog/domain"
	"github.com/railzwaylabs/agencyops/internal/clock"
	"github.com/railzwaylabs/agencyops/internal/config"
	contractdomain "github.com/railzwaylabs/agencyops/internal/contract/domain"
	"github.com/railzwaylabs/agencyops/internal/errs"
	installmentdomain "github.com/railzwaylabs/agencyops/internal/installment/domain"
	"github.com/railzwaylabs/agencyops/internal/lifecycle"
	"github.com/railzwaylabs/agencyops/internal/orgcontext"
	"github.com/railzwaylabs/agencyops/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Cfg          config.Config
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	Contracts    contractdomain.Repository
	Catalog      catalogdomain.Catalog
	Installments installmentdomain.Service
	Cascade      cascadedomain.Service
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	repo            domain.Repository
	contracts       contractdomain.Repository
	catalog         catalogdomain.Catalog
	installments    installmentdomain.Service
	cascade         cascadedomain.Service
	defaultCurrency string
}

func New(p Params) domain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("subscription.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		repo:            p.Repo,
		contracts:       p.Contracts,
		catalog:         p.Catalog,
		installments:    p.Installments,
		cascade:         p.Cascade,
		defaultCurrency: p.Cfg.Billing.DefaultCurrency,
	}
}

// SuggestDates offers a start date (the contract's, else today) and, for plans
// with a recurrence of R months, an end date R calendar months later.
func (s *Service) SuggestDates(ctx context.Context, req domain.SuggestDatesRequest) (*domain.DateSuggestion, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	kind, err := parseKind(req.Kind)
	if err != nil {
		return nil, err
	}
	item, err := s.catalog.Resolve(ctx, kind, req.CatalogRef)
	if err != nil {
		return nil, err
	}

	start := clock.Today(ctx, s.clock)
	if strings.TrimSpace(req.ContractID) != "" {
		contract, err := s.loadContract(ctx, orgID, req.ContractID)
		if err != nil {
			return nil, err
		}
		if contract.StartDate != nil {
			start = calendar.FromDate(*contract.StartDate)
		}
	}

	suggestion := &domain.DateSuggestion{StartDate: start}
	if item.Kind == catalogdomain.KindPlan && item.RecurrenceMonths > 0 {
		end := calendar.AddMonths(start, item.RecurrenceMonths)
		suggestion.EndDate = &end
		suggestion.RecurrenceMonths = item.RecurrenceMonths
	}
	return suggestion, nil
}

// replay returns the subscription stored under key, or nil when the key is
// unused. A key reused for a different client, kind or catalog item conflicts.
func (s *Service) replay(ctx context.Context, orgID snowflake.ID, key string, clientID snowflake.ID, kind catalogdomain.Kind, catalogRef snowflake.ID) (*domain.CreateResult, error) {
	existing, err := s.repo.FindByIdempotencyKey(ctx, s.db, orgID, key)
	if err != nil {
		return nil, errs.Store(err, nil)
	}
	if existing == nil {
		return nil, nil
	}
	if existing.ClientID != clientID || existing.Kind != kind || existing.CatalogRef != catalogRef {
		return nil, domain.ErrIdempotencyConflict
	}
	return &domain.CreateResult{Subscription: existing}, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.CreateResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	kind, err := parseKind(req.Kind)
	if err != nil {
		return nil, err
	}
	clientID, err := parseID(req.ClientID, domain.ErrInvalidClient)
	if err != nil {
		return nil, err
	}
	catalogRef, err := parseID(req.CatalogRef, domain.ErrInvalidCatalogRef)
	if err != nil {
		return nil, err
	}

	idempotencyKey := strings.TrimSpace(req.IdempotencyKey)
	if idempotencyKey != "" {
		existing, err := s.replay(ctx, orgID, idempotencyKey, clientID, kind, catalogRef)
		if err != nil || existing != nil {
			return existing, err
		}
	}

	item, err := s.catalog.Resolve(ctx, kind, req.CatalogRef)
	if err != nil {
		return nil, err
	}

	var contract *contractdomain.Contract
	if req.ContractID != nil && strings.TrimSpace(*req.ContractID) != "" {
		contract, err = s.loadContract(ctx, orgID, *req.ContractID)
		if err != nil {
			return nil, err
		}
		if contract.ClientID != clientID {
			return nil, domain.ErrContractMismatch
		}
	}

	value := item.DefaultValue
	if req.Value != nil {
		value = *req.Value
	}
	if value.IsNegative() {
		return nil, domain.ErrInvalidValue
	}

	currency := firstNonEmpty(req.Currency, item.Currency, s.defaultCurrency)
	if currency, err = normalizeCurrency(currency); err != nil {
		return nil, err
	}

	if req.StartDate == nil || req.StartDate.IsZero() {
		return nil, domain.ErrMissingStartDate
	}
	start := calendar.Truncate(*req.StartDate)
	var end *time.Time
	if req.EndDate != nil {
		e := calendar.Truncate(*req.EndDate)
		if e.Before(start) {
			return nil, domain.ErrInvalidEndDate
		}
		end = &e
	}

	status := lifecycle.StatusAtivo
	if strings.TrimSpace(req.Status) != "" {
		if status, err = lifecycle.ParseStatus(req.Status); err != nil {
			return nil, err
		}
	}
	signing := lifecycle.SigningNaoAssinado
	if strings.TrimSpace(req.SigningState) != "" {
		if signing, err = lifecycle.ParseSigningState(req.SigningState); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now(ctx)
	signedAt, cancelledAt := lifecycle.SigningDates(signing, req.SignedAt, req.CancelledAt, calendar.Truncate(now))

	subscription := &domain.Subscription{
		ID:           s.genID.Generate(),
		OrgID:        orgID,
		ClientID:     clientID,
		Kind:         kind,
		CatalogRef:   item.ID,
		Value:        value,
		Currency:     currency,
		Status:       status,
		SigningState: signing,
		StartDate:    calendar.ToDate(start),
		EndDate:      calendar.ToDatePtr(end),
		SignedAt:     calendar.ToDatePtr(signedAt),
		CancelledAt:  calendar.ToDatePtr(cancelledAt),
		Notes:        strings.TrimSpace(req.Notes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if contract != nil {
		contractID := contract.ID
		subscription.ContractID = &contractID
	}
	if idempotencyKey != "" {
		subscription.IdempotencyKey = &idempotencyKey
	}

	if err := s.repo.Insert(ctx, s.db, subscription); err != nil {
		if idempotencyKey != "" && errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, replayErr := s.replay(ctx, orgID, idempotencyKey, clientID, kind, catalogRef)
			if replayErr != nil || existing != nil {
				return existing, replayErr
			}
		}
		return nil, errs.Store(err, nil)
	}

	result := &domain.CreateResult{
		Subscription:    subscription,
		EndDateProposal: endDateProposal(contract, end),
	}

	installments, err := s.installments.GenerateForSubscription(ctx, installmentdomain.GenerateRequest{
		OrgID:            orgID,
		ClientID:         clientID,
		SubscriptionID:   subscription.ID,
		ItemType:         kind,
		Value:            value,
		Currency:         currency,
		StartDate:        start,
		EndDate:          end,
		RecurrenceMonths: item.Recurrence(),
	})
	if err != nil {
		result.InstallmentsErr = fmt.Errorf("%w: %w", domain.ErrInstallmentsNotGenerated, err)
		s.log.Warn("subscription created without installments",
			zap.String("subscription_id", subscription.ID.String()),
			zap.Error(err),
		)
	} else {
		result.InstallmentCount = len(installments)
	}

	s.log.Info("subscription created",
		zap.String("subscription_id", subscription.ID.String()),
		zap.String("client_id", clientID.String()),
		zap.String("kind", string(kind)),
		zap.Int("installments", result.InstallmentCount),
	)
	return result, nil
}

// Update never touches installments: schedules are generated once at
// creation and are not reconciled with later edits.
func (s *Service) Update(ctx context.Context, req domain.UpdateRequest, caps domain.Capabilities) (*domain.UpdateResult, error) {
	if !caps.CanEditBillingFields && req.HasBillingFields() {
		return nil, domain.ErrBillingFieldsRestricted
	}

	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	id, err := parseID(req.ID, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}

	current, err := s.find(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now(ctx)
	payload, err := BuildUpdatePayload(current, req, caps, calendar.Truncate(now))
	if err != nil {
		return nil, err
	}

	if err := s.repo.Patch(ctx, s.db, orgID, id, payload, now); err != nil {
		return nil, errs.Store(err, domain.ErrNotFound)
	}
	if !caps.CanEditBillingFields {
		if stamps := TransitionStamps(current, payload, calendar.Truncate(now)); len(stamps) > 0 {
			if err := s.repo.Patch(ctx, s.db, orgID, id, stamps, now); err != nil {
				return nil, errs.Store(err, domain.ErrNotFound)
			}
		}
	}

	updated, err := s.find(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	result := &domain.UpdateResult{Subscription: updated}
	if _, endChanged := payload["end_date"]; endChanged && updated.ContractID != nil && updated.EndDate != nil {
		contract, err := s.contracts.FindByID(ctx, s.db, orgID, *updated.ContractID)
		if err != nil {
			return nil, errs.Store(err, domain.ErrContractNotFound)
		}
		result.EndDateProposal = endDateProposal(contract, calendar.FromDatePtr(updated.EndDate))
	}

	if len(payload) > 0 {
		s.log.Info("subscription updated",
			zap.String("subscription_id", id.String()),
			zap.Bool("billing_fields", caps.CanEditBillingFields),
			zap.Int("fields", len(payload)),
		)
	}
	return result, nil
}

func (s *Service) PropagateEndDate(ctx context.Context, req domain.PropagateEndDateRequest) (*contractdomain.Contract, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	id, err := parseID(req.SubscriptionID, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}

	subscription, err := s.find(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if subscription.ContractID == nil {
		return nil, domain.ErrNotLinked
	}
	if subscription.EndDate == nil {
		return nil, domain.ErrNoEndDate
	}
	end := calendar.FromDate(*subscription.EndDate)

	contract, err := s.contracts.FindByID(ctx, s.db, orgID, *subscription.ContractID)
	if err != nil {
		return nil, errs.Store(err, domain.ErrContractNotFound)
	}
	if contract == nil {
		return nil, domain.ErrContractNotFound
	}

	if contract.EndDate != nil {
		if calendar.SameDay(calendar.FromDate(*contract.EndDate), end) {
			return contract, nil
		}
		if !req.Overwrite {
			return nil, domain.ErrEndDateOverwriteNotConfirmed
		}
	}
	if contract.StartDate != nil && end.Before(calendar.FromDate(*contract.StartDate)) {
		return nil, domain.ErrEndBeforeContractStart
	}

	now := s.clock.Now(ctx)
	if err := s.contracts.Patch(ctx, s.db, orgID, contract.ID, map[string]any{"end_date": calendar.ToDate(end)}, now); err != nil {
		return nil, errs.Store(err, domain.ErrContractNotFound)
	}

	s.log.Info("contract end date propagated",
		zap.String("subscription_id", id.String()),
		zap.String("contract_id", contract.ID.String()),
		zap.String("end_date", calendar.Format(end)),
		zap.Bool("overwrite", contract.EndDate != nil),
	)

	updated, err := s.contracts.FindByID(ctx, s.db, orgID, contract.ID)
	if err != nil {
		return nil, errs.Store(err, domain.ErrContractNotFound)
	}
	if updated == nil {
		return nil, domain.ErrContractNotFound
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Subscription, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	subscriptionID, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, orgID, subscriptionID)
}

func (s *Service) ListByClient(ctx context.Context, clientID string) ([]domain.Subscription, error) {
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
	return items, nil
}

func (s *Service) ListByContract(ctx context.Context, contractID string) ([]domain.Subscription, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	id, err := parseID(contractID, domain.ErrInvalidContract)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListByContract(ctx, s.db, orgID, id)
	if err != nil {
		return nil, errs.Store(err, nil)
	}
	return items, nil
}

func (s *Service) Delete(ctx context.Context, id string, cascadeInstallments bool) (*cascadedomain.Result, error) {
	return s.runCascade(ctx, id, cascadedomain.ActionDelete, cascadeInstallments)
}

func (s *Service) Cancel(ctx context.Context, id string, cascadeInstallments bool) (*cascadedomain.Result, error) {
	return s.runCascade(ctx, id, cascadedomain.ActionCancel, cascadeInstallments)
}

func (s *Service) runCascade(ctx context.Context, id string, action cascadedomain.Action, cascade bool) (*cascadedomain.Result, error) {
	if _, err := parseID(id, domain.ErrInvalidID); err != nil {
		return nil, err
	}
	return s.cascade.Run(ctx, cascadedomain.PlanRequest{
		TargetKind: string(cascadedomain.TargetSubscription),
		TargetID:   id,
		Action:     string(action),
	}, cascade)
}

func (s *Service) find(ctx context.Context, orgID, id snowflake.ID) (*domain.Subscription, error) {
	subscription, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, errs.Store(err, domain.ErrNotFound)
	}
	if subscription == nil {
		return nil, domain.ErrNotFound
	}
	return subscription, nil
}

func (s *Service) loadContract(ctx context.Context, orgID snowflake.ID, value string) (*contractdomain.Contract, error) {
	contractID, err := parseID(value, domain.ErrInvalidContract)
	if err != nil {
		return nil, err
	}
	contract, err := s.contracts.FindByID(ctx, s.db, orgID, contractID)
	if err != nil {
		return nil, errs.Store(err, domain.ErrContractNotFound)
	}
	if contract == nil {
		return nil, domain.ErrContractNotFound
	}
	return contract, nil
}

// endDateProposal offers end to the contract when they differ. A contract
// without an end date gets a plain proposal, one with a different end date an
// overwrite confirmation.
func endDateProposal(contract *contractdomain.Contract, end *time.Time) *domain.EndDateProposal {
	if contract == nil || end == nil {
		return nil
	}
	proposal := &domain.EndDateProposal{
		ContractID:      contract.ID,
		Mode:            domain.ProposalPropose,
		ProposedEndDate: calendar.Truncate(*end),
	}
	if contract.EndDate != nil {
		current := calendar.FromDate(*contract.EndDate)
		if calendar.SameDay(current, *end) {
			return nil
		}
		proposal.Mode = domain.ProposalOverwrite
		proposal.CurrentEndDate = &current
	}
	return proposal
}

func parseKind(value string) (catalogdomain.Kind, error) {
	kind := catalogdomain.Kind(strings.ToLower(strings.TrimSpace(value)))
	if !kind.Valid() {
		return "", domain.ErrInvalidKind
	}
	return kind, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}
