package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/agencyops/internal/calendar"
	cascadedomain "github.com/railzwaylabs/agencyops/internal/cascade/domain"
	"github.com/railzwaylabs/agencyops/internal/clock"
	"github.com/railzwaylabs/agencyops/internal/contract/domain"
	"github.com/railzwaylabs/agencyops/internal/errs"
	"github.com/railzwaylabs/agencyops/internal/lifecycle"
	"github.com/railzwaylabs/agencyops/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Cascade cascadedomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	cascade cascadedomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("contract.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		cascade: p.Cascade,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Contract, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	clientID, err := parseID(req.ClientID, domain.ErrInvalidClient)
	if err != nil {
		return nil, err
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

	if err := validateRange(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	idempotencyKey := strings.TrimSpace(req.IdempotencyKey)
	if idempotencyKey != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, s.db, orgID, idempotencyKey)
		if err != nil {
			return nil, errs.Store(err, nil)
		}
		if existing != nil {
			if existing.ClientID != clientID {
				return nil, domain.ErrIdempotencyConflict
			}
			return existing, nil
		}
	}

	now := s.clock.Now(ctx)
	signedAt, cancelledAt := lifecycle.SigningDates(signing, req.SignedAt, req.CancelledAt, calendar.Truncate(now))

	contract := &domain.Contract{
		ID:           s.genID.Generate(),
		OrgID:        orgID,
		ClientID:     clientID,
		Name:         normalizeName(req.Name),
		Status:       status,
		SigningState: signing,
		StartDate:    calendar.ToDatePtr(req.StartDate),
		EndDate:      calendar.ToDatePtr(req.EndDate),
		SignedAt:     calendar.ToDatePtr(signedAt),
		CancelledAt:  calendar.ToDatePtr(cancelledAt),
		Notes:        strings.TrimSpace(req.Notes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if idempotencyKey != "" {
		contract.IdempotencyKey = &idempotencyKey
	}

	if err := s.repo.Insert(ctx, s.db, contract); err != nil {
		return nil, errs.Store(err, nil)
	}

	s.log.Info("contract created",
		zap.String("contract_id", contract.ID.String()),
		zap.String("client_id", clientID.String()),
		zap.String("status", string(status)),
		zap.String("signing_state", string(signing)),
	)
	return contract, nil
}

// Update applies a partial update. Only fields whose effective value differs
// from the stored one are written, so repeating an update only refreshes
// updated_at.
func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Contract, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	id, err := parseID(req.ID, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, errs.Store(err, domain.ErrNotFound)
	}
	if current == nil {
		return nil, domain.ErrNotFound
	}

	now := s.clock.Now(ctx)
	fields, err := buildUpdateFields(current, req, calendar.Truncate(now))
	if err != nil {
		return nil, err
	}

	if err := s.repo.Patch(ctx, s.db, orgID, id, fields, now); err != nil {
		return nil, errs.Store(err, domain.ErrNotFound)
	}

	updated, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, errs.Store(err, domain.ErrNotFound)
	}
	if updated == nil {
		return nil, domain.ErrNotFound
	}

	if len(fields) > 0 {
		s.log.Info("contract updated",
			zap.String("contract_id", id.String()),
			zap.Strings("fields", fieldNames(fields)),
		)
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Contract, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	contractID, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}

	contract, err := s.repo.FindByID(ctx, s.db, orgID, contractID)
	if err != nil {
		return nil, errs.Store(err, domain.ErrNotFound)
	}
	if contract == nil {
		return nil, domain.ErrNotFound
	}
	return contract, nil
}

func (s *Service) ListByClient(ctx context.Context, clientID string) ([]domain.Contract, error) {
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

func (s *Service) Delete(ctx context.Context, id string, cascade bool) (*cascadedomain.Result, error) {
	return s.runCascade(ctx, id, cascadedomain.ActionDelete, cascade)
}

func (s *Service) Cancel(ctx context.Context, id string, cascade bool) (*cascadedomain.Result, error) {
	return s.runCascade(ctx, id, cascadedomain.ActionCancel, cascade)
}

func (s *Service) runCascade(ctx context.Context, id string, action cascadedomain.Action, cascade bool) (*cascadedomain.Result, error) {
	if _, err := parseID(id, domain.ErrInvalidID); err != nil {
		return nil, err
	}
	return s.cascade.Run(ctx, cascadedomain.PlanRequest{
		TargetKind: string(cascadedomain.TargetContract),
		TargetID:   id,
		Action:     string(action),
	}, cascade)
}

func buildUpdateFields(current *domain.Contract, req domain.UpdateRequest, today time.Time) (map[string]any, error) {
	fields := map[string]any{}

	if req.Name != nil {
		name := normalizeName(req.Name)
		if !sameString(current.Name, name) {
			if name == nil {
				fields["name"] = nil
			} else {
				fields["name"] = *name
			}
		}
	}

	if req.Status != nil {
		status, err := lifecycle.ParseStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		if !lifecycle.CanTransition(current.Status, status) {
			return nil, lifecycle.ErrInvalidStatusTransition
		}
		if status != current.Status {
			fields["status"] = status
		}
	}

	signedAt := pickDate(current.SignedAt, req.SignedAt)
	cancelledAt := pickDate(current.CancelledAt, req.CancelledAt)
	if req.SigningState != nil {
		signing, err := lifecycle.ParseSigningState(*req.SigningState)
		if err != nil {
			return nil, err
		}
		if !lifecycle.CanTransitionSigning(current.SigningState, signing) {
			return nil, lifecycle.ErrInvalidSigningTransition
		}
		if signing != current.SigningState {
			fields["signing_state"] = signing
		}
		signedAt, cancelledAt = lifecycle.SigningDates(signing, signedAt, cancelledAt, today)
	}
	if dateChanged(current.SignedAt, signedAt) {
		fields["signed_at"] = dateValue(signedAt)
	}
	if dateChanged(current.CancelledAt, cancelledAt) {
		fields["cancelled_at"] = dateValue(cancelledAt)
	}

	start := pickDate(current.StartDate, req.StartDate)
	end := pickDate(current.EndDate, req.EndDate)
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	if dateChanged(current.StartDate, start) {
		fields["start_date"] = dateValue(start)
	}
	if dateChanged(current.EndDate, end) {
		fields["end_date"] = dateValue(end)
	}

	if req.Notes != nil {
		notes := strings.TrimSpace(*req.Notes)
		if notes != current.Notes {
			fields["notes"] = notes
		}
	}

	return fields, nil
}

func validateRange(start, end *time.Time) error {
	if start != nil && end != nil && calendar.Truncate(*end).Before(calendar.Truncate(*start)) {
		return domain.ErrInvalidEndDate
	}
	return nil
}

func pickDate(current *datatypes.Date, next *time.Time) *time.Time {
	if next != nil {
		t := calendar.Truncate(*next)
		return &t
	}
	return calendar.FromDatePtr(current)
}

func dateChanged(current *datatypes.Date, next *time.Time) bool {
	prev := calendar.FromDatePtr(current)
	switch {
	case prev == nil && next == nil:
		return false
	case prev == nil || next == nil:
		return true
	default:
		return !calendar.SameDay(*prev, *next)
	}
}

func dateValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return calendar.ToDate(*t)
}

func normalizeName(name *string) *string {
	if name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func fieldNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	return names
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}
