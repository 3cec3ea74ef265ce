package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	auditdomain "github.com/railzwaylabs/agencyops/internal/audit/domain"
	"github.com/railzwaylabs/agencyops/internal/cascade/domain"
	"github.com/railzwaylabs/agencyops/internal/clock"
	"github.com/railzwaylabs/agencyops/internal/config"
	contractdomain "github.com/railzwaylabs/agencyops/internal/contract/domain"
	"github.com/railzwaylabs/agencyops/internal/errs"
	installmentdomain "github.com/railzwaylabs/agencyops/internal/installment/domain"
	"github.com/railzwaylabs/agencyops/internal/observability"
	"github.com/railzwaylabs/agencyops/internal/orgcontext"
	subscriptiondomain "github.com/railzwaylabs/agencyops/internal/subscription/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tracerName = "github.com/railzwaylabs/agencyops/internal/cascade"

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Cfg           config.Config
	Clock         clock.Clock
	Store         domain.Store
	Contracts     contractdomain.Repository
	Subscriptions subscriptiondomain.Repository
	Installments  installmentdomain.Service
	AuditSvc      auditdomain.Service    `optional:"true"`
	Metrics       *observability.Metrics `optional:"true"`
	Tracer        trace.TracerProvider   `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	clock         clock.Clock
	store         domain.Store
	planTTL       time.Duration
	contracts     contractdomain.Repository
	subscriptions subscriptiondomain.Repository
	installments  installmentdomain.Service
	auditSvc      auditdomain.Service
	metrics       *observability.Metrics
	tracer        trace.Tracer
}

func New(p Params) domain.Service {
	provider := p.Tracer
	if provider == nil {
		provider = noop.NewTracerProvider()
	}
	ttl := p.Cfg.Billing.CascadePlanTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Service{
		db:            p.DB,
		log:           p.Log.Named("cascade.service"),
		clock:         p.Clock,
		store:         p.Store,
		planTTL:       ttl,
		contracts:     p.Contracts,
		subscriptions: p.Subscriptions,
		installments:  p.Installments,
		auditSvc:      p.AuditSvc,
		metrics:       p.Metrics,
		tracer:        provider.Tracer(tracerName),
	}
}

func (s *Service) Plan(ctx context.Context, req domain.PlanRequest) (*domain.Plan, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	targetKind, err := domain.ParseTargetKind(req.TargetKind)
	if err != nil {
		return nil, err
	}
	action, err := domain.ParseAction(req.Action)
	if err != nil {
		return nil, err
	}
	targetID, err := parseID(req.TargetID, domain.ErrInvalidTargetID)
	if err != nil {
		return nil, err
	}

	plan := &domain.Plan{
		ID:            uuid.NewString(),
		OrgID:         orgID,
		TargetKind:    targetKind,
		TargetID:      targetID,
		Action:        action,
		Subscriptions: []domain.SubscriptionRef{},
		PlannedAt:     s.clock.Now(ctx),
	}

	switch targetKind {
	case domain.TargetContract:
		contract, err := s.contracts.FindByID(ctx, s.db, orgID, targetID)
		if err != nil {
			return nil, errs.Store(err, domain.ErrTargetNotFound)
		}
		if contract == nil {
			return nil, domain.ErrTargetNotFound
		}

		subscriptions, err := s.subscriptions.ListByContract(ctx, s.db, orgID, targetID)
		if err != nil {
			return nil, errs.Store(err, nil)
		}
		for _, sub := range subscriptions {
			open, err := s.installments.CountOpen(ctx, sub.ID, sub.Kind)
			if err != nil {
				return nil, errs.Store(err, nil)
			}
			plan.Subscriptions = append(plan.Subscriptions, domain.SubscriptionRef{
				ID:               sub.ID,
				Kind:             sub.Kind,
				OpenInstallments: open,
			})
			plan.OpenInstallments += open
		}

	case domain.TargetSubscription:
		sub, err := s.subscriptions.FindByID(ctx, s.db, orgID, targetID)
		if err != nil {
			return nil, errs.Store(err, domain.ErrTargetNotFound)
		}
		if sub == nil {
			return nil, domain.ErrTargetNotFound
		}

		open, err := s.installments.CountOpen(ctx, sub.ID, sub.Kind)
		if err != nil {
			return nil, errs.Store(err, nil)
		}
		plan.Subscriptions = append(plan.Subscriptions, domain.SubscriptionRef{
			ID:               sub.ID,
			Kind:             sub.Kind,
			OpenInstallments: open,
		})
		plan.OpenInstallments = open
	}

	plan.Options = domain.OptionsFor(plan.HasChildren())

	if err := s.store.SavePlan(ctx, plan, s.planTTL); err != nil {
		return nil, errs.Store(err, nil)
	}

	s.log.Info("cascade planned",
		zap.String("plan_id", plan.ID),
		zap.String("target_kind", string(targetKind)),
		zap.String("target_id", targetID.String()),
		zap.String("action", string(action)),
		zap.Int("subscriptions", len(plan.Subscriptions)),
		zap.Int64("open_installments", plan.OpenInstallments),
	)
	return plan, nil
}

func (s *Service) LoadPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	id, err := uuid.Parse(strings.TrimSpace(planID))
	if err != nil {
		return nil, domain.ErrInvalidPlan
	}

	plan, err := s.store.LoadPlan(ctx, id.String())
	if err != nil {
		return nil, errs.Store(err, domain.ErrPlanNotFound)
	}
	if plan == nil || plan.OrgID != orgID {
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}

// Execute applies the plan step by step without a surrounding transaction.
// Each applied step is checkpointed, so running a plan again after a
// *domain.StageError skips what already happened and resumes at the failed
// stage. Counts in the plan are not re-checked.
func (s *Service) Execute(ctx context.Context, plan *domain.Plan, decision domain.Decision) (*domain.Result, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if plan == nil || plan.OrgID != orgID {
		return nil, domain.ErrInvalidPlan
	}
	if _, err := domain.ParseDecision(string(decision)); err != nil {
		return nil, err
	}

	result := &domain.Result{PlanID: plan.ID, Decision: decision}
	if decision == domain.DecisionAbort {
		result.Aborted = true
		if err := s.store.Forget(ctx, plan.ID); err != nil {
			s.log.Warn("failed to drop aborted cascade plan", zap.String("plan_id", plan.ID), zap.Error(err))
		}
		s.metrics.CascadeExecuted(string(plan.TargetKind), string(plan.Action), string(decision), "aborted")
		return result, nil
	}
	if !plan.Allows(decision) {
		return nil, domain.ErrDecisionNotOffered
	}

	ctx, span := s.tracer.Start(ctx, "cascade.execute", trace.WithAttributes(
		attribute.String("cascade.plan_id", plan.ID),
		attribute.String("cascade.target_kind", string(plan.TargetKind)),
		attribute.String("cascade.target_id", plan.TargetID.String()),
		attribute.String("cascade.action", string(plan.Action)),
		attribute.String("cascade.decision", string(decision)),
	))
	defer span.End()

	now := s.clock.Now(ctx)
	for _, st := range s.buildSteps(plan, decision, now, result) {
		done, err := s.store.StepDone(ctx, plan.ID, st.key)
		if err != nil {
			return result, s.fail(ctx, span, plan, decision, st, result, errs.Store(err, nil))
		}
		if done {
			result.StepsSkipped++
			continue
		}

		n, err := st.run(ctx)
		if err != nil {
			return result, s.fail(ctx, span, plan, decision, st, result, errs.Store(err, nil))
		}
		*st.counter += n

		if err := s.store.MarkStep(ctx, plan.ID, st.key, s.planTTL); err != nil {
			return result, s.fail(ctx, span, plan, decision, st, result, errs.Store(err, nil))
		}
	}

	if err := s.store.Forget(ctx, plan.ID); err != nil {
		s.log.Warn("failed to drop executed cascade plan", zap.String("plan_id", plan.ID), zap.Error(err))
	}

	span.SetStatus(codes.Ok, "")
	s.metrics.CascadeExecuted(string(plan.TargetKind), string(plan.Action), string(decision), "succeeded")
	s.audit(ctx, plan, decision, result, nil)
	s.log.Info("cascade executed",
		zap.String("plan_id", plan.ID),
		zap.String("decision", string(decision)),
		zap.Int64("contracts_deleted", result.ContractsDeleted),
		zap.Int64("contracts_cancelled", result.ContractsCancelled),
		zap.Int64("subscriptions_deleted", result.SubscriptionsDeleted),
		zap.Int64("subscriptions_cancelled", result.SubscriptionsCancelled),
		zap.Int64("subscriptions_unlinked", result.SubscriptionsUnlinked),
		zap.Int64("installments_cancelled", result.InstallmentsCancelled),
		zap.Int("steps_skipped", result.StepsSkipped),
	)
	return result, nil
}

func (s *Service) Run(ctx context.Context, req domain.PlanRequest, cascade bool) (*domain.Result, error) {
	plan, err := s.Plan(ctx, req)
	if err != nil {
		return nil, err
	}

	decision := domain.DecisionProceed
	if plan.HasChildren() {
		decision = domain.DecisionShallow
		if cascade {
			decision = domain.DecisionCascade
		}
	}
	return s.Execute(ctx, plan, decision)
}

func (s *Service) fail(ctx context.Context, span trace.Span, plan *domain.Plan, decision domain.Decision, st step, result *domain.Result, err error) error {
	stageErr := &domain.StageError{
		PlanID:    plan.ID,
		Stage:     st.stage,
		SubjectID: st.subject,
		Err:       err,
	}

	span.RecordError(stageErr)
	span.SetStatus(codes.Error, string(st.stage))
	s.metrics.CascadeStepFailed(string(st.stage))
	s.metrics.CascadeExecuted(string(plan.TargetKind), string(plan.Action), string(decision), "failed")
	s.audit(ctx, plan, decision, result, stageErr)
	s.log.Error("cascade stopped",
		zap.String("plan_id", plan.ID),
		zap.String("stage", string(st.stage)),
		zap.String("subject_id", st.subject.String()),
		zap.Error(err),
	)
	return stageErr
}

func (s *Service) audit(ctx context.Context, plan *domain.Plan, decision domain.Decision, result *domain.Result, stageErr *domain.StageError) {
	if s.auditSvc == nil {
		return
	}

	metadata := map[string]any{
		"plan_id":                 plan.ID,
		"action":                  string(plan.Action),
		"decision":                string(decision),
		"contracts_deleted":       result.ContractsDeleted,
		"contracts_cancelled":     result.ContractsCancelled,
		"subscriptions_deleted":   result.SubscriptionsDeleted,
		"subscriptions_cancelled": result.SubscriptionsCancelled,
		"subscriptions_unlinked":  result.SubscriptionsUnlinked,
		"installments_cancelled":  result.InstallmentsCancelled,
		"steps_skipped":           result.StepsSkipped,
	}
	action := "cascade." + string(plan.Action)
	if stageErr != nil {
		action += ".failed"
		metadata["failed_stage"] = string(stageErr.Stage)
		metadata["failed_subject_id"] = stageErr.SubjectID.String()
	}

	orgID := plan.OrgID
	targetID := plan.TargetID.String()
	if err := s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, string(plan.TargetKind), &targetID, metadata); err != nil {
		s.log.Warn("failed to audit cascade", zap.String("plan_id", plan.ID), zap.Error(err))
	}
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}
