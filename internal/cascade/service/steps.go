package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/agencyops/internal/calendar"
	"github.com/railzwaylabs/agencyops/internal/cascade/domain"
	catalogdomain "github.com/railzwaylabs/agencyops/internal/catalog/domain"
	"github.com/railzwaylabs/agencyops/internal/lifecycle"
	"github.com/railzwaylabs/agencyops/internal/orgcontext"
	"gorm.io/datatypes"
)

// step is one idempotent mutation of an execution. Running a step that was
// already applied changes nothing and reports zero rows.
type step struct {
	key     string
	stage   domain.Stage
	subject snowflake.ID
	counter *int64
	run     func(ctx context.Context) (int64, error)
}

// buildSteps lays a plan out top-down: contract, then each subscription, then
// the open installments of each subscription. A shallow contract delete
// unlinks the subscriptions before the contract row goes away.
func (s *Service) buildSteps(plan *domain.Plan, decision domain.Decision, now time.Time, result *domain.Result) []step {
	var steps []step
	orgID := plan.OrgID
	today := calendar.Truncate(now)

	switch plan.TargetKind {
	case domain.TargetContract:
		if plan.Action == domain.ActionDelete && decision == domain.DecisionShallow {
			steps = append(steps, step{
				key:     stepKey(domain.StageUnlink, plan.TargetID),
				stage:   domain.StageUnlink,
				subject: plan.TargetID,
				counter: &result.SubscriptionsUnlinked,
				run: func(ctx context.Context) (int64, error) {
					return s.subscriptions.UnlinkContract(ctx, s.db, orgID, plan.TargetID, now)
				},
			})
		}
		steps = append(steps, s.contractStep(plan, now, today, result))

		if decision != domain.DecisionCascade {
			return steps
		}
		for _, ref := range plan.Subscriptions {
			steps = append(steps, s.subscriptionStep(plan, ref.ID, now, today, result))
		}
		for _, ref := range plan.Subscriptions {
			steps = append(steps, s.installmentStep(plan, ref.ID, ref.Kind, result))
		}

	case domain.TargetSubscription:
		steps = append(steps, s.subscriptionStep(plan, plan.TargetID, now, today, result))
		if decision == domain.DecisionCascade {
			for _, ref := range plan.Subscriptions {
				steps = append(steps, s.installmentStep(plan, ref.ID, ref.Kind, result))
			}
		}
	}
	return steps
}

func (s *Service) contractStep(plan *domain.Plan, now, today time.Time, result *domain.Result) step {
	orgID, id := plan.OrgID, plan.TargetID
	st := step{
		key:     stepKey(domain.StageContract, id),
		stage:   domain.StageContract,
		subject: id,
	}

	if plan.Action == domain.ActionDelete {
		st.counter = &result.ContractsDeleted
		st.run = func(ctx context.Context) (int64, error) {
			return s.contracts.Delete(ctx, s.db, orgID, id)
		}
		return st
	}

	st.counter = &result.ContractsCancelled
	st.run = func(ctx context.Context) (int64, error) {
		contract, err := s.contracts.FindByID(ctx, s.db, orgID, id)
		if err != nil || contract == nil {
			return 0, err
		}

		fields := map[string]any{}
		if contract.Status != lifecycle.StatusCancelado && lifecycle.CanCancel(contract.Status) {
			fields["status"] = lifecycle.StatusCancelado
		}
		if contract.SigningState != lifecycle.SigningCancelado && lifecycle.CanTransitionSigning(contract.SigningState, lifecycle.SigningCancelado) {
			fields["signing_state"] = lifecycle.SigningCancelado
		}
		if len(fields) == 0 {
			return 0, nil
		}
		if contract.CancelledAt == nil {
			fields["cancelled_at"] = datatypes.Date(today)
		}
		if err := s.contracts.Patch(ctx, s.db, orgID, id, fields, now); err != nil {
			return 0, err
		}
		return 1, nil
	}
	return st
}

func (s *Service) subscriptionStep(plan *domain.Plan, id snowflake.ID, now, today time.Time, result *domain.Result) step {
	orgID := plan.OrgID
	st := step{
		key:     stepKey(domain.StageSubscriptions, id),
		stage:   domain.StageSubscriptions,
		subject: id,
	}

	if plan.Action == domain.ActionDelete {
		st.counter = &result.SubscriptionsDeleted
		st.run = func(ctx context.Context) (int64, error) {
			return s.subscriptions.Delete(ctx, s.db, orgID, id)
		}
		return st
	}

	st.counter = &result.SubscriptionsCancelled
	st.run = func(ctx context.Context) (int64, error) {
		subscription, err := s.subscriptions.FindByID(ctx, s.db, orgID, id)
		if err != nil || subscription == nil {
			return 0, err
		}
		if subscription.Status == lifecycle.StatusCancelado || !lifecycle.CanCancel(subscription.Status) {
			return 0, nil
		}

		fields := map[string]any{"status": lifecycle.StatusCancelado}
		if subscription.CancelledAt == nil {
			fields["cancelled_at"] = datatypes.Date(today)
		}
		if err := s.subscriptions.Patch(ctx, s.db, orgID, id, fields, now); err != nil {
			return 0, err
		}
		return 1, nil
	}
	return st
}

func (s *Service) installmentStep(plan *domain.Plan, subscriptionID snowflake.ID, kind catalogdomain.Kind, result *domain.Result) step {
	orgID := plan.OrgID
	return step{
		key:     stepKey(domain.StageInstallments, subscriptionID),
		stage:   domain.StageInstallments,
		subject: subscriptionID,
		counter: &result.InstallmentsCancelled,
		run: func(ctx context.Context) (int64, error) {
			return s.installments.CancelOpen(orgcontext.WithOrgID(ctx, orgID), subscriptionID, kind)
		},
	}
}

func stepKey(stage domain.Stage, id snowflake.ID) string {
	return fmt.Sprintf("%s:%s", stage, id)
}
