package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/railzwaylabs/agencyops/internal/audit/domain"
	auditrepository "github.com/railzwaylabs/agencyops/internal/audit/repository"
	auditservice "github.com/railzwaylabs/agencyops/internal/audit/service"
	"github.com/railzwaylabs/agencyops/internal/calendar"
	"github.com/railzwaylabs/agencyops/internal/cascade/domain"
	catalogdomain "github.com/railzwaylabs/agencyops/internal/catalog/domain"
	"github.com/railzwaylabs/agencyops/internal/clock"
	"github.com/railzwaylabs/agencyops/internal/config"
	contractdomain "github.com/railzwaylabs/agencyops/internal/contract/domain"
	contractrepository "github.com/railzwaylabs/agencyops/internal/contract/repository"
	"github.com/railzwaylabs/agencyops/internal/errs"
	installmentdomain "github.com/railzwaylabs/agencyops/internal/installment/domain"
	installmentrepository "github.com/railzwaylabs/agencyops/internal/installment/repository"
	installmentservice "github.com/railzwaylabs/agencyops/internal/installment/service"
	"github.com/railzwaylabs/agencyops/internal/lifecycle"
	subscriptiondomain "github.com/railzwaylabs/agencyops/internal/subscription/domain"
	subscriptionrepository "github.com/railzwaylabs/agencyops/internal/subscription/repository"
	"github.com/railzwaylabs/agencyops/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, time.April, 10, 14, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	db    *gorm.DB
	node  *snowflake.Node
	mr    *miniredis.Miniredis
	store domain.Store
	svc   domain.Service
	ctx   context.Context
	orgID snowflake.ID
}

func newFixture(t *testing.T, installments installmentdomain.Repository) *fixture {
	t.Helper()

	db := testutil.NewDB(t,
		&contractdomain.Contract{},
		&subscriptiondomain.Subscription{},
		&installmentdomain.Installment{},
		&auditdomain.AuditLog{},
	)
	node := testutil.NewNode(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if installments == nil {
		installments = installmentrepository.Provide()
	}

	clk := clock.FixedClock{At: testNow}
	store := NewRedisStore(client)
	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  auditrepository.Provide(),
	})

	cfg := config.Config{}
	cfg.Billing.CascadePlanTTL = time.Hour

	svc := New(Params{
		DB:            db,
		Log:           zap.NewNop(),
		Cfg:           cfg,
		Clock:         clk,
		Store:         store,
		Contracts:     contractrepository.Provide(),
		Subscriptions: subscriptionrepository.Provide(),
		Installments: installmentservice.New(installmentservice.Params{
			DB:    db,
			Log:   zap.NewNop(),
			GenID: node,
			Clock: clk,
			Repo:  installments,
		}),
		AuditSvc: auditSvc,
	})

	orgID := node.Generate()
	return &fixture{
		t:     t,
		db:    db,
		node:  node,
		mr:    mr,
		store: store,
		svc:   svc,
		ctx:   testutil.OrgContext(orgID),
		orgID: orgID,
	}
}

func (f *fixture) contract(clientID snowflake.ID) *contractdomain.Contract {
	f.t.Helper()
	c := &contractdomain.Contract{
		ID:           f.node.Generate(),
		OrgID:        f.orgID,
		ClientID:     clientID,
		Status:       lifecycle.StatusAtivo,
		SigningState: lifecycle.SigningAssinado,
		SignedAt:     lo.ToPtr(calendar.ToDate(calendar.Date(2025, time.January, 2))),
		StartDate:    lo.ToPtr(calendar.ToDate(calendar.Date(2025, time.January, 1))),
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	require.NoError(f.t, f.db.Create(c).Error)
	return c
}

func (f *fixture) subscription(clientID snowflake.ID, contractID *snowflake.ID) *subscriptiondomain.Subscription {
	f.t.Helper()
	s := &subscriptiondomain.Subscription{
		ID:           f.node.Generate(),
		OrgID:        f.orgID,
		ClientID:     clientID,
		Kind:         catalogdomain.KindPlan,
		CatalogRef:   f.node.Generate(),
		ContractID:   contractID,
		Value:        decimal.NewFromInt(900),
		Currency:     "BRL",
		Status:       lifecycle.StatusAtivo,
		SigningState: lifecycle.SigningNaoAssinado,
		StartDate:    calendar.ToDate(calendar.Date(2025, time.January, 1)),
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	require.NoError(f.t, f.db.Create(s).Error)
	return s
}

func (f *fixture) installment(sub *subscriptiondomain.Subscription, status installmentdomain.Status, seq int) *installmentdomain.Installment {
	f.t.Helper()
	i := &installmentdomain.Installment{
		ID:             f.node.Generate(),
		OrgID:          f.orgID,
		ClientID:       sub.ClientID,
		ContractItemID: sub.ID,
		ItemType:       sub.Kind,
		Type:           installmentdomain.TypeRevenue,
		Sequence:       seq,
		Value:          sub.Value,
		Currency:       sub.Currency,
		DueDate:        calendar.ToDate(calendar.AddMonths(calendar.Date(2025, time.January, 1), seq-1)),
		Status:         status,
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	}
	require.NoError(f.t, f.db.Create(i).Error)
	return i
}

func (f *fixture) count(model any) int64 {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Model(model).Count(&n).Error)
	return n
}

func TestCancelContractCascade(t *testing.T) {
	f := newFixture(t, nil)
	clientID := f.node.Generate()
	contract := f.contract(clientID)
	subA := f.subscription(clientID, &contract.ID)
	subB := f.subscription(clientID, &contract.ID)
	instA := f.installment(subA, installmentdomain.StatusPendente, 1)
	instB := f.installment(subB, installmentdomain.StatusPendente, 1)
	paid := f.installment(subB, installmentdomain.StatusPago, 2)

	plan, err := f.svc.Plan(f.ctx, domain.PlanRequest{
		TargetKind: "contract",
		TargetID:   contract.ID.String(),
		Action:     "cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.Decision{domain.DecisionCascade, domain.DecisionShallow, domain.DecisionAbort}, plan.Options)
	assert.Len(t, plan.Subscriptions, 2)
	assert.Equal(t, int64(2), plan.OpenInstallments)

	result, err := f.svc.Execute(f.ctx, plan, domain.DecisionCascade)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.ContractsCancelled)
	assert.Equal(t, int64(2), result.SubscriptionsCancelled)
	assert.Equal(t, int64(2), result.InstallmentsCancelled)
	assert.Zero(t, result.ContractsDeleted+result.SubscriptionsDeleted)

	var gotContract contractdomain.Contract
	require.NoError(t, f.db.First(&gotContract, "id = ?", contract.ID).Error)
	assert.Equal(t, lifecycle.SigningCancelado, gotContract.SigningState)
	assert.Equal(t, lifecycle.StatusCancelado, gotContract.Status)
	require.NotNil(t, gotContract.CancelledAt)
	assert.Equal(t, "2025-04-10", calendar.Format(calendar.FromDate(*gotContract.CancelledAt)))

	for _, id := range []snowflake.ID{subA.ID, subB.ID} {
		var sub subscriptiondomain.Subscription
		require.NoError(t, f.db.First(&sub, "id = ?", id).Error)
		assert.Equal(t, lifecycle.StatusCancelado, sub.Status)
		assert.NotNil(t, sub.CancelledAt)
	}
	for _, id := range []snowflake.ID{instA.ID, instB.ID} {
		var inst installmentdomain.Installment
		require.NoError(t, f.db.First(&inst, "id = ?", id).Error)
		assert.Equal(t, installmentdomain.StatusCancelado, inst.Status)
	}
	var gotPaid installmentdomain.Installment
	require.NoError(t, f.db.First(&gotPaid, "id = ?", paid.ID).Error)
	assert.Equal(t, installmentdomain.StatusPago, gotPaid.Status)

	assert.Equal(t, int64(1), f.count(&contractdomain.Contract{}))
	assert.Equal(t, int64(2), f.count(&subscriptiondomain.Subscription{}))
	assert.Equal(t, int64(3), f.count(&installmentdomain.Installment{}))

	var logs []auditdomain.AuditLog
	require.NoError(t, f.db.Where("action = ?", "cascade.cancel").Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, contract.ID.String(), *logs[0].TargetID)

	_, err = f.svc.LoadPlan(f.ctx, plan.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound, "executed plans are dropped")
}

func TestDeleteSubscriptionWithoutOpenInstallments(t *testing.T) {
	f := newFixture(t, nil)
	clientID := f.node.Generate()
	sub := f.subscription(clientID, nil)
	f.installment(sub, installmentdomain.StatusPago, 1)
	f.installment(sub, installmentdomain.StatusCancelado, 2)

	plan, err := f.svc.Plan(f.ctx, domain.PlanRequest{
		TargetKind: "subscription",
		TargetID:   sub.ID.String(),
		Action:     "delete",
	})
	require.NoError(t, err)
	assert.False(t, plan.HasChildren())
	assert.Equal(t, []domain.Decision{domain.DecisionProceed, domain.DecisionAbort}, plan.Options)

	_, err = f.svc.Execute(f.ctx, plan, domain.DecisionCascade)
	assert.ErrorIs(t, err, domain.ErrDecisionNotOffered)

	result, err := f.svc.Execute(f.ctx, plan, domain.DecisionProceed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.SubscriptionsDeleted)

	assert.Zero(t, f.count(&subscriptiondomain.Subscription{}))
	assert.Equal(t, int64(2), f.count(&installmentdomain.Installment{}), "installments are never deleted")
}

func TestDeleteSubscriptionShallowKeepsInstallments(t *testing.T) {
	f := newFixture(t, nil)
	sub := f.subscription(f.node.Generate(), nil)
	open := f.installment(sub, installmentdomain.StatusPendente, 1)

	result, err := f.svc.Run(f.ctx, domain.PlanRequest{
		TargetKind: "subscription",
		TargetID:   sub.ID.String(),
		Action:     "delete",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionShallow, result.Decision)
	assert.Equal(t, int64(1), result.SubscriptionsDeleted)
	assert.Zero(t, result.InstallmentsCancelled)

	var inst installmentdomain.Installment
	require.NoError(t, f.db.First(&inst, "id = ?", open.ID).Error)
	assert.Equal(t, installmentdomain.StatusPendente, inst.Status)
}

func TestDeleteContractShallowUnlinksSubscriptions(t *testing.T) {
	f := newFixture(t, nil)
	clientID := f.node.Generate()
	contract := f.contract(clientID)
	sub := f.subscription(clientID, &contract.ID)
	open := f.installment(sub, installmentdomain.StatusPendente, 1)

	result, err := f.svc.Run(f.ctx, domain.PlanRequest{
		TargetKind: "contract",
		TargetID:   contract.ID.String(),
		Action:     "delete",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.ContractsDeleted)
	assert.Equal(t, int64(1), result.SubscriptionsUnlinked)

	var got subscriptiondomain.Subscription
	require.NoError(t, f.db.First(&got, "id = ?", sub.ID).Error)
	assert.Nil(t, got.ContractID)
	assert.Equal(t, lifecycle.StatusAtivo, got.Status)

	var inst installmentdomain.Installment
	require.NoError(t, f.db.First(&inst, "id = ?", open.ID).Error)
	assert.Equal(t, installmentdomain.StatusPendente, inst.Status)
	assert.Zero(t, f.count(&contractdomain.Contract{}))
}

func TestDeleteContractCascade(t *testing.T) {
	f := newFixture(t, nil)
	clientID := f.node.Generate()
	contract := f.contract(clientID)
	sub := f.subscription(clientID, &contract.ID)
	f.installment(sub, installmentdomain.StatusPendente, 1)
	f.installment(sub, installmentdomain.StatusVencido, 2)

	result, err := f.svc.Run(f.ctx, domain.PlanRequest{
		TargetKind: "contract",
		TargetID:   contract.ID.String(),
		Action:     "delete",
	}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.ContractsDeleted)
	assert.Equal(t, int64(1), result.SubscriptionsDeleted)
	assert.Equal(t, int64(2), result.InstallmentsCancelled)

	assert.Zero(t, f.count(&contractdomain.Contract{}))
	assert.Zero(t, f.count(&subscriptiondomain.Subscription{}))
	assert.Equal(t, int64(2), f.count(&installmentdomain.Installment{}))
}

func TestAbortChangesNothing(t *testing.T) {
	f := newFixture(t, nil)
	clientID := f.node.Generate()
	contract := f.contract(clientID)
	f.subscription(clientID, &contract.ID)

	plan, err := f.svc.Plan(f.ctx, domain.PlanRequest{
		TargetKind: "contract",
		TargetID:   contract.ID.String(),
		Action:     "delete",
	})
	require.NoError(t, err)

	result, err := f.svc.Execute(f.ctx, plan, domain.DecisionAbort)
	require.NoError(t, err)
	assert.True(t, result.Aborted)
	assert.Equal(t, int64(1), f.count(&contractdomain.Contract{}))
	assert.Equal(t, int64(1), f.count(&subscriptiondomain.Subscription{}))
}

func TestPlanValidation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Plan(f.ctx, domain.PlanRequest{TargetKind: "invoice", TargetID: "1", Action: "delete"})
	assert.ErrorIs(t, err, domain.ErrInvalidTargetKind)

	_, err = f.svc.Plan(f.ctx, domain.PlanRequest{TargetKind: "contract", TargetID: "1", Action: "archive"})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)

	_, err = f.svc.Plan(f.ctx, domain.PlanRequest{TargetKind: "contract", TargetID: f.node.Generate().String(), Action: "delete"})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.svc.Plan(testutil.OrgContext(0), domain.PlanRequest{TargetKind: "contract", TargetID: "1", Action: "delete"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestExecuteRejectsPlanOfAnotherOrganization(t *testing.T) {
	f := newFixture(t, nil)
	sub := f.subscription(f.node.Generate(), nil)

	plan, err := f.svc.Plan(f.ctx, domain.PlanRequest{TargetKind: "subscription", TargetID: sub.ID.String(), Action: "cancel"})
	require.NoError(t, err)

	other := testutil.OrgContext(f.node.Generate())
	_, err = f.svc.Execute(other, plan, domain.DecisionProceed)
	assert.ErrorIs(t, err, domain.ErrInvalidPlan)

	_, err = f.svc.LoadPlan(other, plan.ID)
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)
}

type flakyInstallments struct {
	mock.Mock
	installmentdomain.Repository
}

func (r *flakyInstallments) CancelOpen(ctx context.Context, db *gorm.DB, orgID, subscriptionID snowflake.ID, itemType catalogdomain.Kind, at time.Time) (int64, error) {
	args := r.Called(subscriptionID)
	if err := args.Error(0); err != nil {
		return 0, err
	}
	return r.Repository.CancelOpen(ctx, db, orgID, subscriptionID, itemType, at)
}

func TestPartialFailureResumesFromFailedStage(t *testing.T) {
	installments := &flakyInstallments{Repository: installmentrepository.Provide()}
	f := newFixture(t, installments)

	clientID := f.node.Generate()
	contract := f.contract(clientID)
	subA := f.subscription(clientID, &contract.ID)
	subB := f.subscription(clientID, &contract.ID)
	f.installment(subA, installmentdomain.StatusPendente, 1)
	instB := f.installment(subB, installmentdomain.StatusPendente, 1)

	installments.On("CancelOpen", subB.ID).Return(errors.New("connection reset by peer")).Once()
	installments.On("CancelOpen", mock.Anything).Return(nil)

	plan, err := f.svc.Plan(f.ctx, domain.PlanRequest{
		TargetKind: "contract",
		TargetID:   contract.ID.String(),
		Action:     "cancel",
	})
	require.NoError(t, err)

	result, err := f.svc.Execute(f.ctx, plan, domain.DecisionCascade)
	require.Error(t, err)

	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, domain.StageInstallments, stageErr.Stage)
	assert.Equal(t, subB.ID, stageErr.SubjectID)
	assert.Equal(t, plan.ID, stageErr.PlanID)
	assert.ErrorIs(t, err, errs.ErrNetwork)
	assert.Equal(t, int64(1), result.InstallmentsCancelled)

	var pending installmentdomain.Installment
	require.NoError(t, f.db.First(&pending, "id = ?", instB.ID).Error)
	assert.Equal(t, installmentdomain.StatusPendente, pending.Status, "no rollback, no silent retry")

	reloaded, err := f.svc.LoadPlan(f.ctx, plan.ID)
	require.NoError(t, err)

	retry, err := f.svc.Execute(f.ctx, reloaded, domain.DecisionCascade)
	require.NoError(t, err)
	assert.Equal(t, 4, retry.StepsSkipped)
	assert.Equal(t, int64(1), retry.InstallmentsCancelled)
	assert.Zero(t, retry.ContractsCancelled)

	var done installmentdomain.Installment
	require.NoError(t, f.db.First(&done, "id = ?", instB.ID).Error)
	assert.Equal(t, installmentdomain.StatusCancelado, done.Status)

	var failed []auditdomain.AuditLog
	require.NoError(t, f.db.Where("action = ?", "cascade.cancel.failed").Find(&failed).Error)
	assert.Len(t, failed, 1)
	installments.AssertNumberOfCalls(t, "CancelOpen", 3)
}

func TestRedisStoreExpiresPlans(t *testing.T) {
	f := newFixture(t, nil)
	sub := f.subscription(f.node.Generate(), nil)

	plan, err := f.svc.Plan(f.ctx, domain.PlanRequest{TargetKind: "subscription", TargetID: sub.ID.String(), Action: "cancel"})
	require.NoError(t, err)
	assert.True(t, f.mr.Exists(planKey(plan.ID)))

	f.mr.FastForward(2 * time.Hour)

	_, err = f.svc.LoadPlan(f.ctx, plan.ID)
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)
}
