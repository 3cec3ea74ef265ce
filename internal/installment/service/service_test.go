package service

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/railzwaylabs/agencyops/internal/calendar"
	catalogdomain "github.com/railzwaylabs/agencyops/internal/catalog/domain"
	"github.com/railzwaylabs/agencyops/internal/clock"
	"github.com/railzwaylabs/agencyops/internal/installment/domain"
	"github.com/railzwaylabs/agencyops/internal/installment/repository"
	"github.com/railzwaylabs/agencyops/internal/observability"
	"github.com/railzwaylabs/agencyops/internal/testutil"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGenerateListCountCancel(t *testing.T) {
	db := testutil.NewDB(t, &domain.Installment{})
	node := testutil.NewNode(t)
	orgID := node.Generate()
	clientID := node.Generate()
	subscriptionID := node.Generate()
	ctx := testutil.OrgContext(orgID)

	metrics, err := observability.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	// 2025-03-20: the January and February dues are past, March 15 too.
	clk := clock.FixedClock{At: time.Date(2025, time.March, 20, 12, 0, 0, 0, time.UTC)}
	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clk,
		Repo:    repository.Provide(),
		Metrics: metrics,
	})

	items, err := svc.GenerateForSubscription(ctx, domain.GenerateRequest{
		OrgID:            orgID,
		ClientID:         clientID,
		SubscriptionID:   subscriptionID,
		ItemType:         catalogdomain.KindPlan,
		Value:            decimal.NewFromInt(500),
		Currency:         "BRL",
		StartDate:        calendar.Date(2025, time.January, 15),
		EndDate:          lo.ToPtr(calendar.Date(2025, time.June, 14)),
		RecurrenceMonths: 1,
	})
	require.NoError(t, err)
	require.Len(t, items, 5)

	// mark the first one paid out of band
	require.NoError(t, db.Model(&domain.Installment{}).Where("id = ?", items[0].ID).Update("status", domain.StatusPago).Error)

	listed, err := svc.ListByClient(ctx, clientID.String())
	require.NoError(t, err)
	require.Len(t, listed, 5)
	statuses := lo.Map(listed, func(i domain.Installment, _ int) domain.Status { return i.Status })
	assert.Equal(t, []domain.Status{
		domain.StatusPago,
		domain.StatusVencido,
		domain.StatusVencido,
		domain.StatusPendente,
		domain.StatusPendente,
	}, statuses)

	open, err := svc.CountOpen(ctx, subscriptionID, catalogdomain.KindPlan)
	require.NoError(t, err)
	assert.Equal(t, int64(4), open)

	otherKind, err := svc.CountOpen(ctx, subscriptionID, catalogdomain.KindService)
	require.NoError(t, err)
	assert.Zero(t, otherKind)

	cancelled, err := svc.CancelOpen(ctx, subscriptionID, catalogdomain.KindPlan)
	require.NoError(t, err)
	assert.Equal(t, int64(4), cancelled)

	var total int64
	require.NoError(t, db.Model(&domain.Installment{}).Count(&total).Error)
	assert.Equal(t, int64(5), total, "cancellation never deletes rows")

	bySub, err := svc.ListBySubscription(ctx, subscriptionID.String(), catalogdomain.KindPlan)
	require.NoError(t, err)
	for _, item := range bySub[1:] {
		assert.Equal(t, domain.StatusCancelado, item.Status)
		assert.NotNil(t, item.CancelledAt)
	}
	assert.Equal(t, domain.StatusPago, bySub[0].Status)

	open, err = svc.CountOpen(ctx, subscriptionID, catalogdomain.KindPlan)
	require.NoError(t, err)
	assert.Zero(t, open)
}

func TestListByClientRequiresOrganization(t *testing.T) {
	svc := New(Params{
		DB:    testutil.NewDB(t, &domain.Installment{}),
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clock.New(),
		Repo:  repository.Provide(),
	})

	_, err := svc.ListByClient(testutil.OrgContext(0), "123")
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)

	_, err = svc.ListByClient(testutil.OrgContext(1), "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidClient)
}
