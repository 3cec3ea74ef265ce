package service

import (
	"context"
	"testing"
	"time"

	"github.com/railzwaylabs/agencyops/internal/catalog/domain"
	"github.com/railzwaylabs/agencyops/internal/catalog/repository"
	"github.com/railzwaylabs/agencyops/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolve(t *testing.T) {
	db := testutil.NewDB(t, &domain.Plan{}, &domain.Service{})
	node := testutil.NewNode(t)
	orgID := node.Generate()
	ctx := testutil.OrgContext(orgID)
	now := time.Now().UTC()

	plan := domain.Plan{
		ID:               node.Generate(),
		OrgID:            orgID,
		Code:             "gestao-trafego",
		Name:             "Gestão de Tráfego",
		DefaultValue:     decimal.RequireFromString("1500.00"),
		Currency:         "BRL",
		RecurrenceMonths: 3,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	svc := domain.Service{
		ID:           node.Generate(),
		OrgID:        orgID,
		Code:         "landing-page",
		Name:         "Landing Page",
		DefaultValue: decimal.RequireFromString("800"),
		Currency:     "BRL",
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, db.Create(&plan).Error)
	require.NoError(t, db.Create(&svc).Error)

	catalog := New(Params{DB: db, Log: zap.NewNop(), Repo: repository.Provide()})

	item, err := catalog.Resolve(ctx, domain.KindPlan, plan.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 3, item.Recurrence())
	assert.True(t, item.DefaultValue.Equal(decimal.NewFromInt(1500)))

	item, err = catalog.Resolve(ctx, domain.KindService, svc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.KindService, item.Kind)
	assert.Equal(t, 1, item.Recurrence())

	_, err = catalog.Resolve(ctx, domain.KindPlan, svc.ID.String())
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)

	_, err = catalog.Resolve(ctx, domain.KindPlan, "not-an-id")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = catalog.Resolve(ctx, domain.Kind("bundle"), plan.ID.String())
	assert.ErrorIs(t, err, domain.ErrInvalidKind)

	plans, err := catalog.ListPlans(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 1)

	_, err = catalog.ListServices(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}
