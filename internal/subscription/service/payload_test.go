package service

import (
	"testing"
	"time"

	"github.com/railzwaylabs/agencyops/internal/calendar"
	catalogdomain "github.com/railzwaylabs/agencyops/internal/catalog/domain"
	"github.com/railzwaylabs/agencyops/internal/errs"
	"github.com/railzwaylabs/agencyops/internal/lifecycle"
	"github.com/railzwaylabs/agencyops/internal/subscription/domain"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = calendar.Date(2025, time.May, 20)

func currentSubscription() *domain.Subscription {
	return &domain.Subscription{
		ID:           1,
		OrgID:        2,
		ClientID:     3,
		Kind:         catalogdomain.KindPlan,
		CatalogRef:   4,
		Value:        decimal.NewFromInt(1000),
		Currency:     "BRL",
		Status:       lifecycle.StatusAtivo,
		SigningState: lifecycle.SigningNaoAssinado,
		StartDate:    calendar.ToDate(calendar.Date(2025, time.January, 15)),
		Notes:        "",
	}
}

func TestRestrictedPayloadNeverCarriesBillingFields(t *testing.T) {
	restricted := domain.Capabilities{CanEditBillingFields: false}
	value := decimal.NewFromInt(1)
	date := calendar.Date(2025, time.June, 1)

	billing := []domain.UpdateRequest{
		{Value: &value},
		{Currency: lo.ToPtr("USD")},
		{StartDate: &date},
		{EndDate: &date},
		{SignedAt: &date},
		{CancelledAt: &date},
		{Status: lo.ToPtr("pausado"), Value: &value},
		{Notes: lo.ToPtr("x"), EndDate: &date, SigningState: lo.ToPtr("assinado")},
	}
	for _, req := range billing {
		payload, err := BuildUpdatePayload(currentSubscription(), req, restricted, today)
		assert.ErrorIs(t, err, domain.ErrBillingFieldsRestricted)
		assert.ErrorIs(t, err, errs.ErrPermissionDenied)
		assert.Nil(t, payload)
	}

	allowed := []domain.UpdateRequest{
		{},
		{Status: lo.ToPtr("pausado")},
		{Status: lo.ToPtr("cancelado")},
		{Status: lo.ToPtr("finalizado"), SigningState: lo.ToPtr("cancelado")},
		{SigningState: lo.ToPtr("assinado")},
		{SigningState: lo.ToPtr("cancelado"), Notes: lo.ToPtr("client gave up")},
		{Notes: lo.ToPtr("call back in June")},
	}
	for _, req := range allowed {
		payload, err := BuildUpdatePayload(currentSubscription(), req, restricted, today)
		require.NoError(t, err)
		for _, key := range BillingFieldKeys {
			assert.NotContains(t, payload, key)
		}
	}
}

func TestElevatedPayload(t *testing.T) {
	elevated := domain.Capabilities{CanEditBillingFields: true}

	payload, err := BuildUpdatePayload(currentSubscription(), domain.UpdateRequest{
		SigningState: lo.ToPtr("assinado"),
		Value:        lo.ToPtr(decimal.RequireFromString("1250.50")),
		Currency:     lo.ToPtr("usd"),
		EndDate:      lo.ToPtr(calendar.Date(2025, time.December, 15)),
	}, elevated, today)
	require.NoError(t, err)

	assert.Equal(t, lifecycle.SigningAssinado, payload["signing_state"])
	assert.Equal(t, calendar.ToDate(today), payload["signed_at"])
	assert.Equal(t, "USD", payload["currency"])
	assert.True(t, decimal.RequireFromString("1250.5").Equal(payload["value"].(decimal.Decimal)))
	assert.Equal(t, calendar.ToDate(calendar.Date(2025, time.December, 15)), payload["end_date"])
	assert.NotContains(t, payload, "start_date")

	payload, err = BuildUpdatePayload(currentSubscription(), domain.UpdateRequest{
		Status: lo.ToPtr("cancelado"),
	}, elevated, today)
	require.NoError(t, err)
	assert.Equal(t, calendar.ToDate(today), payload["cancelled_at"])
}

func TestPayloadValidation(t *testing.T) {
	elevated := domain.Capabilities{CanEditBillingFields: true}

	_, err := BuildUpdatePayload(currentSubscription(), domain.UpdateRequest{
		EndDate: lo.ToPtr(calendar.Date(2025, time.January, 14)),
	}, elevated, today)
	assert.ErrorIs(t, err, domain.ErrInvalidEndDate)

	_, err = BuildUpdatePayload(currentSubscription(), domain.UpdateRequest{
		Value: lo.ToPtr(decimal.NewFromInt(-5)),
	}, elevated, today)
	assert.ErrorIs(t, err, domain.ErrInvalidValue)

	_, err = BuildUpdatePayload(currentSubscription(), domain.UpdateRequest{
		Currency: lo.ToPtr("R$1"),
	}, elevated, today)
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)

	finalized := currentSubscription()
	finalized.Status = lifecycle.StatusFinalizado
	_, err = BuildUpdatePayload(finalized, domain.UpdateRequest{Status: lo.ToPtr("ativo")}, elevated, today)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidStatusTransition)
}

func TestPayloadSkipsUnchangedValues(t *testing.T) {
	payload, err := BuildUpdatePayload(currentSubscription(), domain.UpdateRequest{
		Status:    lo.ToPtr("ativo"),
		Value:     lo.ToPtr(decimal.RequireFromString("1000.00")),
		Currency:  lo.ToPtr("brl"),
		StartDate: lo.ToPtr(time.Date(2025, time.January, 15, 18, 0, 0, 0, time.UTC)),
	}, domain.Capabilities{CanEditBillingFields: true}, today)
	require.NoError(t, err)
	assert.Empty(t, payload)
}
