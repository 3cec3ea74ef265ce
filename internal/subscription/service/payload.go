package service

import (
	"strings"
	"time"

	"github.com/railzwaylabs/agencyops/internal/calendar"
	"github.com/railzwaylabs/agencyops/internal/lifecycle"
	"github.com/railzwaylabs/agencyops/internal/subscription/domain"
	"gorm.io/datatypes"
)

// BillingFieldKeys are the payload keys only written for callers that may edit
// billing fields.
var BillingFieldKeys = []string{"value", "currency", "start_date", "end_date", "signed_at", "cancelled_at"}

// BuildUpdatePayload turns an update request into the column map written to
// the store. A caller without CanEditBillingFields is rejected when it touches
// a billing field, and the payload built for it never carries those keys, not
// even as defaults. Unchanged values are left out.
func BuildUpdatePayload(current *domain.Subscription, req domain.UpdateRequest, caps domain.Capabilities, today time.Time) (map[string]any, error) {
	if !caps.CanEditBillingFields && req.HasBillingFields() {
		return nil, domain.ErrBillingFieldsRestricted
	}

	payload := map[string]any{}

	cancelling := false
	if req.Status != nil {
		status, err := lifecycle.ParseStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		if !lifecycle.CanTransition(current.Status, status) {
			return nil, lifecycle.ErrInvalidStatusTransition
		}
		if status != current.Status {
			payload["status"] = status
			cancelling = status == lifecycle.StatusCancelado
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
			payload["signing_state"] = signing
		}
		if caps.CanEditBillingFields {
			signedAt, cancelledAt = lifecycle.SigningDates(signing, signedAt, cancelledAt, today)
		}
	}
	if caps.CanEditBillingFields && cancelling && cancelledAt == nil {
		cancelledAt = &today
	}

	if req.Notes != nil {
		notes := strings.TrimSpace(*req.Notes)
		if notes != current.Notes {
			payload["notes"] = notes
		}
	}

	if !caps.CanEditBillingFields {
		return payload, nil
	}

	if req.Value != nil {
		if req.Value.IsNegative() {
			return nil, domain.ErrInvalidValue
		}
		if !req.Value.Equal(current.Value) {
			payload["value"] = *req.Value
		}
	}
	if req.Currency != nil {
		currency, err := normalizeCurrency(*req.Currency)
		if err != nil {
			return nil, err
		}
		if currency != current.Currency {
			payload["currency"] = currency
		}
	}

	start := calendar.FromDate(current.StartDate)
	if req.StartDate != nil {
		start = calendar.Truncate(*req.StartDate)
	}
	end := pickDate(current.EndDate, req.EndDate)
	if end != nil && end.Before(start) {
		return nil, domain.ErrInvalidEndDate
	}
	if !calendar.SameDay(start, calendar.FromDate(current.StartDate)) {
		payload["start_date"] = calendar.ToDate(start)
	}
	if dateChanged(current.EndDate, end) {
		payload["end_date"] = dateValue(end)
	}
	if dateChanged(current.SignedAt, signedAt) {
		payload["signed_at"] = dateValue(signedAt)
	}
	if dateChanged(current.CancelledAt, cancelledAt) {
		payload["cancelled_at"] = dateValue(cancelledAt)
	}

	return payload, nil
}

// TransitionStamps returns the signed_at/cancelled_at defaults implied by a
// restricted payload's state changes. They are written by the service in a
// separate patch, never as part of the caller's payload.
func TransitionStamps(current *domain.Subscription, payload map[string]any, today time.Time) map[string]any {
	stamps := map[string]any{}
	signedAt := calendar.FromDatePtr(current.SignedAt)
	cancelledAt := calendar.FromDatePtr(current.CancelledAt)

	if signing, ok := payload["signing_state"].(lifecycle.SigningState); ok {
		nextSigned, nextCancelled := lifecycle.SigningDates(signing, signedAt, cancelledAt, today)
		if signedAt == nil && nextSigned != nil {
			stamps["signed_at"] = calendar.ToDate(*nextSigned)
		}
		if cancelledAt == nil && nextCancelled != nil {
			stamps["cancelled_at"] = calendar.ToDate(*nextCancelled)
		}
	}
	if status, ok := payload["status"].(lifecycle.Status); ok && status == lifecycle.StatusCancelado && cancelledAt == nil {
		stamps["cancelled_at"] = calendar.ToDate(today)
	}
	return stamps
}

func normalizeCurrency(value string) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(value))
	if len(currency) != 3 {
		return "", domain.ErrInvalidCurrency
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return "", domain.ErrInvalidCurrency
		}
	}
	return currency, nil
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
