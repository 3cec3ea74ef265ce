package service

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/agencyops/internal/calendar"
	"github.com/railzwaylabs/agencyops/internal/installment/domain"
)

// GenerateSchedule partitions [start, end] into consecutive periods of
// recurrenceMonths calendar months and returns the start of each period. The
// k-th date is start + k*recurrenceMonths computed from start, so month-end
// clamping never drifts. A trailing partial period still yields a date. With no
// end the schedule is the single start date.
func GenerateSchedule(start time.Time, end *time.Time, recurrenceMonths int) []time.Time {
	start = calendar.Truncate(start)
	if end == nil {
		return []time.Time{start}
	}
	if recurrenceMonths <= 0 {
		recurrenceMonths = 1
	}

	last := calendar.Truncate(*end)
	if last.Before(start) {
		return nil
	}

	var dates []time.Time
	for k := 0; ; k++ {
		due := calendar.AddMonths(start, k*recurrenceMonths)
		if due.After(last) {
			break
		}
		dates = append(dates, due)
	}
	return dates
}

// BuildInstallments derives the installment records of a subscription without
// persisting them. Every installment carries the full subscription value.
func BuildInstallments(req domain.GenerateRequest, genID *snowflake.Node, now time.Time) ([]domain.Installment, error) {
	if err := validateGenerateRequest(req); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	dates := GenerateSchedule(req.StartDate, req.EndDate, req.RecurrenceMonths)

	items := make([]domain.Installment, 0, len(dates))
	for i, due := range dates {
		items = append(items, domain.Installment{
			ID:             genID.Generate(),
			OrgID:          req.OrgID,
			ClientID:       req.ClientID,
			ContractItemID: req.SubscriptionID,
			ItemType:       req.ItemType,
			Type:           domain.TypeRevenue,
			Sequence:       i + 1,
			Value:          req.Value,
			Currency:       currency,
			DueDate:        calendar.ToDate(due),
			Status:         domain.StatusPendente,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return items, nil
}

func validateGenerateRequest(req domain.GenerateRequest) error {
	if req.OrgID == 0 {
		return domain.ErrInvalidOrganization
	}
	if req.ClientID == 0 {
		return domain.ErrInvalidClient
	}
	if req.SubscriptionID == 0 {
		return domain.ErrInvalidSubscription
	}
	if !req.ItemType.Valid() {
		return domain.ErrInvalidItemType
	}
	if req.Value.IsNegative() {
		return domain.ErrInvalidValue
	}
	if len(strings.TrimSpace(req.Currency)) != 3 {
		return domain.ErrInvalidCurrency
	}
	if req.StartDate.IsZero() {
		return domain.ErrInvalidStartDate
	}
	if req.EndDate != nil && calendar.Truncate(*req.EndDate).Before(calendar.Truncate(req.StartDate)) {
		return domain.ErrInvalidEndDate
	}
	return nil
}
