// Package calendar works with calendar dates (no time-of-day) as stored in
// DATE columns.
package calendar

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

const Layout = "2006-01-02"

// Date returns midnight UTC for the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Truncate drops the time-of-day, keeping the calendar day t falls on in its own location.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// AddMonths moves t by n calendar months keeping the day of month, clamped to
// the last day of the target month (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := DaysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return Date(first.Year(), first.Month(), d)
}

func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func Parse(value string) (time.Time, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func Format(t time.Time) string {
	return t.Format(Layout)
}

func ToDate(t time.Time) datatypes.Date {
	return datatypes.Date(Truncate(t))
}

func FromDate(d datatypes.Date) time.Time {
	return Truncate(time.Time(d))
}

func ToDatePtr(t *time.Time) *datatypes.Date {
	if t == nil {
		return nil
	}
	d := ToDate(*t)
	return &d
}

func FromDatePtr(d *datatypes.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := FromDate(*d)
	return &t
}

func SameDay(a, b time.Time) bool {
	return Truncate(a).Equal(Truncate(b))
}
