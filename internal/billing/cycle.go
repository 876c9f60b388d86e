// Package billing computes billing-cycle date ranges and maps calendar dates
// to invoice months.
//
// The card cycle historically reset on day 4 of each month. On 2025-10-04 the
// reset day moved to 17, bridged by a single 44-day transition cycle running
// from 2025-10-04 to 2025-11-16. Both eras and the bridge are encoded as an
// ordered rule list evaluated top-down, so a future policy era is one more
// entry rather than another nested branch.
package billing

import (
	"fmt"
	"time"
)

// Historical policy constants. These reflect a one-time cycle change and are
// deliberately not configurable.
var (
	// ChangeDate is the first day of the transition cycle.
	ChangeDate = Date(2025, time.October, 4)
	// TransitionEnd is the last day of the transition cycle.
	TransitionEnd = Date(2025, time.November, 16)
)

const (
	// OldResetDay is the day-of-month cycles reset on before ChangeDate.
	OldResetDay = 4
	// NewResetDay is the day-of-month cycles reset on after TransitionEnd.
	NewResetDay = 17
)

// InvoiceMonth identifies a billing period by the calendar month the bill is
// due in. It is derived, never stored.
type InvoiceMonth struct {
	Year  int
	Month time.Month
}

// transitionMonth is the invoice month containing TransitionEnd. Its cycle is
// the fixed bridge between the two reset-day eras.
var transitionMonth = InvoiceMonth{Year: TransitionEnd.Year(), Month: TransitionEnd.Month()}

// Date builds a timezone-naive calendar date (midnight UTC).
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates an instant to its wall-clock calendar date.
func DateOf(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

func (m InvoiceMonth) String() string {
	return fmt.Sprintf("%02d/%04d", int(m.Month), m.Year)
}

// index is the number of months since year 0, used for ordering and shifting.
func (m InvoiceMonth) index() int {
	return m.Year*12 + int(m.Month) - 1
}

// Add shifts the invoice month by delta calendar months, rolling the year.
func (m InvoiceMonth) Add(delta int) InvoiceMonth {
	idx := m.index() + delta
	return InvoiceMonth{Year: idx / 12, Month: time.Month(idx%12 + 1)}
}

// Before reports whether m precedes other chronologically.
func (m InvoiceMonth) Before(other InvoiceMonth) bool {
	return m.index() < other.index()
}

// MonthOf returns the invoice-month key of the calendar month containing t.
// This is plain calendar bucketing, not cycle attribution; see For.
func MonthOf(t time.Time) InvoiceMonth {
	return InvoiceMonth{Year: t.Year(), Month: t.Month()}
}

// cycleRule is one policy era. Rules are evaluated top-down; the first rule
// whose applies returns true determines the range.
type cycleRule struct {
	name    string
	applies func(m InvoiceMonth) bool
	rangeOf func(m InvoiceMonth) (start, end time.Time)
}

var cycleRules = []cycleRule{
	{
		name:    "transition",
		applies: func(m InvoiceMonth) bool { return m == transitionMonth },
		rangeOf: func(InvoiceMonth) (time.Time, time.Time) {
			return ChangeDate, TransitionEnd
		},
	},
	{
		name: "new-era",
		applies: func(m InvoiceMonth) bool {
			return !m.Before(MonthOf(ChangeDate).Add(1))
		},
		rangeOf: func(m InvoiceMonth) (time.Time, time.Time) {
			return resetDayRange(m, NewResetDay)
		},
	},
	{
		name:    "old-era",
		applies: func(InvoiceMonth) bool { return true },
		rangeOf: func(m InvoiceMonth) (time.Time, time.Time) {
			return resetDayRange(m, OldResetDay)
		},
	},
}

// resetDayRange builds the cycle for an invoice month under a fixed reset
// day: the cycle ends the day before the reset day of the invoice month and
// starts on the reset day one calendar month earlier.
func resetDayRange(m InvoiceMonth, resetDay int) (time.Time, time.Time) {
	end := Date(m.Year, m.Month, clampDay(m, resetDay-1))
	prev := m.Add(-1)
	start := Date(prev.Year, prev.Month, clampDay(prev, resetDay))
	return start, end
}

// clampDay caps day to the length of the invoice month's calendar month.
func clampDay(m InvoiceMonth, day int) int {
	// Day 0 of the next month is the last day of this one.
	last := time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

// Range returns the inclusive [start, end] calendar-date range of the billing
// cycle for the given invoice month.
func Range(m InvoiceMonth) (start, end time.Time) {
	for _, rule := range cycleRules {
		if rule.applies(m) {
			return rule.rangeOf(m)
		}
	}
	// The last rule always applies.
	panic("billing: no cycle rule matched " + m.String())
}

// LengthDays returns the number of days in the invoice month's cycle,
// inclusive on both ends.
func LengthDays(m InvoiceMonth) int {
	start, end := Range(m)
	return int(end.Sub(start).Hours()/24) + 1
}

// For returns the invoice month a calendar date is attributed to.
func For(t time.Time) InvoiceMonth {
	d := DateOf(t)

	switch {
	case d.Before(ChangeDate):
		if d.Day() >= OldResetDay {
			return MonthOf(d).Add(1)
		}
		return MonthOf(d)
	case !d.After(TransitionEnd):
		return transitionMonth
	default:
		if d.Day() >= NewResetDay {
			return MonthOf(d).Add(1)
		}
		return MonthOf(d)
	}
}

// Current returns the invoice month the instant now falls in.
func Current(now time.Time) InvoiceMonth {
	return For(now)
}

// DayOfCycle returns the 1-based day of the current billing cycle for now,
// never less than 1 even if the clock disagrees with the computed start.
func DayOfCycle(now time.Time) int {
	start, _ := Range(Current(now))
	day := int(DateOf(now).Sub(start).Hours()/24) + 1
	if day < 1 {
		return 1
	}
	return day
}
