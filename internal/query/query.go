// Package query resolves filter criteria against the expense store and
// produces the dashboard's summaries, breakdowns, and trend series.
//
// The package owns the read-side ports; internal/storage implements them.
// All date ranges are inclusive calendar dates at midnight UTC.
package query

import (
	"context"
	"errors"
	"time"

	"gastos/internal/billing"
	"gastos/internal/core"
)

var ErrInvalidRange = errors.New("start date must not be after end date")

// Dimension selects the grouping axis for breakdowns and trends.
type Dimension string

const (
	ByCategory Dimension = "category"
	ByTag      Dimension = "tag"
)

var ErrInvalidDimension = errors.New("dimension must be category or tag")

// ParseDimension validates a raw dimension value.
func ParseDimension(raw string) (Dimension, error) {
	switch Dimension(raw) {
	case ByCategory, ByTag:
		return Dimension(raw), nil
	}
	return "", ErrInvalidDimension
}

// Criteria is a dashboard filter request. Month takes precedence over the
// explicit Start/End range; with neither, the current invoice month is used.
// Empty enum slices mean no filtering on that axis.
type Criteria struct {
	Start time.Time
	End   time.Time
	Month *billing.InvoiceMonth

	Categories []core.Category
	Tags       []core.Tag
	Methods    []core.Method
	// Search is matched case-insensitively as a substring of descriptions.
	Search string
}

// Filter is a criteria resolved to a concrete date range, ready for the
// store.
type Filter struct {
	Start time.Time
	End   time.Time

	Categories []core.Category
	Tags       []core.Tag
	Methods    []core.Method
	Search     string
}

// Totals is the aggregate over one filtered period.
type Totals struct {
	Cents int64
	Count int
}

// Bucket is one row of a breakdown: an enum value with its aggregate.
type Bucket struct {
	Value string
	Cents int64
	Count int
}

// TrendPoint is one cell of a month-over-month series.
type TrendPoint struct {
	Period billing.InvoiceMonth
	Value  string
	Cents  int64
	Count  int
}

// PeriodSummary describes one period of a summary comparison.
type PeriodSummary struct {
	Start      time.Time
	End        time.Time
	Cents      int64
	Count      int
	DailyCents float64
}

// Summary compares the selected period with the immediately preceding one.
// PercentChange is nil when the previous total is zero.
type Summary struct {
	Current       PeriodSummary
	Previous      PeriodSummary
	PercentChange *float64
}

// Metadata is everything the dashboard needs to render its filter widgets.
type Metadata struct {
	Methods    []core.Method
	Tags       []core.Tag
	Categories []core.Category
	// MinDate and MaxDate are nil when the store is empty.
	MinDate *time.Time
	MaxDate *time.Time
	// Months lists invoice months with at least one record, ascending.
	Months  []billing.InvoiceMonth
	Current billing.InvoiceMonth
}

// Store is the read/aggregate port the query service depends on.
type Store interface {
	// Expenses returns installment-distributed rows matching the filter,
	// newest first.
	Expenses(ctx context.Context, f Filter) ([]core.Expense, error)
	// Totals aggregates the filtered rows.
	Totals(ctx context.Context, f Filter) (Totals, error)
	// Breakdown groups the filtered rows by dimension, descending by total.
	Breakdown(ctx context.Context, f Filter, dim Dimension) ([]Bucket, error)
	// Bounds returns the overall min/max expense timestamps; ok is false
	// when the store is empty.
	Bounds(ctx context.Context) (min, max time.Time, ok bool, err error)
	// Dates returns the distinct calendar dates having at least one row,
	// after installment distribution.
	Dates(ctx context.Context) ([]time.Time, error)
}
