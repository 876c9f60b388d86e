package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gastos/internal/billing"
	"gastos/internal/core"
)

// DefaultTrendWindow is the number of invoice months a trend series covers
// when the request does not say otherwise.
const DefaultTrendWindow = 6

// MaxTrendWindow caps the trend window to keep the fan-out of per-month
// aggregate queries bounded.
const MaxTrendWindow = 24

// Service answers dashboard queries. It is stateless and safe for concurrent
// use.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock replaces the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Resolve turns criteria into a store filter with a concrete date range.
func (s *Service) Resolve(c Criteria) (Filter, error) {
	start, end := c.Start, c.End
	switch {
	case c.Month != nil:
		start, end = billing.Range(*c.Month)
	case start.IsZero() && end.IsZero():
		start, end = billing.Range(billing.Current(s.now()))
	case start.IsZero() || end.IsZero():
		return Filter{}, fmt.Errorf("%w: both start and end are required", ErrInvalidRange)
	case start.After(end):
		return Filter{}, ErrInvalidRange
	}
	return Filter{
		Start:      billing.DateOf(start),
		End:        billing.DateOf(end),
		Categories: c.Categories,
		Tags:       c.Tags,
		Methods:    c.Methods,
		Search:     c.Search,
	}, nil
}

// Expenses returns the installment-distributed rows matching the criteria,
// newest first.
func (s *Service) Expenses(ctx context.Context, c Criteria) ([]core.Expense, error) {
	f, err := s.Resolve(c)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Expenses(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	return rows, nil
}

// Summary aggregates the selected period and the immediately preceding one.
// When the criteria select an invoice month the previous period is the
// previous invoice month's cycle; otherwise it is the range of equal length
// ending the day before the selected start.
func (s *Service) Summary(ctx context.Context, c Criteria) (Summary, error) {
	f, err := s.Resolve(c)
	if err != nil {
		return Summary{}, err
	}

	prev := f
	switch {
	case c.Month != nil:
		prev.Start, prev.End = billing.Range(c.Month.Add(-1))
	case c.Start.IsZero() && c.End.IsZero():
		prev.Start, prev.End = billing.Range(billing.Current(s.now()).Add(-1))
	default:
		span := f.End.Sub(f.Start)
		prev.End = f.Start.AddDate(0, 0, -1)
		prev.Start = prev.End.Add(-span)
	}

	cur, err := s.periodSummary(ctx, f)
	if err != nil {
		return Summary{}, err
	}
	before, err := s.periodSummary(ctx, prev)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{Current: cur, Previous: before}
	if before.Cents != 0 {
		pct := (float64(cur.Cents) - float64(before.Cents)) / float64(before.Cents) * 100
		out.PercentChange = &pct
	}
	return out, nil
}

func (s *Service) periodSummary(ctx context.Context, f Filter) (PeriodSummary, error) {
	t, err := s.store.Totals(ctx, f)
	if err != nil {
		return PeriodSummary{}, fmt.Errorf("aggregating %s to %s: %w",
			f.Start.Format("2006-01-02"), f.End.Format("2006-01-02"), err)
	}
	days := int(f.End.Sub(f.Start).Hours()/24) + 1
	ps := PeriodSummary{Start: f.Start, End: f.End, Cents: t.Cents, Count: t.Count}
	if days > 0 {
		ps.DailyCents = float64(t.Cents) / float64(days)
	}
	return ps, nil
}

// Breakdown groups the filtered rows by the dimension, descending by total.
// Values with no matching rows are omitted.
func (s *Service) Breakdown(ctx context.Context, c Criteria, dim Dimension) ([]Bucket, error) {
	if _, err := ParseDimension(string(dim)); err != nil {
		return nil, err
	}
	f, err := s.Resolve(c)
	if err != nil {
		return nil, err
	}
	buckets, err := s.store.Breakdown(ctx, f, dim)
	if err != nil {
		return nil, fmt.Errorf("breakdown by %s: %w", dim, err)
	}
	return buckets, nil
}

// Trend produces a month-over-month series: for each of the last window
// invoice months ending at the criteria's month (or the current one), a
// breakdown by the dimension. Months with no rows contribute no points.
func (s *Service) Trend(ctx context.Context, c Criteria, dim Dimension, window int) ([]TrendPoint, error) {
	if _, err := ParseDimension(string(dim)); err != nil {
		return nil, err
	}
	if window <= 0 {
		window = DefaultTrendWindow
	}
	if window > MaxTrendWindow {
		window = MaxTrendWindow
	}

	anchor := billing.Current(s.now())
	if c.Month != nil {
		anchor = *c.Month
	} else if !c.End.IsZero() {
		anchor = billing.For(c.End)
	}

	var series []TrendPoint
	for i := window - 1; i >= 0; i-- {
		m := anchor.Add(-i)
		mc := c
		mc.Month = &m
		mc.Start, mc.End = time.Time{}, time.Time{}
		f, err := s.Resolve(mc)
		if err != nil {
			return nil, err
		}
		buckets, err := s.store.Breakdown(ctx, f, dim)
		if err != nil {
			return nil, fmt.Errorf("trend month %s: %w", m, err)
		}
		for _, b := range buckets {
			series = append(series, TrendPoint{Period: m, Value: b.Value, Cents: b.Cents, Count: b.Count})
		}
	}
	return series, nil
}

// Metadata returns the filter widget data: enum lists, overall date bounds,
// the invoice months that have records, and the current invoice month.
func (s *Service) Metadata(ctx context.Context) (Metadata, error) {
	md := Metadata{
		Methods:    core.Methods(),
		Tags:       core.Tags(),
		Categories: core.Categories(),
		Current:    billing.Current(s.now()),
	}

	min, max, ok, err := s.store.Bounds(ctx)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading date bounds: %w", err)
	}
	if !ok {
		return md, nil
	}
	md.MinDate, md.MaxDate = &min, &max

	dates, err := s.store.Dates(ctx)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading expense dates: %w", err)
	}
	seen := make(map[billing.InvoiceMonth]bool)
	for _, d := range dates {
		seen[billing.For(d)] = true
	}
	md.Months = make([]billing.InvoiceMonth, 0, len(seen))
	for m := range seen {
		md.Months = append(md.Months, m)
	}
	sort.Slice(md.Months, func(i, j int) bool { return md.Months[i].Before(md.Months[j]) })
	return md, nil
}
