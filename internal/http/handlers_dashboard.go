package http

import (
	"net/http"

	"gastos/internal/billing"
	"gastos/internal/query"
)

type periodJSON struct {
	Start             string  `json:"start"`
	End               string  `json:"end"`
	TotalCents        int64   `json:"total_cents"`
	Count             int     `json:"count"`
	DailyAverageCents float64 `json:"daily_average_cents"`
}

type summaryJSON struct {
	Current       periodJSON `json:"current"`
	Previous      periodJSON `json:"previous"`
	PercentChange *float64   `json:"percent_change"`
}

func toPeriodJSON(p query.PeriodSummary) periodJSON {
	return periodJSON{
		Start:             p.Start.Format(dateLayout),
		End:               p.End.Format(dateLayout),
		TotalCents:        p.Cents,
		Count:             p.Count,
		DailyAverageCents: p.DailyCents,
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	key := r.URL.RawQuery
	if cached, ok := s.summaryCache.Get(key); ok {
		respondJSON(w, http.StatusOK, summaryJSON{
			Current:       toPeriodJSON(cached.Current),
			Previous:      toPeriodJSON(cached.Previous),
			PercentChange: cached.PercentChange,
		})
		return
	}

	c, err := parseCriteria(r.URL.Query())
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sum, err := s.queries.Summary(r.Context(), c)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	s.summaryCache.Set(key, sum)

	respondJSON(w, http.StatusOK, summaryJSON{
		Current:       toPeriodJSON(sum.Current),
		Previous:      toPeriodJSON(sum.Previous),
		PercentChange: sum.PercentChange,
	})
}

type bucketJSON struct {
	Value      string `json:"value"`
	TotalCents int64  `json:"total_cents"`
	Count      int    `json:"count"`
}

func toBucketJSON(buckets []query.Bucket) []bucketJSON {
	out := make([]bucketJSON, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, bucketJSON{Value: b.Value, TotalCents: b.Cents, Count: b.Count})
	}
	return out
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	key := r.URL.RawQuery
	if cached, ok := s.breakdownCache.Get(key); ok {
		respondJSON(w, http.StatusOK, map[string]any{"buckets": toBucketJSON(cached)})
		return
	}

	dim, err := query.ParseDimension(r.URL.Query().Get("dimension"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := parseCriteria(r.URL.Query())
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	buckets, err := s.queries.Breakdown(r.Context(), c, dim)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	s.breakdownCache.Set(key, buckets)
	respondJSON(w, http.StatusOK, map[string]any{"buckets": toBucketJSON(buckets)})
}

type trendPointJSON struct {
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	Period     string `json:"period"`
	Value      string `json:"value"`
	TotalCents int64  `json:"total_cents"`
	Count      int    `json:"count"`
}

func toTrendJSON(points []query.TrendPoint) []trendPointJSON {
	out := make([]trendPointJSON, 0, len(points))
	for _, p := range points {
		out = append(out, trendPointJSON{
			Year:       p.Period.Year,
			Month:      int(p.Period.Month),
			Period:     p.Period.String(),
			Value:      p.Value,
			TotalCents: p.Cents,
			Count:      p.Count,
		})
	}
	return out
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	key := r.URL.RawQuery
	if cached, ok := s.trendCache.Get(key); ok {
		respondJSON(w, http.StatusOK, map[string]any{"points": toTrendJSON(cached)})
		return
	}

	dim, err := query.ParseDimension(r.URL.Query().Get("dimension"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	window, err := parseWindow(r.URL.Query())
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := parseCriteria(r.URL.Query())
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	points, err := s.queries.Trend(r.Context(), c, dim, window)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	s.trendCache.Set(key, points)
	respondJSON(w, http.StatusOK, map[string]any{"points": toTrendJSON(points)})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	c, err := parseCriteria(r.URL.Query())
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.queries.Expenses(r.Context(), c)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	out := make([]expenseJSON, 0, len(rows))
	for _, e := range rows {
		out = append(out, toExpenseJSON(e, billing.For(e.Timestamp).String()))
	}
	respondJSON(w, http.StatusOK, map[string]any{"expenses": out, "count": len(out)})
}

type monthJSON struct {
	Year   int    `json:"year"`
	Month  int    `json:"month"`
	Period string `json:"period"`
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	md, err := s.queries.Metadata(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	months := make([]monthJSON, 0, len(md.Months))
	for _, m := range md.Months {
		months = append(months, monthJSON{Year: m.Year, Month: int(m.Month), Period: m.String()})
	}

	out := map[string]any{
		"methods":    md.Methods,
		"tags":       md.Tags,
		"categories": md.Categories,
		"months":     months,
		"current": monthJSON{
			Year:   md.Current.Year,
			Month:  int(md.Current.Month),
			Period: md.Current.String(),
		},
	}
	if md.MinDate != nil {
		out["min_date"] = md.MinDate.Format(dateLayout)
	}
	if md.MaxDate != nil {
		out["max_date"] = md.MaxDate.Format(dateLayout)
	}
	respondJSON(w, http.StatusOK, out)
}
