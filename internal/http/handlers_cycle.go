package http

import (
	"net/http"
	"time"

	"gastos/internal/billing"
)

type cycleJSON struct {
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	Period     string `json:"period"`
	Start      string `json:"start"`
	End        string `json:"end"`
	LengthDays int    `json:"length_days"`
	DayOfCycle int    `json:"day_of_cycle,omitempty"`
}

func toCycleJSON(m billing.InvoiceMonth) cycleJSON {
	start, end := billing.Range(m)
	return cycleJSON{
		Year:       m.Year,
		Month:      int(m.Month),
		Period:     m.String(),
		Start:      start.Format(dateLayout),
		End:        end.Format(dateLayout),
		LengthDays: billing.LengthDays(m),
	}
}

func (s *Server) handleCycleRange(w http.ResponseWriter, r *http.Request) {
	m, ok, err := parseInvoiceMonth(r.URL.Query())
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		respondError(w, r, http.StatusBadRequest, "year and month are required")
		return
	}
	respondJSON(w, http.StatusOK, toCycleJSON(m))
}

func (s *Server) handleCycleCurrent(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	out := toCycleJSON(billing.Current(now))
	out.DayOfCycle = billing.DayOfCycle(now)
	respondJSON(w, http.StatusOK, out)
}
