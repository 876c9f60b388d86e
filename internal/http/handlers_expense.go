package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"gastos/internal/billing"
	"gastos/internal/core"
	applog "gastos/internal/log"
)

const maxBodyBytes = 16 << 10

type createExpenseRequest struct {
	// Amount is a decimal string, e.g. "35,50" or "1.234,56".
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Method      string `json:"method"`
	Tag         string `json:"tag"`
	Category    string `json:"category"`
	// Installments is optional; 0 or 1 means a single payment.
	Installments int `json:"installments"`
	// Timestamp is optional RFC 3339; missing means now.
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	cents, err := core.ParseAmountToCents(req.Amount)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	// Only canonical enum spellings are persisted; loose input is accepted
	// here and canonicalized.
	method, err := core.ParseMethod(req.Method)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	tag, err := core.ParseTag(req.Tag)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	category, err := core.ParseCategory(req.Category)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	// Dates are attributed to invoice months by the wall clock in the
	// configured zone.
	ts := time.Now().In(s.loc)
	if req.Timestamp != "" {
		ts, err = time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid timestamp, want RFC 3339")
			return
		}
		ts = ts.In(s.loc)
	}

	installments := req.Installments
	if installments == 1 {
		installments = 0
	}

	e := core.Expense{
		Timestamp:    ts,
		Amount:       core.Money{Cents: cents},
		Description:  strings.TrimSpace(req.Description),
		Method:       method,
		Tag:          tag,
		Category:     category,
		Installments: installments,
		Parsed:       true,
	}
	if err := e.Validate(); err != nil {
		respondServiceError(w, r, err)
		return
	}

	saved, err := s.expenses.Create(r.Context(), e)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	s.invalidateAggregates()

	applog.FromContext(r.Context()).InfoContext(r.Context(), "expense created",
		applog.FieldExpenseID, saved.ID,
		applog.FieldAmountCents, saved.Amount.Cents,
		applog.FieldCategory, string(saved.Category))

	respondJSON(w, http.StatusCreated, toExpenseJSON(saved, billing.For(saved.Timestamp).String()))
}

func (s *Server) handleUndoLast(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.expenses.UndoLast(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	s.invalidateAggregates()

	applog.FromContext(r.Context()).InfoContext(r.Context(), "last expense removed",
		applog.FieldExpenseID, deleted.ID)

	respondJSON(w, http.StatusOK, toExpenseJSON(deleted, billing.For(deleted.Timestamp).String()))
}

type submitEntryRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSubmitEntry(w http.ResponseWriter, r *http.Request) {
	var req submitEntryRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, r, http.StatusBadRequest, "text is required")
		return
	}

	if err := s.expenses.SubmitEntry(r.Context(), req.Text); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
