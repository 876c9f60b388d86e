package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/query"
	"gastos/internal/services"
	"gastos/internal/storage"
)

type errorBody struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, _ *http.Request, status int, msg string) {
	respondJSON(w, status, errorBody{Error: msg})
}

// respondServiceError maps domain errors onto status codes. Anything
// unrecognized is a 500 with a generic body; the cause goes to the log only.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrUnavailable):
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "store unavailable", applog.FieldError, err)
		respondError(w, r, http.StatusServiceUnavailable, "expense data is temporarily unavailable")
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrNoBroker):
		respondError(w, r, http.StatusServiceUnavailable, "entry ingestion is not configured")
	case errors.Is(err, query.ErrInvalidRange),
		errors.Is(err, query.ErrInvalidDimension),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrInvalidMethod),
		errors.Is(err, core.ErrInvalidTag),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrInvalidInstallments):
		respondError(w, r, http.StatusBadRequest, err.Error())
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "request failed", applog.FieldError, err)
		respondError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// expenseJSON is the wire shape of one expense row.
type expenseJSON struct {
	ID                int64   `json:"id"`
	Timestamp         string  `json:"timestamp"`
	AmountCents       int64   `json:"amount_cents"`
	Amount            string  `json:"amount"`
	Description       string  `json:"description"`
	Method            string  `json:"method"`
	Tag               string  `json:"tag"`
	Category          string  `json:"category"`
	Installments      int     `json:"installments,omitempty"`
	InstallmentNumber int     `json:"installment_number,omitempty"`
	InvoicePeriod     string  `json:"invoice_period"`
	AmountFloat       float64 `json:"amount_value"`
}

func toExpenseJSON(e core.Expense, period string) expenseJSON {
	return expenseJSON{
		ID:                e.ID,
		Timestamp:         e.Timestamp.Format(time.RFC3339),
		AmountCents:       e.Amount.Cents,
		Amount:            e.Amount.BRL(),
		AmountFloat:       e.Amount.Float(),
		Description:       e.Description,
		Method:            string(e.Method),
		Tag:               string(e.Tag),
		Category:          string(e.Category),
		Installments:      e.Installments,
		InstallmentNumber: e.InstallmentNumber,
		InvoicePeriod:     period,
	}
}
