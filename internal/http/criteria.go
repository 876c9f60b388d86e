package http

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"gastos/internal/billing"
	"gastos/internal/core"
	"gastos/internal/query"
)

const dateLayout = "2006-01-02"

// parseCriteria builds filter criteria from query parameters. Either
// year+month or start+end select the period; year+month wins when both are
// present. Enum parameters repeat for multi-select.
func parseCriteria(values url.Values) (query.Criteria, error) {
	var c query.Criteria

	month, ok, err := parseInvoiceMonth(values)
	if err != nil {
		return query.Criteria{}, err
	}
	if ok {
		c.Month = &month
	} else {
		if c.Start, err = parseDate(values, "start"); err != nil {
			return query.Criteria{}, err
		}
		if c.End, err = parseDate(values, "end"); err != nil {
			return query.Criteria{}, err
		}
	}

	for _, raw := range values["category"] {
		v, err := core.ParseCategory(raw)
		if err != nil {
			return query.Criteria{}, fmt.Errorf("category %q: %w", raw, err)
		}
		c.Categories = append(c.Categories, v)
	}
	for _, raw := range values["tag"] {
		v, err := core.ParseTag(raw)
		if err != nil {
			return query.Criteria{}, fmt.Errorf("tag %q: %w", raw, err)
		}
		c.Tags = append(c.Tags, v)
	}
	for _, raw := range values["method"] {
		v, err := core.ParseMethod(raw)
		if err != nil {
			return query.Criteria{}, fmt.Errorf("method %q: %w", raw, err)
		}
		c.Methods = append(c.Methods, v)
	}

	c.Search = values.Get("q")
	return c, nil
}

// parseInvoiceMonth reads year and month; ok is false when both are absent.
func parseInvoiceMonth(values url.Values) (billing.InvoiceMonth, bool, error) {
	rawYear, rawMonth := values.Get("year"), values.Get("month")
	if rawYear == "" && rawMonth == "" {
		return billing.InvoiceMonth{}, false, nil
	}
	if rawYear == "" || rawMonth == "" {
		return billing.InvoiceMonth{}, false, fmt.Errorf("year and month must be given together")
	}

	year, err := strconv.Atoi(rawYear)
	if err != nil || year < 1 {
		return billing.InvoiceMonth{}, false, fmt.Errorf("invalid year %q", rawYear)
	}
	month, err := strconv.Atoi(rawMonth)
	if err != nil || month < 1 || month > 12 {
		return billing.InvoiceMonth{}, false, fmt.Errorf("invalid month %q", rawMonth)
	}
	return billing.InvoiceMonth{Year: year, Month: time.Month(month)}, true, nil
}

func parseDate(values url.Values, key string) (time.Time, error) {
	raw := values.Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s date %q, want YYYY-MM-DD", key, raw)
	}
	return t, nil
}

// parseWindow reads the trend window; zero means the service default.
func parseWindow(values url.Values) (int, error) {
	raw := values.Get("window")
	if raw == "" {
		return 0, nil
	}
	window, err := strconv.Atoi(raw)
	if err != nil || window < 1 {
		return 0, fmt.Errorf("invalid window %q", raw)
	}
	return window, nil
}
