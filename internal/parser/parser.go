// Package parser turns free-text expense entries into validated domain
// records.
//
// An entry is a single line of dash-separated fields:
//
//	Value - Description - Method - Tag - Category
//	Value - Description - Method - Tag - Category - Installments
//
// Field matching is forgiving: amounts accept Brazilian formats and an
// optional "R$" prefix, and enum fields match ignoring case, accents, and
// extra whitespace.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gastos/internal/core"
)

var (
	ErrEmptyEntry = errors.New("empty entry")
	ErrFieldCount = errors.New("entry must have 5 or 6 dash-separated fields")
)

// sepRE splits entry fields on runs of dashes, semicolons, or pipes with
// surrounding whitespace. Commas are not separators so decimal amounts like
// "35,50" survive.
var sepRE = regexp.MustCompile(`\s*(?:-+|;|\|)\s*`)

// Parse converts one entry line into an Expense stamped with ts.
// The returned expense has no ID; the store assigns one on insert.
func Parse(entry string, ts time.Time) (core.Expense, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return core.Expense{}, ErrEmptyEntry
	}

	fields := sepRE.Split(entry, 6)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) < 5 {
		return core.Expense{}, fmt.Errorf("%w, got %d", ErrFieldCount, len(fields))
	}

	cents, err := core.ParseAmountToCents(fields[0])
	if err != nil {
		return core.Expense{}, fmt.Errorf("amount %q: %w", fields[0], err)
	}

	method, err := core.ParseMethod(fields[2])
	if err != nil {
		return core.Expense{}, fmt.Errorf("method %q: %w", fields[2], err)
	}
	tag, err := core.ParseTag(fields[3])
	if err != nil {
		return core.Expense{}, fmt.Errorf("tag %q: %w", fields[3], err)
	}
	category, err := core.ParseCategory(fields[4])
	if err != nil {
		return core.Expense{}, fmt.Errorf("category %q: %w", fields[4], err)
	}

	installments := 0
	if len(fields) == 6 {
		installments, err = strconv.Atoi(fields[5])
		if err != nil || installments < 1 {
			return core.Expense{}, fmt.Errorf("installments %q: %w", fields[5], core.ErrInvalidInstallments)
		}
	}

	e := core.Expense{
		Timestamp:    ts,
		Amount:       core.Money{Cents: cents},
		Description:  fields[1],
		Method:       method,
		Tag:          tag,
		Category:     category,
		Installments: installments,
		Parsed:       true,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}
