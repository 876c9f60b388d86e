// Package core provides the domain types shared by every layer: expense
// records, the closed method/tag/category enumerations, and money handling.
//
// This file contains parsing and formatting of monetary amounts. Amounts are
// kept as integer cents; floats only appear at the display boundary.
package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var currencyPrefixRE = regexp.MustCompile(`^[Rr]\$\s?`)

// thousandsCommaDecimalRE matches Brazilian-style amounts such as "1.234,56".
var thousandsCommaDecimalRE = regexp.MustCompile(`^\d{1,3}(\.\d{3})+,\d{1,2}$`)

// ParseAmountToCents converts a decimal amount string to cents with half-up
// rounding on the third decimal place.
//
// It accepts dot and comma decimal separators, Brazilian thousand separators,
// and an optional "R$" prefix:
//
//	ParseAmountToCents("12.34")       -> 1234
//	ParseAmountToCents("35,50")       -> 3550
//	ParseAmountToCents("1.234,56")    -> 123456
//	ParseAmountToCents("R$ 1.234,56") -> 123456
//
// Only strictly positive amounts are valid.
func ParseAmountToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = currencyPrefixRE.ReplaceAllString(s, "")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if thousandsCommaDecimalRE.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if r < '0' || r > '9' {
			return 0, ErrInvalidAmount
		}
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}

	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}

	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// BRL formats cents as a Brazilian currency string, e.g. "R$ 1.234,56".
func (m Money) BRL() string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)

	// Insert thousand separators right to left.
	var groups []string
	for len(whole) > 3 {
		groups = append([]string{whole[len(whole)-3:]}, groups...)
		whole = whole[:len(whole)-3]
	}
	groups = append([]string{whole}, groups...)

	s := fmt.Sprintf("R$ %s,%02d", strings.Join(groups, "."), cents%100)
	if neg {
		return "-" + s
	}
	return s
}

// Float returns the amount as a float64 for display and JSON purposes only.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}
