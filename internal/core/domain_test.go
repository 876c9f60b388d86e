package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseMethod(t *testing.T) {
	cases := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"Pix", MethodPix, false},
		{"pix", MethodPix, false},
		{"  PIX  ", MethodPix, false},
		{"credit card", MethodCreditCard, false},
		{"Credit  Card", MethodCreditCard, false},
		{"DEBIT CARD", MethodDebitCard, false},
		{"boleto", MethodBoleto, false},
		{"cash", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := ParseMethod(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidMethod) {
				t.Fatalf("ParseMethod(%q) error = %v, want ErrInvalidMethod", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseMethod(%q) unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseMethod(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseTag(t *testing.T) {
	cases := []struct {
		in      string
		want    Tag
		wantErr bool
	}{
		{"Personal Expenses", TagPersonal, false},
		{"personal expenses", TagPersonal, false},
		{"COUPLE EXPENSES", TagCouple, false},
		{"household expenses", TagHousehold, false},
		{"work", "", true},
	}
	for _, tc := range cases {
		got, err := ParseTag(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidTag) {
				t.Fatalf("ParseTag(%q) error = %v, want ErrInvalidTag", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseTag(%q) unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseTag(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseCategoryAccentInsensitive(t *testing.T) {
	cases := []struct {
		in   string
		want Category
	}{
		{"Groceries", CategoryGroceries},
		{"groceries", CategoryGroceries},
		{"HEALTH", CategoryHealth},
		{"Pharmácy", CategoryPharmacy},
		{"Éducation", CategoryEducation},
		{"  travel ", CategoryTravel},
	}
	for _, tc := range cases {
		got, err := ParseCategory(tc.in)
		if err != nil {
			t.Fatalf("ParseCategory(%q) unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseCategory(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	if _, err := ParseCategory("crypto"); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("ParseCategory(crypto) error = %v, want ErrInvalidCategory", err)
	}
}

func TestEnumSizes(t *testing.T) {
	if got := len(Methods()); got != 4 {
		t.Fatalf("Methods() has %d values, want 4", got)
	}
	if got := len(Tags()); got != 3 {
		t.Fatalf("Tags() has %d values, want 3", got)
	}
	if got := len(Categories()); got != 16 {
		t.Fatalf("Categories() has %d values, want 16", got)
	}
}

func validExpense() Expense {
	return Expense{
		Timestamp:   time.Now(),
		Amount:      Money{Cents: 3550},
		Description: "market run",
		Method:      MethodPix,
		Tag:         TagPersonal,
		Category:    CategoryGroceries,
		Parsed:      true,
	}
}

func TestExpenseValidate(t *testing.T) {
	if err := validExpense().Validate(); err != nil {
		t.Fatalf("valid expense rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Expense)
		want   error
	}{
		{"zero amount", func(e *Expense) { e.Amount.Cents = 0 }, ErrInvalidAmount},
		{"negative amount", func(e *Expense) { e.Amount.Cents = -100 }, ErrInvalidAmount},
		{"empty description", func(e *Expense) { e.Description = "   " }, ErrEmptyDescription},
		{"bad method", func(e *Expense) { e.Method = "cash" }, ErrInvalidMethod},
		{"bad tag", func(e *Expense) { e.Tag = "work" }, ErrInvalidTag},
		{"bad category", func(e *Expense) { e.Category = "crypto" }, ErrInvalidCategory},
		{"non-canonical method", func(e *Expense) { e.Method = "pix" }, ErrInvalidMethod},
		{"non-canonical tag", func(e *Expense) { e.Tag = "personal expenses" }, ErrInvalidTag},
		{"non-canonical category", func(e *Expense) { e.Category = "GROCERIES" }, ErrInvalidCategory},
		{"negative installments", func(e *Expense) { e.Installments = -1 }, ErrInvalidInstallments},
	}
	for _, tc := range cases {
		e := validExpense()
		tc.mutate(&e)
		if err := e.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: Validate() = %v, want %v", tc.name, err, tc.want)
		}
	}

	long := validExpense()
	long.Description = strings.Repeat("x", 201)
	if err := long.Validate(); err == nil {
		t.Fatal("over-long description accepted")
	}
}
