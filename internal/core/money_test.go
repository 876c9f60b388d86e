package core

import (
	"errors"
	"testing"
)

func TestParseAmountToCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"12.34", 1234},
		{"35,50", 3550},
		{"100", 10000},
		{"0,5", 50},
		{"0.5", 50},
		{"1.234,56", 123456},
		{"12.345.678,90", 1234567890},
		{"R$ 1.234,56", 123456},
		{"r$35,50", 3550},
		{"  42  ", 4200},
		{"9.999", 1000},
		{"0.005", 1},
		{"10.994", 1099},
		{"10.995", 1100},
	}
	for _, tc := range cases {
		got, err := ParseAmountToCents(tc.in)
		if err != nil {
			t.Fatalf("ParseAmountToCents(%q) unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseAmountToCents(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseAmountToCentsRejects(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"abc",
		"12,34,56",
		"-5",
		"+5",
		"0",
		"0,00",
		"12a",
		"R$",
	}
	for _, in := range cases {
		if _, err := ParseAmountToCents(in); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ParseAmountToCents(%q) error = %v, want ErrInvalidAmount", in, err)
		}
	}
}

func TestMoneyBRL(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "R$ 0,00"},
		{5, "R$ 0,05"},
		{1234, "R$ 12,34"},
		{123456, "R$ 1.234,56"},
		{1234567890, "R$ 12.345.678,90"},
		{-1234, "-R$ 12,34"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).BRL(); got != tc.want {
			t.Fatalf("Money{%d}.BRL() = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

func TestMoneyFloat(t *testing.T) {
	if got := (Money{Cents: 1234}).Float(); got != 12.34 {
		t.Fatalf("Money{1234}.Float() = %v, want 12.34", got)
	}
}
