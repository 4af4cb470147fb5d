package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"-50.00", "-50", true},
		{"50.00-", "-50", true},
		{"(50.00)", "-50", true},
		{"$1,234.56", "1234.56", true},
		{"-$1,234.56", "-1234.56", true},
		{"1.234,56 €", "1234.56", true},
		{"12,34", "12.34", true},
		{"1,234", "1234", true},
		{"0,500", "0.5", true},
		{"1.234.567", "1234567", true},
		{"EUR 12.50", "12.5", true},
		{"12.50 USD", "12.5", true},
		{"20.00 DR", "-20", true},
		{"20.00 CR", "20", true},
		{"+3.10", "3.1", true},
		{" 2.50 ", "2.5", true},
		{"1'000.00", "1000", true},
		{"", "", false},
		{"-", "", false},
		{"abc", "", false},
		{"1.2.3,4,5", "", false},
		{"12x4", "", false},
		{"1e5", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("%q: unexpected error %v", tc.in, err)
			}
			if !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s", tc.in, tc.out, got)
			}
			continue
		}
		if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("%q expected validation error, got %v", tc.in, err)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		want     string
	}{
		{"12.5", "USD", "$12.50"},
		{"-1234.56", "USD", "-$1,234.56"},
		{"3", "XXX_UNKNOWN", "3.00 XXX_UNKNOWN"},
		{"3", "", "3.00"},
	}
	for _, tc := range cases {
		got := FormatAmount(decimal.RequireFromString(tc.amount), tc.currency)
		if got != tc.want {
			t.Fatalf("FormatAmount(%s, %s) = %q, want %q", tc.amount, tc.currency, got, tc.want)
		}
	}
}
