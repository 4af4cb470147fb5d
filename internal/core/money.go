// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts as they appear in
// bank statement exports and for formatting amounts for display.
package core

import (
	"strings"
	"unicode"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ParseAmount converts a statement amount string to a signed decimal.
//
// It tolerates currency symbols and ISO codes, thousands separators in both
// the 1,234.56 and 1.234,56 styles, parentheses and trailing minus for
// negatives, and CR/DR suffixes.
//
// Examples:
//
//	ParseAmount("$1,234.56")  -> 1234.56
//	ParseAmount("(50.00)")    -> -50
//	ParseAmount("1.234,56 €") -> 1234.56
//	ParseAmount("12,34")      -> 12.34
//	ParseAmount("20.00 DR")   -> -20
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, Validationf("empty amount")
	}

	negative := false
	if n := len(s); n > 2 {
		switch suffix := s[n-2:]; {
		case strings.EqualFold(suffix, "DR"):
			negative = true
			s = strings.TrimSpace(s[:n-2])
		case strings.EqualFold(suffix, "CR"):
			s = strings.TrimSpace(s[:n-2])
		}
	}

	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = !negative
		s = s[1 : len(s)-1]
	}

	s, ok := stripCurrency(s)
	if !ok {
		return decimal.Zero, Validationf("invalid amount %q", raw)
	}

	switch {
	case strings.HasPrefix(s, "-"):
		negative = !negative
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		negative = !negative
		s = s[:len(s)-1]
	}

	s = normalizeSeparators(s)
	if !isPlainNumber(s) {
		return decimal.Zero, Validationf("invalid amount %q", raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, Validationf("invalid amount %q", raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// stripCurrency drops whitespace, currency symbols and a leading or trailing
// three letter currency code. Any other letter makes the amount invalid.
func stripCurrency(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = trimCode(s, true)
	s = trimCode(s, false)

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r), r == '.', r == ',', r == '-', r == '+':
			b.WriteRune(r)
		case unicode.IsSpace(r), unicode.Is(unicode.Sc, r), r == '\'':
		default:
			return "", false
		}
	}
	return b.String(), true
}

func trimCode(s string, leading bool) string {
	n := 0
	if leading {
		for _, r := range s {
			if !unicode.IsLetter(r) {
				break
			}
			n++
		}
		if n == 3 {
			return strings.TrimSpace(s[3:])
		}
		return s
	}
	rs := []rune(s)
	for i := len(rs) - 1; i >= 0 && unicode.IsLetter(rs[i]); i-- {
		n++
	}
	if n == 3 {
		return strings.TrimSpace(string(rs[:len(rs)-3]))
	}
	return s
}

// normalizeSeparators returns the number with '.' as the only decimal point.
func normalizeSeparators(s string) string {
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")
	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		i := strings.Index(s, ",")
		intPart, frac := s[:i], s[i+1:]
		if len(frac) == 3 && intPart != "" && intPart != "0" {
			return intPart + frac
		}
		return intPart + "." + frac
	case dots > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

func isPlainNumber(s string) bool {
	if s == "" || s == "." {
		return false
	}
	seenDot := false
	for _, r := range s {
		switch {
		case r == '.':
			if seenDot {
				return false
			}
			seenDot = true
		case r < '0' || r > '9':
			return false
		}
	}
	return true
}

// FormatAmount renders an amount for display in the given ISO currency.
// Unknown currency codes fall back to a plain two-decimal rendering.
func FormatAmount(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return strings.TrimSpace(amount.StringFixed(2) + " " + currency)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}
