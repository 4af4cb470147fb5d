package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateAddMonthsClamps(t *testing.T) {
	cases := []struct {
		from Date
		n    int
		want string
	}{
		{NewDate(2024, 1, 31), 1, "2024-02-29"},
		{NewDate(2023, 1, 31), 1, "2023-02-28"},
		{NewDate(2024, 1, 15), 1, "2024-02-15"},
		{NewDate(2024, 11, 30), 3, "2025-02-28"},
		{NewDate(2024, 2, 29), 12, "2025-02-28"},
		{NewDate(2024, 3, 31), -1, "2024-02-29"},
	}
	for _, tc := range cases {
		if got := tc.from.AddMonths(tc.n).String(); got != tc.want {
			t.Fatalf("%s + %d months = %s, want %s", tc.from, tc.n, got, tc.want)
		}
	}
}

func TestPeriodDays(t *testing.T) {
	if got := MonthPeriod(2024, 2).Days(); got != 29 {
		t.Fatalf("feb 2024 days = %d", got)
	}
	if got := MonthPeriod(2023, 12).End.String(); got != "2023-12-31" {
		t.Fatalf("dec 2023 end = %s", got)
	}
	empty := Period{Start: NewDate(2024, 3, 2), End: NewDate(2024, 3, 1)}
	if got := empty.Days(); got != 0 {
		t.Fatalf("inverted period days = %d", got)
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		D Date `json:"d"`
	}{NewDate(2024, 1, 5)})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"d":"2024-01-05"}` {
		t.Fatalf("marshal = %s", b)
	}

	var out struct {
		D Date `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2024-02-29"}`), &out); err != nil {
		t.Fatal(err)
	}
	if !out.D.Equal(NewDate(2024, 2, 29)) {
		t.Fatalf("unmarshal = %s", out.D)
	}
	if err := json.Unmarshal([]byte(`{"d":"29/02/2024"}`), &out); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseFrequency(t *testing.T) {
	cases := map[string]Frequency{
		"weekly":        Weekly,
		"Monthly":       Monthly,
		" quarterly":    Quarterly,
		"semi-annually": SemiAnnual,
		"yearly":        Yearly,
		"annually":      Yearly,
	}
	for in, want := range cases {
		got, err := ParseFrequency(in)
		if err != nil || got != want {
			t.Fatalf("ParseFrequency(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFrequency("daily"); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected config error for daily, got %v", err)
	}
}

func TestTransactionKeyUsesAmountValue(t *testing.T) {
	a := Transaction{Date: NewDate(2024, 1, 5), Amount: decimal.RequireFromString("-50.00"), Description: "Coffee"}
	b := Transaction{Date: NewDate(2024, 1, 5), Amount: decimal.RequireFromString("-50"), Description: "Coffee"}
	if a.Key() != b.Key() {
		t.Fatalf("keys differ: %+v vs %+v", a.Key(), b.Key())
	}
}

func TestRecurringExpenseValidate(t *testing.T) {
	good := RecurringExpense{
		Label:     "Rent",
		Amount:    decimal.NewFromInt(-1200),
		Frequency: Monthly,
		Start:     NewDate(2024, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		mut  func(*RecurringExpense)
		kind error
	}{
		{"empty label", func(r *RecurringExpense) { r.Label = " " }, ErrValidation},
		{"zero amount", func(r *RecurringExpense) { r.Amount = decimal.Zero }, ErrValidation},
		{"bad frequency", func(r *RecurringExpense) { r.Frequency = "fortnightly" }, ErrConfig},
		{"zero start", func(r *RecurringExpense) { r.Start = Date{} }, ErrValidation},
		{"end before start", func(r *RecurringExpense) { r.End = NewDate(2023, 12, 31) }, ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			re := good
			tc.mut(&re)
			if err := re.Validate(); !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestKind(t *testing.T) {
	err := NotFoundf("transaction %d", 7)
	if Kind(err) != ErrNotFound {
		t.Fatalf("Kind = %v", Kind(err))
	}
	if Kind(errors.New("boom")) != nil {
		t.Fatalf("expected nil kind for plain error")
	}
	if err.Error() != "not found: transaction 7" {
		t.Fatalf("message = %q", err.Error())
	}
}
