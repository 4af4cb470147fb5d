package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar date format used for storage and transport.
const DateLayout = "2006-01-02"

const (
	Weekly     Frequency = "weekly"
	Monthly    Frequency = "monthly"
	Quarterly  Frequency = "quarterly"
	SemiAnnual Frequency = "semiannual"
	Yearly     Frequency = "yearly"
)

const (
	KindExpense  CategoryKind = "expense"
	KindIncome   CategoryKind = "income"
	KindTravel   CategoryKind = "travel"
	maxDescLen                = 500
	maxLabelLen               = 200
)

type (
	Frequency    string
	CategoryKind string

	// Date is a calendar date at midnight UTC.
	Date struct {
		time.Time
	}

	// Period is an inclusive range of calendar dates.
	Period struct {
		Start Date
		End   Date
	}

	Transaction struct {
		ID          int64           `json:"id"`
		Date        Date            `json:"date"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Category    string          `json:"category,omitempty"` // empty means uncategorized
		SourceFile  string          `json:"source_file,omitempty"`
		ImportID    string          `json:"import_id,omitempty"`
		CreatedAt   time.Time       `json:"created_at"`
	}

	RecurringExpense struct {
		ID        int64           `json:"id"`
		Label     string          `json:"label"`
		Amount    decimal.Decimal `json:"amount"`
		Frequency Frequency       `json:"frequency"`
		Start     Date            `json:"start_date"`
		End       Date            `json:"end_date"` // zero means open-ended
		Category  string          `json:"category,omitempty"`
	}

	TravelEntry struct {
		ID            int64           `json:"id"`
		Date          Date            `json:"date"`
		Amount        decimal.Decimal `json:"amount"` // positive allocation, negative expense
		Description   string          `json:"description"`
		TransactionID *int64          `json:"transaction_id,omitempty"`
	}

	Category struct {
		Name string       `json:"name"`
		Kind CategoryKind `json:"kind"`
	}

	// ImportRecord describes one completed file import.
	ImportRecord struct {
		ID         string    `json:"id"`
		FileName   string    `json:"file_name"`
		Format     string    `json:"format"`
		ImportedAt time.Time `json:"imported_at"`
		Accepted   int       `json:"accepted"`
		Rejected   int       `json:"rejected"`
		Duplicates int       `json:"duplicates"`
		Skipped    int       `json:"skipped"`
	}

	// DedupKey identifies transactions that are considered the same ledger line.
	DedupKey struct {
		Date        string
		Amount      string
		Description string
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a strict YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, Validationf("invalid date %q", s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return Validationf("date cannot be zero")
	}
	return nil
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// AddMonths adds n months keeping the day of month, clamped to the last day
// of the target month (Jan 31 + 1 month = Feb 28/29).
func (d Date) AddMonths(n int) Date {
	y, m, day := d.Date()
	target := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := target.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return Date{Time: time.Date(target.Year(), target.Month(), day, 0, 0, 0, 0, time.UTC)}
}

// DaysUntil returns the number of days from d to o (negative if o is earlier).
func (d Date) DaysUntil(o Date) int {
	return int(o.Sub(d.Time).Hours() / 24)
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		if string(b) == "null" {
			*d = Date{}
			return nil
		}
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthPeriod returns the period covering a whole calendar month.
func MonthPeriod(year, month int) Period {
	start := NewDate(year, month, 1)
	return Period{Start: start, End: start.AddMonths(1).AddDays(-1)}
}

// Days returns the inclusive length of the period, zero when End precedes Start.
func (p Period) Days() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return p.Start.DaysUntil(p.End) + 1
}

func (p Period) Contains(d Date) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

func (p Period) String() string {
	return fmt.Sprintf("%s..%s", p.Start, p.End)
}

// ParseFrequency maps user input onto a supported frequency.
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case Weekly, Monthly, Quarterly, SemiAnnual, Yearly:
		return f, nil
	case "semi-annually", "semiannually", "semi-annual":
		return SemiAnnual, nil
	case "annually", "annual":
		return Yearly, nil
	default:
		return "", Configf("unsupported frequency %q", s)
	}
}

// CanonicalAmount renders an amount in the form used for equality and storage.
func CanonicalAmount(a decimal.Decimal) string {
	return a.String()
}

// Key returns the dedup identity of the transaction.
func (t Transaction) Key() DedupKey {
	return DedupKey{
		Date:        t.Date.String(),
		Amount:      CanonicalAmount(t.Amount),
		Description: t.Description,
	}
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Amount.IsZero() {
		return Validationf("amount cannot be zero")
	}
	if len(t.Description) > maxDescLen {
		return Validationf("description too long (max %d characters)", maxDescLen)
	}
	return nil
}

func (re RecurringExpense) Validate() error {
	if strings.TrimSpace(re.Label) == "" {
		return Validationf("label cannot be empty")
	}
	if len(re.Label) > maxLabelLen {
		return Validationf("label too long (max %d characters)", maxLabelLen)
	}
	if re.Amount.IsZero() {
		return Validationf("amount cannot be zero")
	}
	if _, err := ParseFrequency(string(re.Frequency)); err != nil {
		return err
	}
	if err := re.Start.Validate(); err != nil {
		return Validationf("invalid start date")
	}
	if !re.End.IsZero() && re.End.Before(re.Start) {
		return Validationf("end date %s is before start date %s", re.End, re.Start)
	}
	return nil
}

func (e TravelEntry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if e.Amount.IsZero() {
		return Validationf("amount cannot be zero")
	}
	if len(e.Description) > maxDescLen {
		return Validationf("description too long (max %d characters)", maxDescLen)
	}
	return nil
}

func (k CategoryKind) Valid() bool {
	switch k {
	case KindExpense, KindIncome, KindTravel:
		return true
	}
	return false
}
