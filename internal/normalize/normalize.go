// Package normalize validates raw statement rows and turns them into
// canonical transactions, dropping rows already present in the ledger.
package normalize

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"budgetledger/internal/core"
	"budgetledger/internal/parser"
)

// maxRejections bounds how many rejected rows are reported back in detail.
const maxRejections = 50

// dateLayouts are tried in order; the first successful parse wins.
var dateLayouts = []string{
	// ISO
	"2006-01-02",
	"2006/01/02",
	"2006-1-2",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"20060102",
	// US
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"01-02-2006",
	"01-02-06",
	// day/month/year
	"02/01/2006",
	"2/1/2006",
	"02.01.2006",
	"2.1.2006",
	"02-01-2006",
	// textual
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"02-Jan-06",
}

// KeyCounter reports how many stored transactions carry a dedup key.
type KeyCounter interface {
	CountByKey(ctx context.Context, key core.DedupKey) (int, error)
}

// Rejection explains why a row was not accepted.
type Rejection struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Result tallies the outcome of one normalization run.
type Result struct {
	Accepted   int         `json:"accepted"`
	Rejected   int         `json:"rejected"`
	Duplicates int         `json:"duplicates"`
	Rejections []Rejection `json:"rejections,omitempty"`
}

// Processed is the number of rows seen so far.
func (r Result) Processed() int {
	return r.Accepted + r.Rejected + r.Duplicates
}

// Normalizer converts rows for one import. The zero value is usable.
type Normalizer struct {
	SourceFile string
	ImportID   string

	// OnProgress, when set, is called every ProgressEvery processed rows.
	ProgressEvery int
	OnProgress    func(Result)
}

type keyCount struct {
	stored  int
	matched int
}

// Normalize runs rows through a zero Normalizer.
func Normalize(ctx context.Context, rows iter.Seq2[parser.Row, error], existing KeyCounter, emit func(core.Transaction) error) (Result, error) {
	var n Normalizer
	return n.Normalize(ctx, rows, existing, emit)
}

// Normalize validates each row and passes accepted transactions to emit in
// row order. A row whose key is already stored is a duplicate only while this
// run has matched fewer copies than the store holds, so re-importing a file
// adds nothing while identical purchases in a new file are all kept.
//
// Invalid rows are counted and never abort the run. Errors from rows itself,
// existing, emit or ctx do.
func (n *Normalizer) Normalize(ctx context.Context, rows iter.Seq2[parser.Row, error], existing KeyCounter, emit func(core.Transaction) error) (Result, error) {
	var res Result
	seen := make(map[core.DedupKey]*keyCount)

	for row, err := range rows {
		if err != nil {
			return res, err
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		t, err := n.transaction(row)
		if err != nil {
			res.Rejected++
			if len(res.Rejections) < maxRejections {
				res.Rejections = append(res.Rejections, Rejection{Line: row.Line, Reason: err.Error()})
			}
			slog.DebugContext(ctx, "Row rejected", "file", n.SourceFile, "line", row.Line, "error", err)
			n.progress(res)
			continue
		}

		key := t.Key()
		c, ok := seen[key]
		if !ok {
			c = &keyCount{}
			if existing != nil {
				if c.stored, err = existing.CountByKey(ctx, key); err != nil {
					return res, fmt.Errorf("line %d: %w", row.Line, err)
				}
			}
			seen[key] = c
		}
		if c.matched < c.stored {
			c.matched++
			res.Duplicates++
			n.progress(res)
			continue
		}

		if err := emit(t); err != nil {
			return res, fmt.Errorf("line %d: %w", row.Line, err)
		}
		res.Accepted++
		n.progress(res)
	}
	return res, nil
}

func (n *Normalizer) progress(res Result) {
	if n.OnProgress == nil || n.ProgressEvery <= 0 {
		return
	}
	if res.Processed()%n.ProgressEvery == 0 {
		n.OnProgress(res)
	}
}

func (n *Normalizer) transaction(row parser.Row) (core.Transaction, error) {
	date, err := ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	if strings.TrimSpace(row.Amount) == "" {
		return core.Transaction{}, core.Validationf("missing amount")
	}
	amount, err := core.ParseAmount(row.Amount)
	if err != nil {
		return core.Transaction{}, err
	}

	t := core.Transaction{
		Date:        date,
		Amount:      amount,
		Description: strings.TrimSpace(row.Description),
		SourceFile:  n.SourceFile,
		ImportID:    n.ImportID,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// ParseDate accepts the date spellings commonly found in bank exports. ISO
// forms are tried first, then US month-first, then day-first, then textual
// month names.
func ParseDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, core.Validationf("missing date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() < 1900 || t.Year() > 2200 {
				break
			}
			return core.DateOf(t), nil
		}
	}
	return core.Date{}, core.Validationf("unrecognized date %q", s)
}
