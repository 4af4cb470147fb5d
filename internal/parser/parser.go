// Package parser turns bank statement exports into a stream of raw rows.
//
// A File discovers its header once, mapping whatever column names the bank
// used onto the canonical date, amount and description fields. Debit and
// credit columns are merged into a single signed amount. Values are otherwise
// left as text; validation belongs to the normalizer.
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"budgetledger/internal/core"
)

// maxHeaderScan bounds how many leading records may be preamble.
const maxHeaderScan = 20

// errSkipRecord marks a record that could not be decoded but does not stop the file.
var errSkipRecord = errors.New("skip record")

// Row is one statement line mapped onto canonical fields.
type Row struct {
	Line        int    // 1-based position in the source
	Date        string // as found, or ISO for spreadsheet date cells
	Amount      string // signed; debit/credit already merged
	Description string
}

// source yields raw records. It returns io.EOF at the end and errSkipRecord
// for records it could not decode.
type source interface {
	next() (record []string, line int, err error)
	close() error
}

// File is an opened statement. Rows can be ranged over once.
type File struct {
	Name    string
	Format  Format
	Columns Columns

	src         source
	serialDates bool
	skipped     int
	consumed    bool
}

// Open detects the format of r, locates the header row, and resolves the
// column mapping. The returned File streams the remaining records.
func Open(r io.Reader, name string, hints Hints) (*File, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, core.Parsef("read %s: %v", name, err)
	}
	if len(strings.TrimSpace(strings.TrimPrefix(string(head), bom))) == 0 {
		return nil, core.Parsef("%s is empty", name)
	}

	format, err := DetectFormat(name, head)
	if err != nil {
		return nil, err
	}

	var src source
	switch format {
	case FormatXLSX:
		src, err = newXLSXSource(br)
	case FormatXLS:
		src, err = newXLSSource(br)
	default:
		src, err = newCSVSource(br)
	}
	if err != nil {
		return nil, core.Parsef("decode %s as %s: %v", name, format, err)
	}

	f := &File{
		Name:        filepath.Base(name),
		Format:      format,
		src:         src,
		serialDates: format != FormatCSV,
	}
	if err := f.findHeader(aliasTable(hints)); err != nil {
		src.close()
		return nil, err
	}
	return f, nil
}

func (f *File) findHeader(aliases map[string][]string) error {
	for scanned := 0; scanned < maxHeaderScan; {
		record, _, err := f.src.next()
		switch {
		case errors.Is(err, io.EOF):
			return core.Parsef("%s: no header with date and amount columns", f.Name)
		case errors.Is(err, errSkipRecord):
			f.skipped++
			continue
		case err != nil:
			return core.Parsef("%s: %v", f.Name, err)
		}
		if blank(record) {
			continue
		}
		scanned++
		if cols, ok := resolveColumns(record, aliases); ok {
			f.Columns = cols
			return nil
		}
	}
	return core.Parsef("%s: no header with date and amount columns in the first %d rows", f.Name, maxHeaderScan)
}

// Rows streams the data rows in file order. Undecodable records are skipped
// and counted; a read failure is yielded once as a ParseError and ends the
// sequence. The source is closed when iteration finishes.
func (f *File) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		if f.consumed {
			yield(Row{}, core.Parsef("%s: rows already consumed", f.Name))
			return
		}
		f.consumed = true
		defer f.src.close()

		for {
			record, line, err := f.src.next()
			switch {
			case errors.Is(err, io.EOF):
				return
			case errors.Is(err, errSkipRecord):
				f.skipped++
				continue
			case err != nil:
				yield(Row{}, core.Parsef("%s line %d: %v", f.Name, line, err))
				return
			}
			if blank(record) {
				continue
			}
			if !validUTF8(record) {
				f.skipped++
				continue
			}
			if !yield(f.row(record, line), nil) {
				return
			}
		}
	}
}

// Skipped reports how many records could not be decoded so far.
func (f *File) Skipped() int {
	return f.skipped
}

// Close releases the underlying source. It is safe to call more than once.
func (f *File) Close() error {
	return f.src.close()
}

func (f *File) row(record []string, line int) Row {
	cell := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	r := Row{
		Line:        line,
		Date:        cell(f.Columns.Date),
		Description: cell(f.Columns.Description),
	}
	if f.serialDates {
		r.Date = fromSerial(r.Date)
	}

	amount := cell(f.Columns.Amount)
	if amount == "" && (f.Columns.Debit >= 0 || f.Columns.Credit >= 0) {
		amount = mergeDebitCredit(cell(f.Columns.Debit), cell(f.Columns.Credit))
	}
	r.Amount = amount
	return r
}

// mergeDebitCredit folds separate debit and credit cells into one signed
// amount: debits become outflows, credits inflows. Unparseable input is
// passed through so the normalizer rejects the row.
func mergeDebitCredit(debit, credit string) string {
	if debit == "" && credit == "" {
		return ""
	}
	total := decimal.Zero
	if debit != "" {
		d, err := core.ParseAmount(debit)
		if err != nil {
			return debit
		}
		total = total.Sub(d.Abs())
	}
	if credit != "" {
		c, err := core.ParseAmount(credit)
		if err != nil {
			return credit
		}
		total = total.Add(c.Abs())
	}
	return total.String()
}

// fromSerial converts a spreadsheet date serial to ISO. Other values are
// returned unchanged.
func fromSerial(v string) string {
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil || serial < 1 || serial > 2958465 {
		return v
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return v
	}
	return t.UTC().Format(time.DateOnly)
}

func blank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func validUTF8(record []string) bool {
	for _, c := range record {
		if !utf8.ValidString(c) {
			return false
		}
	}
	return true
}

func (r Row) String() string {
	return fmt.Sprintf("line %d: %s | %s | %s", r.Line, r.Date, r.Amount, r.Description)
}
