package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/extrame/xls"
)

// xlsSource reads the first sheet of a legacy BIFF workbook. The format needs
// random access, so the whole file is buffered.
type xlsSource struct {
	sheet  *xls.WorkSheet
	cursor int
	maxRow int
}

func newXLSSource(r io.Reader) (_ source, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	// the decoder panics on some malformed workbooks
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("corrupt workbook: %v", p)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb == nil {
		return nil, errors.New("no workbook stream in container")
	}
	if wb.NumSheets() == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("first sheet is unreadable")
	}
	return &xlsSource{sheet: sheet, maxRow: int(sheet.MaxRow)}, nil
}

func (s *xlsSource) next() (record []string, line int, err error) {
	if s.cursor > s.maxRow {
		return nil, s.cursor, io.EOF
	}
	i := s.cursor
	s.cursor++
	defer func() {
		if p := recover(); p != nil {
			record, err = nil, errSkipRecord
		}
	}()

	row := s.sheet.Row(i)
	if row == nil {
		return []string{}, i + 1, nil
	}
	record = make([]string, 0, row.LastCol()+1)
	for c := row.FirstCol(); c < row.LastCol(); c++ {
		for len(record) < c {
			record = append(record, "")
		}
		record = append(record, row.Col(c))
	}
	return record, i + 1, nil
}

func (s *xlsSource) close() error { return nil }
