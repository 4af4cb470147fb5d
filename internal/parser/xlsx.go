package parser

import (
	"errors"
	"io"

	"github.com/xuri/excelize/v2"
)

// xlsxSource walks the first worksheet with excelize's row iterator.
type xlsxSource struct {
	file   *excelize.File
	rows   *excelize.Rows
	line   int
	closed bool
}

func newXLSXSource(r io.Reader) (source, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, err
	}
	return &xlsxSource{file: f, rows: rows}, nil
}

func (s *xlsxSource) next() ([]string, int, error) {
	if s.closed || !s.rows.Next() {
		if s.rows != nil && s.rows.Error() != nil {
			return nil, s.line, s.rows.Error()
		}
		return nil, s.line, io.EOF
	}
	s.line++
	// raw values keep date cells as serial numbers instead of locale-formatted text
	cols, err := s.rows.Columns(excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, s.line, errSkipRecord
	}
	return cols, s.line, nil
}

func (s *xlsxSource) close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.rows.Close(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
