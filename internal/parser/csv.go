package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
)

var delimiterCandidates = []rune{',', ';', '\t', '|'}

const sniffSampleSize = 8 * 1024

type csvSource struct {
	r *csv.Reader
}

func newCSVSource(br *bufio.Reader) (source, error) {
	if b, err := br.Peek(len(bom)); err == nil && string(b) == bom {
		_, _ = br.Discard(len(bom))
	}
	sample, err := br.Peek(sniffSampleSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, err
	}

	r := csv.NewReader(br)
	r.Comma = sniffDelimiter(sample)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	return &csvSource{r: r}, nil
}

func (s *csvSource) next() ([]string, int, error) {
	record, err := s.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, io.EOF
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return nil, pe.Line, errSkipRecord
		}
		return nil, 0, err
	}
	line, _ := s.r.FieldPos(0)
	return record, line, nil
}

func (s *csvSource) close() error { return nil }

// sniffDelimiter picks the candidate that splits the most leading lines into
// the same number of fields. A delimiter that only shows up inside some
// values (commas in descriptions, decimal commas) splits lines unevenly and
// loses to the one the header and rows share. Quoted sections are ignored;
// ties go to the wider split, then to the earlier candidate.
func sniffDelimiter(sample []byte) rune {
	lines := bytes.Split(sample, []byte("\n"))
	if len(sample) >= sniffSampleSize && len(lines) > 1 {
		// the last line of a full sample may be truncated
		lines = lines[:len(lines)-1]
	}
	if len(lines) > 10 {
		lines = lines[:10]
	}

	best, bestLines, bestFields := ',', 0, 0
	for _, d := range delimiterCandidates {
		counts := make(map[int]int)
		for _, line := range lines {
			line = bytes.TrimRight(line, "\r")
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			if n := countOutsideQuotes(line, byte(d)); n > 0 {
				counts[n+1]++
			}
		}
		for fields, n := range counts {
			if n > bestLines || (n == bestLines && fields > bestFields) {
				best, bestLines, bestFields = d, n, fields
			}
		}
	}
	return best
}

func countOutsideQuotes(line []byte, d byte) int {
	n, quoted := 0, false
	for _, c := range line {
		switch {
		case c == '"':
			quoted = !quoted
		case c == d && !quoted:
			n++
		}
	}
	return n
}
