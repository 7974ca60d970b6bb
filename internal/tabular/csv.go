// Package tabular reads and writes the row-oriented files the dataset is kept in.
package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Source yields one row per call and io.EOF when exhausted.
// *csv.Reader satisfies it.
type Source interface {
	Read() ([]string, error)
}

// NewCSVSource wraps r in a CSV reader. A leading UTF-8 BOM is dropped and
// every row must have as many fields as the first one.
func NewCSVSource(r io.Reader) Source {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = 0
	return reader
}

// ReadCSV reads every row of r, header included.
func ReadCSV(r io.Reader) ([][]string, error) {
	src := NewCSVSource(r)
	var rows [][]string
	for {
		row, err := src.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		rows = append(rows, row)
	}
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// RowSource serves rows that are already in memory, such as a parsed
// spreadsheet. Rows are padded or trimmed of trailing blanks to the width of
// the first row; a row with extra non-blank cells is an error.
type RowSource struct {
	rows  [][]string
	next  int
	width int
}

// NewRowSource creates a Source over rows.
func NewRowSource(rows [][]string) *RowSource {
	s := &RowSource{rows: rows}
	if len(rows) > 0 {
		s.width = len(trimTrailingBlank(rows[0]))
	}
	return s
}

// Read implements Source.
func (s *RowSource) Read() ([]string, error) {
	if s.next >= len(s.rows) {
		return nil, io.EOF
	}
	line := s.next + 1
	row := trimTrailingBlank(s.rows[s.next])
	s.next++

	if len(row) > s.width {
		return nil, eris.Errorf("row %d: wrong number of fields (%d, want %d)", line, len(row), s.width)
	}
	out := make([]string, s.width)
	copy(out, row)
	return out, nil
}

func trimTrailingBlank(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return row[:end]
}
