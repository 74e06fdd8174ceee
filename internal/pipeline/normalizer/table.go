package normalizer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// table is one parsed pipe-delimited feed.
type table struct {
	feed    string
	columns map[string]int
	width   int
	rows    []row
}

type row struct {
	line   int
	fields []string
}

func (t *table) index(names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := t.columns[n]; ok {
			return i, true
		}
	}
	return -1, false
}

func (t *table) require(names ...string) (int, error) {
	i, ok := t.index(names...)
	if !ok {
		return -1, &ParseError{Feed: t.feed, Line: 1, Err: fmt.Errorf("%w: %s", ErrMissingColumn, names[0])}
	}
	return i, nil
}

// value returns the trimmed cell, or "" when the column is absent or the
// row is short.
func (r row) value(i int) string {
	if i < 0 || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func parseTable(feed string, data []byte) (*table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, &ParseError{Feed: feed, Err: ErrInvalidEncoding}
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = '|'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, &ParseError{Feed: feed, Line: 1, Err: errors.New("missing header row")}
	}
	if err != nil {
		return nil, &ParseError{Feed: feed, Line: 1, Err: err}
	}

	t := &table{feed: feed, columns: make(map[string]int, len(header)), width: len(header)}
	for i, name := range header {
		t.columns[strings.TrimSpace(name)] = i
	}

	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &ParseError{Feed: feed, Line: pe.Line, Err: pe.Err}
			}
			return nil, &ParseError{Feed: feed, Err: err}
		}
		line, _ := r.FieldPos(0)
		t.rows = append(t.rows, row{line: line, fields: fields})
	}
	return t, nil
}
