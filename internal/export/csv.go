package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"symdir/internal/symbols"
	"symdir/models"
)

func encodeCSV(listings []models.Listing, cols []Column) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = string(c)
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	rec := make([]string, len(cols))
	for _, l := range listings {
		for i, c := range cols {
			rec[i] = c.value(l)
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseCSV reads a CSV export back into listings. Columns missing from the
// header keep their zero value.
func ParseCSV(r io.Reader) ([]models.Listing, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv export has no header")
	}
	if err != nil {
		return nil, err
	}

	cols := make([]Column, len(header))
	for i, h := range header {
		c, ok := lookupColumn(strings.TrimSpace(h))
		if !ok {
			return nil, fmt.Errorf("unknown column %q", h)
		}
		cols[i] = c
	}

	out := []models.Listing{}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		var l models.Listing
		for i, c := range cols {
			if err := setValue(&l, c, rec[i]); err != nil {
				line, _ := cr.FieldPos(i)
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		out = append(out, l)
	}
}

func setValue(l *models.Listing, c Column, v string) error {
	switch c {
	case ColSymbol:
		l.Symbol = v
	case ColName:
		l.Name = v
	case ColType:
		t, ok := symbols.ParseSecurityType(v)
		if !ok {
			return fmt.Errorf("invalid type %q", v)
		}
		l.IsETF = t == models.TypeETF
	case ColExchange:
		e, ok := symbols.ParseExchangeDetail(v)
		if !ok {
			return fmt.Errorf("invalid exchange %q", v)
		}
		l.Exchange = e
	case ColPrimary:
		l.Primary = models.PrimaryExchange(strings.ToUpper(v))
	case ColCategory:
		cat, ok := symbols.ParseMarketCategory(v)
		if !ok {
			return fmt.Errorf("invalid market category %q", v)
		}
		l.Category = cat
	case ColTestIssue:
		l.TestIssue = strings.EqualFold(v, "Y")
	case ColRetrievedAt:
		if v == "" {
			return nil
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return err
		}
		l.RetrievedAt = ts
	}
	return nil
}
