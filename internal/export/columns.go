package export

import (
	"fmt"
	"strings"
	"time"

	"symdir/models"
)

// Column is one exportable field of a listing, named by its header.
type Column string

const (
	ColSymbol      Column = "Symbol"
	ColName        Column = "Security Name"
	ColType        Column = "Type"
	ColExchange    Column = "Exchange"
	ColPrimary     Column = "Primary Exchange"
	ColCategory    Column = "Market Category"
	ColTestIssue   Column = "Test Issue"
	ColRetrievedAt Column = "Retrieved At"
)

var allColumns = []Column{ColSymbol, ColName, ColType, ColExchange, ColPrimary, ColCategory, ColTestIssue, ColRetrievedAt}

// DefaultColumns is the column set of the listing table.
func DefaultColumns() []Column {
	return []Column{ColSymbol, ColName, ColType, ColExchange, ColCategory}
}

// AllColumns returns every exportable column.
func AllColumns() []Column {
	out := make([]Column, len(allColumns))
	copy(out, allColumns)
	return out
}

// ParseColumns resolves header names case-insensitively. Empty input yields
// DefaultColumns.
func ParseColumns(names []string) ([]Column, error) {
	var out []Column
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			c, ok := lookupColumn(part)
			if !ok {
				return nil, fmt.Errorf("unknown column %q", part)
			}
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return DefaultColumns(), nil
	}
	return out, nil
}

func lookupColumn(name string) (Column, bool) {
	for _, c := range allColumns {
		if strings.EqualFold(string(c), name) || strings.EqualFold(c.key(), name) {
			return c, true
		}
	}
	return "", false
}

// key is the snake_case field name used by the record formats.
func (c Column) key() string {
	return strings.ToLower(strings.ReplaceAll(string(c), " ", "_"))
}

func (c Column) value(l models.Listing) string {
	switch c {
	case ColSymbol:
		return l.Symbol
	case ColName:
		return l.Name
	case ColType:
		return string(l.Type())
	case ColExchange:
		return string(l.Exchange)
	case ColPrimary:
		return string(l.Primary)
	case ColCategory:
		return string(l.Category)
	case ColTestIssue:
		if l.TestIssue {
			return "Y"
		}
		return "N"
	case ColRetrievedAt:
		if l.RetrievedAt.IsZero() {
			return ""
		}
		return l.RetrievedAt.UTC().Format(time.RFC3339)
	default:
		return ""
	}
}

func validateColumns(cols []Column) ([]Column, error) {
	if len(cols) == 0 {
		return DefaultColumns(), nil
	}
	for _, c := range cols {
		if _, ok := lookupColumn(string(c)); !ok {
			return nil, fmt.Errorf("unknown column %q", c)
		}
	}
	return cols, nil
}
