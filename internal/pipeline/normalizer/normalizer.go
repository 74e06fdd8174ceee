package normalizer

import (
	"fmt"
	"strings"
	"time"

	"symdir/internal/symbols"
	"symdir/models"
)

// Feed labels used in errors and logs.
const (
	FeedNasdaq = "nasdaqlisted"
	FeedOther  = "otherlisted"
)

type Options struct {
	RetrievedAt       time.Time
	ExcludeTestIssues bool
}

// Result is the canonical table plus what normalization had to skip or
// patch along the way.
type Result struct {
	Listings []models.Listing
	// Dropped counts rows without a symbol, including the file footer.
	Dropped int
	// TestIssues counts rows skipped by ExcludeTestIssues.
	TestIssues int
	Mappings   []MappingError
}

// Normalize reconciles the NASDAQ-listed and other-listed payloads into one
// table, NASDAQ rows first, each feed in file order.
func Normalize(nasdaq, other []byte, opts Options) (*Result, error) {
	nt, err := parseTable(FeedNasdaq, nasdaq)
	if err != nil {
		return nil, err
	}
	ot, err := parseTable(FeedOther, other)
	if err != nil {
		return nil, err
	}

	res := &Result{Listings: make([]models.Listing, 0, len(nt.rows)+len(ot.rows))}
	if err := res.addNasdaq(nt, opts); err != nil {
		return nil, err
	}
	if err := res.addOther(ot, opts); err != nil {
		return nil, err
	}
	return res, nil
}

type columns struct {
	symbol, name, etf, test int
}

func commonColumns(t *table, symbolNames ...string) (columns, error) {
	var c columns
	var err error
	if c.symbol, err = t.require(symbolNames...); err != nil {
		return c, err
	}
	if c.name, err = t.require("Security Name"); err != nil {
		return c, err
	}
	c.etf, _ = t.index("ETF")
	c.test, _ = t.index("Test Issue")
	return c, nil
}

// keep returns the canonical symbol, or "" for rows that carry none.
func (res *Result) keep(t *table, r row, c columns) (string, error) {
	raw := r.value(c.symbol)
	if raw == "" || symbols.IsTrailer(raw) {
		res.Dropped++
		return "", nil
	}
	if len(r.fields) != t.width {
		return "", &ParseError{
			Feed: t.feed,
			Line: r.line,
			Err:  fmt.Errorf("%w: got %d, header has %d", ErrFieldCount, len(r.fields), t.width),
		}
	}
	return symbols.Canonical(raw), nil
}

func (res *Result) skipTest(r row, c columns, opts Options) bool {
	if opts.ExcludeTestIssues && flag(r.value(c.test)) {
		res.TestIssues++
		return true
	}
	return false
}

func (res *Result) addNasdaq(t *table, opts Options) error {
	c, err := commonColumns(t, "Symbol")
	if err != nil {
		return err
	}
	category, _ := t.index("Market Category")

	for _, r := range t.rows {
		sym, err := res.keep(t, r, c)
		if err != nil {
			return err
		}
		if sym == "" || res.skipTest(r, c, opts) {
			continue
		}
		code := r.value(category)
		cat, ok := symbols.MarketCategory(code)
		if !ok {
			res.Mappings = append(res.Mappings, MappingError{Feed: t.feed, Symbol: sym, Field: "Market Category", Code: code})
		}
		res.Listings = append(res.Listings, models.Listing{
			Symbol:      sym,
			Name:        r.value(c.name),
			IsETF:       flag(r.value(c.etf)),
			Primary:     models.PrimaryNasdaq,
			Exchange:    models.ExchangeNasdaq,
			Category:    cat,
			TestIssue:   flag(r.value(c.test)),
			RetrievedAt: opts.RetrievedAt,
		})
	}
	return nil
}

func (res *Result) addOther(t *table, opts Options) error {
	c, err := commonColumns(t, "ACT Symbol", "Symbol")
	if err != nil {
		return err
	}
	exchange, err := t.require("Exchange")
	if err != nil {
		return err
	}

	for _, r := range t.rows {
		sym, err := res.keep(t, r, c)
		if err != nil {
			return err
		}
		if sym == "" || res.skipTest(r, c, opts) {
			continue
		}
		code := r.value(exchange)
		detail, ok := symbols.ExchangeDetail(code)
		if !ok {
			res.Mappings = append(res.Mappings, MappingError{Feed: t.feed, Symbol: sym, Field: "Exchange", Code: code})
		}
		res.Listings = append(res.Listings, models.Listing{
			Symbol:      sym,
			Name:        r.value(c.name),
			IsETF:       flag(r.value(c.etf)),
			Primary:     models.PrimaryOther,
			Exchange:    detail,
			TestIssue:   flag(r.value(c.test)),
			RetrievedAt: opts.RetrievedAt,
		})
	}
	return nil
}

// flag reads a Y/N cell; anything but Y, including a blank, is false.
func flag(v string) bool {
	return strings.EqualFold(v, "Y")
}
