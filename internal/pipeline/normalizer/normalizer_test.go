package normalizer

import (
	"errors"
	"testing"
	"time"

	"symdir/models"
)

var retrieved = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

const nasdaqFeed = `Symbol|Security Name|Market Category|Test Issue|Financial Status|Round Lot Size|ETF|NextShares
AAPL|Apple Inc. - Common Stock|Q|N|N|100|N|N
QQQ|Invesco QQQ Trust, Series 1|G|N|N|100|Y|N
ZXZZT|NASDAQ TEST STOCK|G|Y|N|100|N|N
SMOL|Small Cap Co|S|N|N|100||N
|blank symbol row|Q|N|N|100|N|N
File Creation Time: 1018202617:01|||||||
`

const otherFeed = `ACT Symbol|Security Name|Exchange|CQS Symbol|ETF|Round Lot Size|Test Issue|NASDAQ Symbol
A|Agilent Technologies, Inc. Common Stock|N|A|N|100|N|A
SPY|SPDR S&P 500 ETF Trust|P|SPY|Y|100|N|SPY
IMO|Imperial Oil Limited Common Stock|A|IMO|N|100|N|IMO
CBOE|Cboe Global Markets Inc.|Z|CBOE|N|100|N|CBOE
IEXG|IEX Group Thing|V|IEXG|N|100|N|IEXG
File Creation Time: 1018202617:01|||||||
`

func find(t *testing.T, ls []models.Listing, sym string) models.Listing {
	t.Helper()
	for _, l := range ls {
		if l.Symbol == sym {
			return l
		}
	}
	t.Fatalf("symbol %s not in table", sym)
	return models.Listing{}
}

func TestNormalizeMinimalFeeds(t *testing.T) {
	nasdaq := []byte("Symbol|Security Name|ETF\nAAA|Alpha Co|N\n")
	other := []byte("ACT Symbol|Security Name|Exchange|ETF\nBBB|Beta Corp|N|N\n")

	res, err := Normalize(nasdaq, other, Options{RetrievedAt: retrieved})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(res.Listings) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Listings))
	}
	a, b := res.Listings[0], res.Listings[1]
	if a.Symbol != "AAA" || a.Name != "Alpha Co" || a.Type() != models.TypeStock || a.Exchange != models.ExchangeNasdaq {
		t.Fatalf("unexpected first row %+v", a)
	}
	if b.Symbol != "BBB" || b.Type() != models.TypeStock || b.Exchange != models.ExchangeNYSE || b.Primary != models.PrimaryOther {
		t.Fatalf("unexpected second row %+v", b)
	}
}

func TestNormalizeUnmappedExchangeFallsBack(t *testing.T) {
	nasdaq := []byte("Symbol|Security Name|ETF\n")
	other := []byte("ACT Symbol|Security Name|Exchange|ETF\nXXX|Mystery|X|N\n")

	res, err := Normalize(nasdaq, other, Options{RetrievedAt: retrieved})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(res.Listings) != 1 || res.Listings[0].Exchange != models.ExchangeUnknown {
		t.Fatalf("expected one Unknown row, got %+v", res.Listings)
	}
	if len(res.Mappings) != 1 || res.Mappings[0].Code != "X" || res.Mappings[0].Field != "Exchange" {
		t.Fatalf("expected a mapping error for X, got %+v", res.Mappings)
	}
}

func TestNormalizeRealisticFeeds(t *testing.T) {
	res, err := Normalize([]byte(nasdaqFeed), []byte(otherFeed), Options{RetrievedAt: retrieved})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(res.Listings) != 9 {
		t.Fatalf("expected 9 rows, got %d", len(res.Listings))
	}
	if res.Dropped != 3 {
		t.Fatalf("expected blank row and both footers dropped, got %d", res.Dropped)
	}

	for _, l := range res.Listings {
		if l.Symbol == "" {
			t.Fatal("empty symbol leaked into table")
		}
		if !l.Exchange.Valid() {
			t.Fatalf("%s has exchange %q", l.Symbol, l.Exchange)
		}
		if !l.RetrievedAt.Equal(retrieved) {
			t.Fatalf("%s not stamped with snapshot time", l.Symbol)
		}
		if l.Primary == models.PrimaryOther && l.Category != models.CategoryNone {
			t.Fatalf("%s from other feed has category %q", l.Symbol, l.Category)
		}
	}

	if l := find(t, res.Listings, "QQQ"); l.Type() != models.TypeETF || l.Category != models.CategoryGlobal {
		t.Fatalf("QQQ = %+v", l)
	}
	if l := find(t, res.Listings, "SMOL"); l.IsETF || l.Category != models.CategoryCapital {
		t.Fatalf("SMOL = %+v", l)
	}
	if l := find(t, res.Listings, "ZXZZT"); !l.TestIssue {
		t.Fatal("test issue flag not parsed")
	}
	wantVenue := map[string]models.ExchangeDetail{
		"A":    models.ExchangeNYSE,
		"SPY":  models.ExchangeNYSEArca,
		"IMO":  models.ExchangeNYSEAmerican,
		"CBOE": models.ExchangeBATS,
		"IEXG": models.ExchangeUnknown,
	}
	for sym, want := range wantVenue {
		if got := find(t, res.Listings, sym).Exchange; got != want {
			t.Errorf("%s exchange = %s want %s", sym, got, want)
		}
	}
}

func TestNormalizeExcludeTestIssues(t *testing.T) {
	res, err := Normalize([]byte(nasdaqFeed), []byte(otherFeed), Options{ExcludeTestIssues: true})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.TestIssues != 1 {
		t.Fatalf("expected one test issue skipped, got %d", res.TestIssues)
	}
	for _, l := range res.Listings {
		if l.Symbol == "ZXZZT" {
			t.Fatal("test issue kept")
		}
	}
}

func TestNormalizeDuplicatesAreKept(t *testing.T) {
	nasdaq := []byte("Symbol|Security Name\nDUP|Dup Nasdaq\n")
	other := []byte("ACT Symbol|Security Name|Exchange\nDUP|Dup Other|N\n")
	res, err := Normalize(nasdaq, other, Options{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(res.Listings) != 2 {
		t.Fatalf("expected both rows, got %d", len(res.Listings))
	}
}

func TestNormalizeParseErrors(t *testing.T) {
	okNasdaq := []byte("Symbol|Security Name\nAAA|Alpha\n")
	okOther := []byte("ACT Symbol|Security Name|Exchange\nBBB|Beta|N\n")

	tests := []struct {
		name   string
		nasdaq []byte
		other  []byte
		feed   string
		want   error
	}{
		{"missing symbol column", []byte("Ticker|Security Name\nAAA|Alpha\n"), okOther, FeedNasdaq, ErrMissingColumn},
		{"missing exchange column", okNasdaq, []byte("ACT Symbol|Security Name\nBBB|Beta\n"), FeedOther, ErrMissingColumn},
		{"wrong field count", okNasdaq, []byte("ACT Symbol|Security Name|Exchange\nBBB|Beta\n"), FeedOther, ErrFieldCount},
		{"invalid utf8", []byte("Symbol|Security Name\nAAA|\xff\xfe\n"), okOther, FeedNasdaq, ErrInvalidEncoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Normalize(tt.nasdaq, tt.other, Options{})
			if res != nil {
				t.Fatal("partial result returned with error")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if pe.Feed != tt.feed || !errors.Is(err, tt.want) {
				t.Fatalf("got %v", err)
			}
		})
	}
}

func TestNormalizeEmptyPayload(t *testing.T) {
	_, err := Normalize(nil, []byte("ACT Symbol|Security Name|Exchange\n"), Options{})
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Feed != FeedNasdaq {
		t.Fatalf("expected ParseError for empty nasdaq payload, got %v", err)
	}
}

func TestNormalizeStripsBOMAndAcceptsSymbolHeader(t *testing.T) {
	nasdaq := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Symbol|Security Name\naaa |Alpha\n")...)
	other := []byte("Symbol|Security Name|Exchange\nBBB|Beta|P\n")
	res, err := Normalize(nasdaq, other, Options{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Listings[0].Symbol != "AAA" || res.Listings[1].Exchange != models.ExchangeNYSEArca {
		t.Fatalf("unexpected rows %+v", res.Listings)
	}
}
