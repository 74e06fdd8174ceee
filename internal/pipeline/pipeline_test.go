package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"symdir/config"
	"symdir/internal/pipeline/fetcher"
	"symdir/internal/pipeline/normalizer"
	"symdir/models"
)

type stubFetcher struct {
	payloads *fetcher.Payloads
	err      error
	calls    int
}

func (s *stubFetcher) Fetch(ctx context.Context) (*fetcher.Payloads, error) {
	s.calls++
	return s.payloads, s.err
}

func TestBuilderBuildsSnapshot(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.FixedZone("EDT", -4*3600))
	f := &stubFetcher{payloads: &fetcher.Payloads{
		Nasdaq: []byte("Symbol|Security Name|ETF|Test Issue\nAAA|Alpha Co|N|N\nTSTX|Test|N|Y\n"),
		Other:  []byte("ACT Symbol|Security Name|Exchange|ETF\nBBB|Beta|X|Y\n"),
		Source: "ftp",
	}}
	b := NewBuilder(f, WithClock(func() time.Time { return now }), WithExcludeTestIssues(true))

	snap, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if snap.ID() == "" || snap.Source() != "ftp" {
		t.Fatalf("snapshot metadata not set: id=%q source=%q", snap.ID(), snap.Source())
	}
	if !snap.RetrievedAt().Equal(now) || snap.RetrievedAt().Location() != time.UTC {
		t.Fatalf("retrieved_at = %v", snap.RetrievedAt())
	}
	if snap.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", snap.Len())
	}
	other := snap.Other()
	if len(other) != 1 || other[0].Exchange != models.ExchangeUnknown || other[0].Type() != models.TypeETF {
		t.Fatalf("unexpected other rows %+v", other)
	}
}

func TestBuilderPropagatesFetchError(t *testing.T) {
	fe := &fetcher.FetchError{Op: "open", Err: errors.New("connection refused")}
	b := NewBuilder(&stubFetcher{err: fe})
	snap, err := b.Build(context.Background())
	if snap != nil || !errors.Is(err, fe) {
		t.Fatalf("expected fetch error, got %v, %v", snap, err)
	}
}

func TestBuilderPropagatesParseError(t *testing.T) {
	b := NewBuilder(&stubFetcher{payloads: &fetcher.Payloads{
		Nasdaq: []byte("Symbol|Security Name\nAAA|Alpha\n"),
		Other:  []byte("ACT Symbol|Security Name\nBBB|Beta\n"),
	}})
	snap, err := b.Build(context.Background())
	var pe *normalizer.ParseError
	if snap != nil || !errors.As(err, &pe) {
		t.Fatalf("expected parse error, got %v, %v", snap, err)
	}
}

func TestBuilderIDsAreUnique(t *testing.T) {
	f := &stubFetcher{payloads: &fetcher.Payloads{
		Nasdaq: []byte("Symbol|Security Name\nAAA|Alpha\n"),
		Other:  []byte("ACT Symbol|Security Name|Exchange\nBBB|Beta|N\n"),
	}}
	b := NewBuilder(f)
	s1, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s2, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if s1.ID() == s2.ID() {
		t.Fatal("snapshot ids repeated")
	}
}

func TestFromConfigOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/nasdaqlisted.txt":
			w.Write([]byte("Symbol|Security Name|Market Category|Test Issue|ETF\nAAPL|Apple Inc.|Q|N|N\nZXZZT|Test Issue|G|Y|N\nFile Creation Time: 1018202617:00||||\n"))
		case "/otherlisted.txt":
			w.Write([]byte("ACT Symbol|Security Name|Exchange|ETF|Test Issue\nSPY|SPDR S&P 500|P|Y|N\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	b, err := FromConfig(context.Background(), config.FeedConfig{
		Source:            config.SourceHTTP,
		NasdaqFile:        "nasdaqlisted.txt",
		OtherFile:         "otherlisted.txt",
		Timeout:           5 * time.Second,
		ExcludeTestIssues: true,
		HTTP:              config.HTTPConfig{BaseURL: srv.URL},
	})
	if err != nil {
		t.Fatalf("FromConfig error: %v", err)
	}

	snap, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if snap.Len() != 2 || snap.Source() != config.SourceHTTP {
		t.Fatalf("unexpected snapshot: rows=%d source=%q", snap.Len(), snap.Source())
	}
	if got := snap.Other()[0].Exchange; got != models.ExchangeNYSEArca {
		t.Fatalf("SPY exchange = %q", got)
	}
}

func TestFromConfigRejectsUnknownSource(t *testing.T) {
	if _, err := FromConfig(context.Background(), config.FeedConfig{Source: "gopher"}); err == nil {
		t.Fatal("expected error for unknown source")
	}
}
