package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"symdir/config"
	"symdir/internal/cache"
	"symdir/internal/export"
	"symdir/internal/metrics"
	"symdir/logger"
	"symdir/models"
)

type fakeSource struct {
	snap *models.Snapshot
	err  error
}

func (f *fakeSource) Snapshot(context.Context) (*models.Snapshot, error) {
	return f.snap, f.err
}

func (f *fakeSource) Stats() cache.Stats {
	if f.snap == nil {
		return cache.Stats{}
	}
	return cache.Stats{SnapshotID: f.snap.ID(), Rows: f.snap.Len()}
}

func testSnapshot() *models.Snapshot {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return models.NewSnapshot("snap-1", "ftp", at, []models.Listing{
		{Symbol: "MSFT", Name: "Microsoft Corporation - Common Stock", Primary: models.PrimaryNasdaq, Exchange: models.ExchangeNasdaq, Category: models.CategoryGlobalSelect, RetrievedAt: at},
		{Symbol: "QQQ", Name: "Invesco QQQ Trust", IsETF: true, Primary: models.PrimaryNasdaq, Exchange: models.ExchangeNasdaq, Category: models.CategoryGlobal, RetrievedAt: at},
		{Symbol: "IBM", Name: "International Business Machines", Primary: models.PrimaryOther, Exchange: models.ExchangeNYSE, RetrievedAt: at},
		{Symbol: "SPY", Name: "SPDR S&P 500 ETF Trust", IsETF: true, Primary: models.PrimaryOther, Exchange: models.ExchangeNYSEArca, RetrievedAt: at},
	})
}

func newTestRouter(t *testing.T, src SnapshotSource, cfg config.DashboardConfig) (*Server, *gin.Engine) {
	t.Helper()
	cfg.Enabled = true
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = time.Second
	}
	srv, err := NewServer(cfg, logger.Logger(), src)
	if err != nil {
		t.Fatalf("NewServer error: %v", err)
	}
	t.Cleanup(srv.cleanup)

	router, err := srv.buildRouter("app")
	if err != nil {
		t.Fatalf("buildRouter error: %v", err)
	}
	return srv, router
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func decode(t *testing.T, res *httptest.ResponseRecorder, data any) apiResponse {
	t.Helper()
	var out apiResponse
	if data != nil {
		out.Data = data
	}
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", res.Body.String(), err)
	}
	return out
}

func TestMetricsEndpointEmitsStoredMetrics(t *testing.T) {
	log := logger.Logger()
	srv, router := newTestRouter(t, &fakeSource{snap: testSnapshot()}, config.DashboardConfig{MetricsHistory: 10, LogHistory: 10})

	metrics.EmitMetric(log, "cache", "snapshot_rows", 5, "gauge", logger.Fields{"exchange": "NYSE"})

	res := get(router, "/api/metrics")
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", res.Code)
	}
	if len(srv.metricStore.snapshot()) == 0 {
		t.Fatalf("metrics store empty")
	}
}

func TestIndexRendersFilterOptions(t *testing.T) {
	_, router := newTestRouter(t, &fakeSource{snap: testSnapshot()}, config.DashboardConfig{})

	res := get(router, "/")
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", res.Code)
	}
	body := res.Body.String()
	for _, want := range []string{"NYSE Arca", "BATS/CBOE", `value="ETF"`, "/assets/app.js"} {
		if !strings.Contains(body, want) {
			t.Fatalf("index missing %q", want)
		}
	}

	if res := get(router, "/assets/app.js"); res.Code != http.StatusOK {
		t.Fatalf("asset status = %d", res.Code)
	}
}

func TestListingsFiltersAndPaginates(t *testing.T) {
	_, router := newTestRouter(t, &fakeSource{snap: testSnapshot()}, config.DashboardConfig{MaxPageSize: 2})

	var page struct {
		Rows    []models.Listing `json:"rows"`
		Matched int              `json:"matched"`
		Total   int              `json:"total"`
		Limit   int              `json:"limit"`
	}

	res := get(router, "/api/listings?limit=50")
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", res.Code)
	}
	out := decode(t, res, &page)
	if page.Limit != 2 || len(page.Rows) != 2 || page.Matched != 4 {
		t.Fatalf("limit not capped: %+v", page)
	}
	if page.Rows[0].Symbol != "IBM" || page.Rows[1].Symbol != "MSFT" {
		t.Fatalf("rows not sorted by symbol: %+v", page.Rows)
	}
	if out.Meta["snapshot_id"] != "snap-1" {
		t.Fatalf("unexpected meta: %#v", out.Meta)
	}

	res = get(router, "/api/listings?type=ETF&exchange=NASDAQ,NYSE%20Arca")
	decode(t, res, &page)
	if page.Matched != 2 || page.Total != 4 {
		t.Fatalf("unexpected filter result: %+v", page)
	}

	res = get(router, "/api/listings?q=micro")
	decode(t, res, &page)
	if page.Matched != 1 || page.Rows[0].Symbol != "MSFT" {
		t.Fatalf("unexpected search result: %+v", page)
	}
}

func TestListingsRejectsBadInput(t *testing.T) {
	_, router := newTestRouter(t, &fakeSource{snap: testSnapshot()}, config.DashboardConfig{})

	for _, target := range []string{
		"/api/listings?exchange=LSE",
		"/api/listings?type=Bond",
		"/api/listings?limit=-1",
		"/api/listings?offset=abc",
		"/api/stats/summary?type=Bond",
	} {
		if res := get(router, target); res.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", target, res.Code)
		}
	}
}

func TestStatsEndpoints(t *testing.T) {
	_, router := newTestRouter(t, &fakeSource{snap: testSnapshot()}, config.DashboardConfig{})

	var counts []struct {
		Label string `json:"label"`
		Count int    `json:"count"`
	}
	res := get(router, "/api/stats/exchanges")
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", res.Code)
	}
	decode(t, res, &counts)
	if len(counts) != 3 || counts[0].Label != "NASDAQ" || counts[0].Count != 2 {
		t.Fatalf("unexpected exchange counts: %+v", counts)
	}

	res = get(router, "/api/stats/types?exchange=NYSE")
	decode(t, res, &counts)
	if len(counts) != 2 || counts[0].Label != "Stock" || counts[0].Count != 1 || counts[1].Count != 0 {
		t.Fatalf("unexpected type counts: %+v", counts)
	}

	var summary struct {
		Total  int    `json:"total"`
		ETFs   int    `json:"etfs"`
		ETFPct string `json:"etf_pct"`
	}
	decode(t, get(router, "/api/stats/summary"), &summary)
	if summary.Total != 4 || summary.ETFs != 2 || summary.ETFPct != "50" {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	for _, target := range []string{"/api/stats/exchange-types", "/api/stats/categories", "/api/stats/report", "/api/snapshot"} {
		if res := get(router, target); res.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", target, res.Code)
		}
	}
}

func TestUnavailableSnapshotReturns503(t *testing.T) {
	src := &fakeSource{err: errors.New("ftp down")}
	_, router := newTestRouter(t, src, config.DashboardConfig{})

	for _, target := range []string{"/api/listings", "/api/stats/report", "/api/export", "/healthz"} {
		res := get(router, target)
		if res.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: status = %d, want 503", target, res.Code)
		}
	}
}

func TestStaleSnapshotIsFlagged(t *testing.T) {
	src := &fakeSource{snap: testSnapshot(), err: errors.New("ftp down")}
	_, router := newTestRouter(t, src, config.DashboardConfig{})

	res := get(router, "/api/listings")
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", res.Code)
	}
	if res.Header().Get("X-Snapshot-Stale") != "true" {
		t.Fatal("expected stale header")
	}

	src.err = nil
	if res := get(router, "/api/listings"); res.Header().Get("X-Snapshot-Stale") != "" {
		t.Fatal("fresh snapshot flagged stale")
	}
}

func TestExportEndpoint(t *testing.T) {
	_, router := newTestRouter(t, &fakeSource{snap: testSnapshot()}, config.DashboardConfig{})

	res := get(router, "/api/export?format=csv&type=ETF&columns=symbol,exchange")
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d body=%s", res.Code, res.Body.String())
	}
	if got := res.Header().Get("Content-Type"); !strings.HasPrefix(got, export.ContentTypeCSV) {
		t.Fatalf("content type = %q", got)
	}
	if got := res.Header().Get("Content-Disposition"); !strings.Contains(got, "usa_tickers_metadata.csv") {
		t.Fatalf("content disposition = %q", got)
	}
	want := "Symbol,Exchange\nQQQ,NASDAQ\nSPY,NYSE Arca\n"
	if res.Body.String() != want {
		t.Fatalf("export body = %q, want %q", res.Body.String(), want)
	}

	if res := get(router, "/api/export?format=pdf"); res.Code != http.StatusBadRequest {
		t.Fatalf("unknown format status = %d", res.Code)
	}
	if res := get(router, "/api/export?columns=price"); res.Code != http.StatusBadRequest {
		t.Fatalf("unknown column status = %d", res.Code)
	}
}

func TestExportRateLimited(t *testing.T) {
	_, router := newTestRouter(t, &fakeSource{snap: testSnapshot()}, config.DashboardConfig{ExportRate: 0.001, ExportBurst: 1})

	if res := get(router, "/api/export?format=json"); res.Code != http.StatusOK {
		t.Fatalf("first export status = %d", res.Code)
	}
	if res := get(router, "/api/export?format=json"); res.Code != http.StatusTooManyRequests {
		t.Fatalf("second export status = %d, want 429", res.Code)
	}
}

func TestHealthReportsDegraded(t *testing.T) {
	_, router := newTestRouter(t, &fakeSource{snap: testSnapshot()}, config.DashboardConfig{})

	res := get(router, "/healthz")
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health: %d %s", res.Code, res.Body.String())
	}
}

func TestPrometheusHandlerMounted(t *testing.T) {
	srv, err := NewServer(config.DashboardConfig{Enabled: true}, logger.Logger(), &fakeSource{snap: testSnapshot()},
		WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("symdir_up 1\n"))
		})))
	if err != nil {
		t.Fatalf("NewServer error: %v", err)
	}
	t.Cleanup(srv.cleanup)
	router, err := srv.buildRouter("app")
	if err != nil {
		t.Fatalf("buildRouter error: %v", err)
	}

	res := get(router, "/metrics")
	if res.Code != http.StatusOK || res.Body.String() != "symdir_up 1\n" {
		t.Fatalf("unexpected /metrics response: %d %q", res.Code, res.Body.String())
	}
}
