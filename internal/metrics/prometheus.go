// Collectors exposed on /metrics:
//
//	symdir_snapshot_rebuilds_total{result}
//	symdir_snapshot_rebuild_duration_seconds
//	symdir_snapshot_rows{exchange}
//	symdir_snapshot_retrieved_timestamp_seconds
//	symdir_exports_total{format}
//	symdir_http_requests_total{route,code}
//	go_* and process_* runtime metrics
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once     sync.Once
	registry = prometheus.NewRegistry()

	rebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "symdir_snapshot_rebuilds_total",
			Help: "Snapshot rebuild attempts by result",
		},
		[]string{"result"},
	)
	rebuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "symdir_snapshot_rebuild_duration_seconds",
		Help:    "Wall time of fetch plus normalize",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})
	snapshotRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "symdir_snapshot_rows",
			Help: "Rows in the current snapshot by exchange",
		},
		[]string{"exchange"},
	)
	snapshotRetrieved = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "symdir_snapshot_retrieved_timestamp_seconds",
		Help: "Unix time the current snapshot was retrieved",
	})
	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "symdir_exports_total",
			Help: "Exports served by format",
		},
		[]string{"format"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "symdir_http_requests_total",
			Help: "Dashboard requests by route and status code",
		},
		[]string{"route", "code"},
	)
)

// Init registers every collector once.
func Init() {
	once.Do(func() {
		registry.MustRegister(
			rebuildsTotal,
			rebuildDuration,
			snapshotRows,
			snapshotRetrieved,
			exportsTotal,
			httpRequests,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
