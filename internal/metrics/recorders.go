package metrics

import (
	"strconv"
	"time"

	"symdir/logger"
)

// RecordRebuild counts one rebuild attempt and its duration.
func RecordRebuild(duration time.Duration, err error) {
	result := resultLabel(err)
	rebuildsTotal.WithLabelValues(result).Inc()
	if err == nil {
		rebuildDuration.Observe(duration.Seconds())
	}

	fields := logger.Fields{"result": result}
	EmitMetric(nil, "cache", "snapshot_rebuilds", 1, "counter", fields)
	EmitMetric(nil, "cache", "snapshot_rebuild_duration", duration, "gauge", logger.Fields{"result": result, "unit": "milliseconds"})
}

// RecordSnapshot replaces the per-exchange row gauges with the new snapshot's.
func RecordSnapshot(retrievedAt time.Time, rowsByExchange map[string]int) {
	snapshotRows.Reset()
	total := 0
	for exchange, n := range rowsByExchange {
		snapshotRows.WithLabelValues(exchange).Set(float64(n))
		total += n
	}
	snapshotRetrieved.Set(unixSeconds(retrievedAt))
	EmitMetric(nil, "cache", "snapshot_rows", total, "gauge", nil)
}

// RecordExport counts one served export.
func RecordExport(format string, rows, bytes int) {
	exportsTotal.WithLabelValues(format).Inc()
	EmitMetric(nil, "export", "exports", 1, "counter", logger.Fields{"format": format})
	EmitMetric(nil, "export", "export_bytes", bytes, "gauge", logger.Fields{"format": format, "unit": "bytes", "rows": rows})
}

// RecordRequest counts one dashboard request.
func RecordRequest(route string, code int) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
