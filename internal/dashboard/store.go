package dashboard

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"symdir/internal/metrics"
)

const defaultHistory = 200

// history is a fixed-capacity circular buffer. Once full, each push
// overwrites the oldest element.
type history[T any] struct {
	mu   sync.RWMutex
	buf  []T
	next int
	full bool
}

func newHistory[T any](capacity int) *history[T] {
	if capacity <= 0 {
		capacity = defaultHistory
	}
	return &history[T]{buf: make([]T, capacity)}
}

func (h *history[T]) push(v T) {
	h.mu.Lock()
	h.buf[h.next] = v
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
	h.mu.Unlock()
}

// snapshot returns the retained elements, oldest first.
func (h *history[T]) snapshot() []T {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.full {
		return append([]T(nil), h.buf[:h.next]...)
	}
	out := make([]T, 0, len(h.buf))
	out = append(out, h.buf[h.next:]...)
	return append(out, h.buf[:h.next]...)
}

type metricStore struct {
	*history[metrics.Metric]
}

func newMetricStore(capacity int) *metricStore {
	return &metricStore{history: newHistory[metrics.Metric](capacity)}
}

func (s *metricStore) handle(m metrics.Metric) { s.push(m) }

type logRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// logStore is a logrus hook retaining recent entries for /api/logs.
// After close it drops everything it is handed.
type logStore struct {
	*history[logRecord]
	closed atomic.Bool
}

func newLogStore(capacity int) *logStore {
	return &logStore{history: newHistory[logRecord](capacity)}
}

func (s *logStore) Levels() []logrus.Level { return logrus.AllLevels }

func (s *logStore) Fire(entry *logrus.Entry) error {
	if s.closed.Load() {
		return nil
	}
	s.push(toLogRecord(entry))
	return nil
}

func (s *logStore) close() { s.closed.Store(true) }

func toLogRecord(entry *logrus.Entry) logRecord {
	rec := logRecord{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
	}
	for k, v := range entry.Data {
		if k == "component" {
			rec.Component, _ = v.(string)
			continue
		}
		if rec.Fields == nil {
			rec.Fields = make(map[string]any, len(entry.Data))
		}
		rec.Fields[k] = jsonSafe(v)
	}
	return rec
}

// jsonSafe flattens values encoding/json would render as {}.
func jsonSafe(v any) any {
	switch val := v.(type) {
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	default:
		return v
	}
}
