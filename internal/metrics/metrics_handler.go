package metrics

import (
	"sync"
	"time"

	"symdir/logger"
)

// Metric is one emitted measurement as the dashboard history sees it.
type Metric struct {
	Timestamp time.Time     `json:"timestamp"`
	Component string        `json:"component"`
	Name      string        `json:"name"`
	Value     interface{}   `json:"value"`
	Type      string        `json:"type"`
	Fields    logger.Fields `json:"fields,omitempty"`
}

type MetricHandler func(Metric)

type MetricHandlerID uint64

// subscribers fans metric events out to in-process consumers.
type subscribers struct {
	mu       sync.RWMutex
	next     MetricHandlerID
	handlers map[MetricHandlerID]MetricHandler
}

var handlers = newSubscribers()

func newSubscribers() *subscribers {
	return &subscribers{handlers: make(map[MetricHandlerID]MetricHandler)}
}

func (s *subscribers) add(h MetricHandler) MetricHandlerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.handlers[s.next] = h
	return s.next
}

func (s *subscribers) remove(id MetricHandlerID) {
	s.mu.Lock()
	delete(s.handlers, id)
	s.mu.Unlock()
}

// publish calls handlers outside the lock so a handler may unregister itself.
func (s *subscribers) publish(m Metric) {
	s.mu.RLock()
	hs := make([]MetricHandler, 0, len(s.handlers))
	for _, h := range s.handlers {
		hs = append(hs, h)
	}
	s.mu.RUnlock()

	for _, h := range hs {
		h(m)
	}
}

// RegisterMetricHandler subscribes h to every emitted metric. A nil handler
// yields the zero id.
func RegisterMetricHandler(h MetricHandler) MetricHandlerID {
	if h == nil {
		return 0
	}
	return handlers.add(h)
}

func UnregisterMetricHandler(id MetricHandlerID) {
	if id != 0 {
		handlers.remove(id)
	}
}

// recordMetric logs the metric at debug and delivers it to subscribers.
// Metrics without a name are ignored.
func recordMetric(log *logger.Log, component, name string, value interface{}, metricType string, fields logger.Fields) (Metric, bool) {
	if name == "" {
		return Metric{}, false
	}
	if metricType == "" {
		metricType = "counter"
	}
	if log == nil {
		log = logger.GetLogger()
	}

	m := Metric{
		Timestamp: timeNow(),
		Component: component,
		Name:      name,
		Value:     value,
		Type:      metricType,
		Fields:    make(logger.Fields, len(fields)),
	}
	for k, v := range fields {
		m.Fields[k] = v
	}

	log.WithComponent(component).WithFields(m.Fields).WithFields(logger.Fields{
		"metric":      name,
		"metric_type": metricType,
		"value":       value,
	}).Debug("metric")

	handlers.publish(m)
	return m, true
}
