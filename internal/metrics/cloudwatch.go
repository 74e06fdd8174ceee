package metrics

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"symdir/config"
	"symdir/logger"
)

//go:embed CWdash.json
var dashboardTemplate string

// PutMetricData accepts at most this many datums per call.
const maxDatumsPerPut = 1000

var timeNow = time.Now

type cloudWatchAPI interface {
	PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, opts ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
	PutDashboard(ctx context.Context, in *cloudwatch.PutDashboardInput, opts ...func(*cloudwatch.Options)) (*cloudwatch.PutDashboardOutput, error)
}

// cloudWatchSink aggregates emitted metrics per series and flushes them as
// statistic sets, so counters keep their sum between flushes.
type cloudWatchSink struct {
	client    cloudWatchAPI
	namespace string
	dashboard string
	region    string

	mu      sync.Mutex
	pending map[string]*series
}

type series struct {
	name  string
	dims  []cwtypes.Dimension
	unit  cwtypes.StandardUnit
	stats cwtypes.StatisticSet
}

var activeSink atomic.Pointer[cloudWatchSink]

func newCloudWatchSink(client cloudWatchAPI, namespace, dashboard, region string) *cloudWatchSink {
	return &cloudWatchSink{
		client:    client,
		namespace: namespace,
		dashboard: dashboard,
		region:    region,
		pending:   make(map[string]*series),
	}
}

// InitCloudWatch connects to CloudWatch, uploads the dashboard and flushes
// aggregated metrics every PublishInterval until ctx is done. Failures are
// logged; the service keeps running without CloudWatch.
func InitCloudWatch(ctx context.Context, cfg config.CloudWatchConfig) {
	log := logger.GetLogger().WithComponent("cloudwatch")

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch disabled")
		return
	}

	sink := newCloudWatchSink(cloudwatch.NewFromConfig(awsCfg), cfg.Namespace, cfg.Dashboard, awsCfg.Region)
	activeSink.Store(sink)
	log.WithFields(logger.Fields{"region": sink.region, "namespace": sink.namespace}).Info("CloudWatch publishing enabled")

	if err := sink.putDashboard(ctx); err != nil {
		log.WithError(err).Warn("failed to update CloudWatch dashboard")
	}

	interval := cfg.PublishInterval
	if interval <= 0 {
		interval = time.Minute
	}
	go sink.run(ctx, interval)
}

// EmitMetric logs the metric, hands it to subscribers and queues numeric
// values for CloudWatch when publishing is enabled.
func EmitMetric(log *logger.Log, component string, metric string, value interface{}, metricType string, fields logger.Fields) {
	m, ok := recordMetric(log, component, metric, value, metricType, fields)
	if !ok {
		return
	}
	if sink := activeSink.Load(); sink != nil {
		sink.add(m)
	}
}

func (s *cloudWatchSink) add(m Metric) {
	v, ok := toFloat64(m.Value)
	if !ok {
		return
	}
	name, dims, unit := seriesOf(m)
	key := seriesKey(name, dims)

	s.mu.Lock()
	defer s.mu.Unlock()
	agg, found := s.pending[key]
	if !found {
		s.pending[key] = &series{
			name: name,
			dims: dims,
			unit: unit,
			stats: cwtypes.StatisticSet{
				SampleCount: aws.Float64(1),
				Sum:         aws.Float64(v),
				Minimum:     aws.Float64(v),
				Maximum:     aws.Float64(v),
			},
		}
		return
	}
	st := &agg.stats
	*st.SampleCount++
	*st.Sum += v
	if v < *st.Minimum {
		*st.Minimum = v
	}
	if v > *st.Maximum {
		*st.Maximum = v
	}
}

// drain hands back the pending datums and starts a fresh window.
func (s *cloudWatchSink) drain() []cwtypes.MetricDatum {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]*series)
	s.mu.Unlock()

	keys := make([]string, 0, len(pending))
	for k := range pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := timeNow()
	data := make([]cwtypes.MetricDatum, 0, len(keys))
	for _, k := range keys {
		agg := pending[k]
		stats := agg.stats
		data = append(data, cwtypes.MetricDatum{
			MetricName:      aws.String(agg.name),
			Dimensions:      agg.dims,
			Unit:            agg.unit,
			StatisticValues: &stats,
			Timestamp:       aws.Time(now),
		})
	}
	return data
}

func (s *cloudWatchSink) flush(ctx context.Context) error {
	data := s.drain()
	var errs []error
	for start := 0; start < len(data); start += maxDatumsPerPut {
		end := min(start+maxDatumsPerPut, len(data))
		_, err := s.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(s.namespace),
			MetricData: data[start:end],
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *cloudWatchSink) run(ctx context.Context, interval time.Duration) {
	log := logger.GetLogger().WithComponent("cloudwatch")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.flush(ctx); err != nil {
				log.WithError(err).Warn("failed to publish CloudWatch metrics")
			}
		case <-ctx.Done():
			// Final flush on a fresh context; ctx is already cancelled.
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.flush(flushCtx); err != nil {
				log.WithError(err).Warn("failed to publish final CloudWatch metrics")
			}
			cancel()
			return
		}
	}
}

func (s *cloudWatchSink) putDashboard(ctx context.Context) error {
	body, err := renderDashboard(s.namespace, s.region)
	if err != nil {
		return err
	}
	_, err = s.client.PutDashboard(ctx, &cloudwatch.PutDashboardInput{
		DashboardName: aws.String(s.dashboard),
		DashboardBody: aws.String(body),
	})
	return err
}

// renderDashboard points the embedded dashboard at namespace and region.
func renderDashboard(namespace, region string) (string, error) {
	r := strings.NewReplacer(`"SymDir"`, quote(namespace, "SymDir"), `"us-east-1"`, quote(region, "us-east-1"))
	body := r.Replace(dashboardTemplate)
	if !json.Valid([]byte(body)) {
		return "", errors.New("dashboard template is not valid JSON after substitution")
	}
	return body, nil
}

func quote(v, def string) string {
	if v == "" {
		v = def
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// seriesOf maps a metric to its CloudWatch identity. String fields become
// dimensions, except "unit" which selects the unit.
func seriesOf(m Metric) (string, []cwtypes.Dimension, cwtypes.StandardUnit) {
	unit := cwtypes.StandardUnitCount
	dims := []cwtypes.Dimension{{Name: aws.String("component"), Value: aws.String(m.Component)}}
	names := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		s, ok := m.Fields[k].(string)
		if !ok || s == "" {
			continue
		}
		if k == "unit" {
			if u, known := unitFor(s); known {
				unit = u
			}
			continue
		}
		dims = append(dims, cwtypes.Dimension{Name: aws.String(k), Value: aws.String(s)})
	}
	return m.Name, dims, unit
}

func seriesKey(name string, dims []cwtypes.Dimension) string {
	var b strings.Builder
	b.WriteString(name)
	for _, d := range dims {
		b.WriteByte('|')
		b.WriteString(aws.ToString(d.Name))
		b.WriteByte('=')
		b.WriteString(aws.ToString(d.Value))
	}
	return b.String()
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case time.Duration:
		return float64(v) / float64(time.Millisecond), true
	default:
		return 0, false
	}
}

func unitFor(unit string) (cwtypes.StandardUnit, bool) {
	switch strings.ToLower(unit) {
	case "count":
		return cwtypes.StandardUnitCount, true
	case "percent":
		return cwtypes.StandardUnitPercent, true
	case "milliseconds", "ms":
		return cwtypes.StandardUnitMilliseconds, true
	case "bytes":
		return cwtypes.StandardUnitBytes, true
	default:
		return "", false
	}
}
