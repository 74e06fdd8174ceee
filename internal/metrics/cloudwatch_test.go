package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"symdir/logger"
)

type fakeCloudWatch struct {
	puts      []*cloudwatch.PutMetricDataInput
	dashboard *cloudwatch.PutDashboardInput
	err       error
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.puts = append(f.puts, in)
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

func (f *fakeCloudWatch) PutDashboard(_ context.Context, in *cloudwatch.PutDashboardInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutDashboardOutput, error) {
	f.dashboard = in
	return &cloudwatch.PutDashboardOutput{}, f.err
}

func installSink(t *testing.T) (*cloudWatchSink, *fakeCloudWatch) {
	t.Helper()
	fake := &fakeCloudWatch{}
	sink := newCloudWatchSink(fake, "SymDirTest", "SymDirTest", "eu-west-1")
	prev := activeSink.Swap(sink)
	t.Cleanup(func() { activeSink.Store(prev) })
	return sink, fake
}

func TestSinkAggregatesSeries(t *testing.T) {
	sink, fake := installSink(t)

	EmitMetric(nil, "export", "exports", 1, "counter", logger.Fields{"format": "csv"})
	EmitMetric(nil, "export", "exports", 1, "counter", logger.Fields{"format": "csv"})
	EmitMetric(nil, "export", "exports", 1, "counter", logger.Fields{"format": "xlsx"})
	EmitMetric(nil, "cache", "snapshot_rebuild_duration", 1500*time.Millisecond, "gauge", logger.Fields{"unit": "milliseconds"})
	EmitMetric(nil, "cache", "snapshot_id", "abc", "gauge", nil)

	if err := sink.flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(fake.puts) != 1 {
		t.Fatalf("got %d PutMetricData calls", len(fake.puts))
	}
	data := fake.puts[0].MetricData
	if len(data) != 3 {
		t.Fatalf("got %d datums, want 3: %+v", len(data), data)
	}

	byKey := map[string]cwtypes.MetricDatum{}
	for _, d := range data {
		byKey[seriesKey(aws.ToString(d.MetricName), d.Dimensions)] = d
	}
	csv := byKey["exports|component=export|format=csv"]
	if csv.StatisticValues == nil || *csv.StatisticValues.Sum != 2 || *csv.StatisticValues.SampleCount != 2 {
		t.Fatalf("csv exports not summed: %+v", csv.StatisticValues)
	}
	dur := byKey["snapshot_rebuild_duration|component=cache"]
	if dur.Unit != cwtypes.StandardUnitMilliseconds || *dur.StatisticValues.Maximum != 1500 {
		t.Fatalf("unexpected duration datum: %+v", dur)
	}

	if err := sink.flush(context.Background()); err != nil || len(fake.puts) != 1 {
		t.Fatalf("empty window should not publish: err=%v puts=%d", err, len(fake.puts))
	}
}

func TestSinkSplitsLargeBatches(t *testing.T) {
	sink, fake := installSink(t)
	for i := 0; i < maxDatumsPerPut+5; i++ {
		sink.add(Metric{Component: "cache", Name: "rows", Value: i, Fields: logger.Fields{"exchange": fmt.Sprint(i)}})
	}
	if err := sink.flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(fake.puts) != 2 || len(fake.puts[0].MetricData) != maxDatumsPerPut || len(fake.puts[1].MetricData) != 5 {
		t.Fatalf("unexpected batching: %d calls", len(fake.puts))
	}
	if aws.ToString(fake.puts[0].Namespace) != "SymDirTest" {
		t.Fatalf("namespace = %q", aws.ToString(fake.puts[0].Namespace))
	}
}

func TestSinkReportsPublishErrors(t *testing.T) {
	sink, fake := installSink(t)
	fake.err = errors.New("throttled")
	sink.add(Metric{Component: "cache", Name: "rows", Value: 1})
	if err := sink.flush(context.Background()); err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Fatalf("flush error = %v", err)
	}
}

func TestEmitWithoutSinkDoesNotPanic(t *testing.T) {
	prev := activeSink.Swap(nil)
	t.Cleanup(func() { activeSink.Store(prev) })
	EmitMetric(nil, "cache", "snapshot_rows", 5, "gauge", nil)
}

func TestPutDashboardSubstitutesNamespaceAndRegion(t *testing.T) {
	sink, fake := installSink(t)
	if err := sink.putDashboard(context.Background()); err != nil {
		t.Fatalf("putDashboard: %v", err)
	}
	body := aws.ToString(fake.dashboard.DashboardBody)
	if strings.Contains(body, `"SymDir"`) || strings.Contains(body, `"us-east-1"`) {
		t.Fatal("placeholders left in dashboard body")
	}
	if !strings.Contains(body, `"SymDirTest"`) || !strings.Contains(body, `"eu-west-1"`) {
		t.Fatal("namespace or region not substituted")
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		t.Fatalf("dashboard is not valid JSON: %v", err)
	}
}

func TestToFloat64(t *testing.T) {
	tests := []struct {
		in   interface{}
		want float64
		ok   bool
	}{
		{3, 3, true},
		{int64(4), 4, true},
		{2.5, 2.5, true},
		{1500 * time.Millisecond, 1500, true},
		{"x", 0, false},
	}
	for _, tt := range tests {
		got, ok := toFloat64(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("toFloat64(%v) = %v,%v", tt.in, got, ok)
		}
	}
}
