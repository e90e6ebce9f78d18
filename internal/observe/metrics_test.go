package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumWith(t *testing.T, met *metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", met.Name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestRecordExpressionStages(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordExpression(ctx, "observed", "happy")
	m.RecordExpression(ctx, "observed", "sad")
	m.RecordExpression(ctx, "emitted", "sad")

	rm := collect(t, reader)
	observed := findMetric(rm, "emotext.expressions.observed")
	if observed == nil {
		t.Fatal("observed metric not found")
	}
	if got := sumWith(t, observed, "label", "happy"); got != 1 {
		t.Fatalf("observed happy = %d, want 1", got)
	}
	emitted := findMetric(rm, "emotext.expressions.emitted")
	if emitted == nil {
		t.Fatal("emitted metric not found")
	}
	if got := sumWith(t, emitted, "label", "sad"); got != 1 {
		t.Fatalf("emitted sad = %d, want 1", got)
	}
}

func TestRecordInsertion(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordInsertion(ctx, SourceTranscript, "ok")
	m.RecordInsertion(ctx, SourceTranscript, "ok")
	m.RecordInsertion(ctx, SourceIcon, "skipped")

	met := findMetric(collect(t, reader), "emotext.insertions")
	if met == nil {
		t.Fatal("insertions metric not found")
	}
	if got := sumWith(t, met, "source", SourceTranscript); got != 2 {
		t.Fatalf("transcript insertions = %d, want 2", got)
	}
	if got := sumWith(t, met, "status", "skipped"); got != 1 {
		t.Fatalf("skipped insertions = %d, want 1", got)
	}
}

func TestOpenSessionsGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.OpenSessions.Add(ctx, 1)
	m.OpenSessions.Add(ctx, 1)
	m.OpenSessions.Add(ctx, -1)

	met := findMetric(collect(t, reader), "emotext.speech.open_sessions")
	if met == nil {
		t.Fatal("open sessions metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 {
		t.Fatal("expected int64 sum data points")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Fatalf("open sessions = %d, want 1", got)
	}
}

func TestDefaultMetricsIsSingleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Fatal("DefaultMetrics returned different instances")
	}
}
