// Package observe provides OpenTelemetry metrics for emotext. Instruments are
// recorded through the OTel Metrics API; InitProvider bridges them to a
// Prometheus exporter. Tests should build a Metrics with NewMetrics and a
// ManualReader-backed provider instead of using DefaultMetrics.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "emotext"

// Insertion sources.
const (
	SourceExpression = "expression"
	SourceIcon       = "icon"
	SourceTranscript = "transcript"
)

// Metrics holds the metric instruments for the application.
type Metrics struct {
	// ExpressionsObserved counts raw label changes reported by the detector.
	ExpressionsObserved metric.Int64Counter

	// ExpressionsEmitted counts labels that survived the debounce window.
	ExpressionsEmitted metric.Int64Counter

	// Insertions counts text insertions by source and status.
	Insertions metric.Int64Counter

	// AudioChunks counts audio chunks forwarded to the provider.
	AudioChunks metric.Int64Counter

	// AudioChunksDropped counts zero-length chunks that were suppressed.
	AudioChunksDropped metric.Int64Counter

	// KeepAlives counts keep-alive pings sent on idle sessions.
	KeepAlives metric.Int64Counter

	// ProviderErrors counts transcription provider failures by kind.
	ProviderErrors metric.Int64Counter

	// OpenSessions tracks live transcription sessions.
	OpenSessions metric.Int64UpDownCounter

	// ConnectDuration tracks how long the provider handshake takes.
	ConnectDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ExpressionsObserved, err = m.Int64Counter("emotext.expressions.observed",
		metric.WithDescription("Raw expression label changes reported by the detector."),
	); err != nil {
		return nil, err
	}
	if met.ExpressionsEmitted, err = m.Int64Counter("emotext.expressions.emitted",
		metric.WithDescription("Expression labels delivered after debouncing."),
	); err != nil {
		return nil, err
	}
	if met.Insertions, err = m.Int64Counter("emotext.insertions",
		metric.WithDescription("Text insertions by source and status."),
	); err != nil {
		return nil, err
	}
	if met.AudioChunks, err = m.Int64Counter("emotext.audio.chunks",
		metric.WithDescription("Audio chunks forwarded to the transcription provider."),
	); err != nil {
		return nil, err
	}
	if met.AudioChunksDropped, err = m.Int64Counter("emotext.audio.chunks_dropped",
		metric.WithDescription("Zero-length audio chunks that were not forwarded."),
	); err != nil {
		return nil, err
	}
	if met.KeepAlives, err = m.Int64Counter("emotext.speech.keepalives",
		metric.WithDescription("Keep-alive pings sent while capture is idle."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("emotext.provider.errors",
		metric.WithDescription("Transcription provider errors by kind."),
	); err != nil {
		return nil, err
	}
	if met.OpenSessions, err = m.Int64UpDownCounter("emotext.speech.open_sessions",
		metric.WithDescription("Number of open transcription sessions."),
	); err != nil {
		return nil, err
	}
	if met.ConnectDuration, err = m.Float64Histogram("emotext.speech.connect.duration",
		metric.WithDescription("Latency of the transcription provider handshake."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built from the global
// meter provider. It panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordExpression counts a label at the given stage ("observed" or "emitted").
func (m *Metrics) RecordExpression(ctx context.Context, stage, label string) {
	counter := m.ExpressionsObserved
	if stage == "emitted" {
		counter = m.ExpressionsEmitted
	}
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("label", label)))
}

// RecordInsertion counts an insertion attempt.
func (m *Metrics) RecordInsertion(ctx context.Context, source, status string) {
	m.Insertions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError counts a provider failure.
func (m *Metrics) RecordProviderError(ctx context.Context, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
