// Package observe provides the assistant's OpenTelemetry metrics and tracing.
//
// Instruments are created from a [metric.MeterProvider]; [InitProvider]
// registers an SDK provider backed by a Prometheus exporter so the numbers
// can be scraped from /metrics. Tests should use [NewMetrics] with their own
// provider. All Record methods are safe on a nil *Metrics.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all assistant metrics.
const meterName = "github.com/hammamikhairi/astra"

// Turn outcomes used as the "outcome" attribute.
const (
	OutcomeCompleted = "completed"
	OutcomeEmpty     = "empty"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeDiscarded = "discarded"
)

// Metrics holds the metric instruments.
type Metrics struct {
	// TurnDuration measures capture start (or typed submit) to return to idle.
	TurnDuration metric.Float64Histogram
	// FirstFragment measures dispatch to the first streamed fragment.
	FirstFragment metric.Float64Histogram
	// TTSDuration measures one synthesis request.
	TTSDuration metric.Float64Histogram

	// Turns counts finished turns by outcome.
	Turns metric.Int64Counter
	// BargeIns counts turns interrupted by a new capture.
	BargeIns metric.Int64Counter
	// ChatErrors counts failed chat streams by source.
	ChatErrors metric.Int64Counter
	// TTSErrors counts failed synthesis requests.
	TTSErrors metric.Int64Counter
	// UnitsSpoken counts sentence units taken off the playback queue.
	UnitsSpoken metric.Int64Counter
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32,
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TurnDuration, err = m.Float64Histogram("astra.turn.duration",
		metric.WithDescription("Duration of a voice turn until the assistant is idle again."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FirstFragment, err = m.Float64Histogram("astra.chat.first_fragment",
		metric.WithDescription("Latency from dispatch to the first streamed fragment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("astra.tts.duration",
		metric.WithDescription("Latency of one text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Turns, err = m.Int64Counter("astra.turns",
		metric.WithDescription("Finished turns by outcome."),
	); err != nil {
		return nil, err
	}
	if met.BargeIns, err = m.Int64Counter("astra.barge_ins",
		metric.WithDescription("Responses interrupted by a new capture."),
	); err != nil {
		return nil, err
	}
	if met.ChatErrors, err = m.Int64Counter("astra.chat.errors",
		metric.WithDescription("Failed chat streams by source."),
	); err != nil {
		return nil, err
	}
	if met.TTSErrors, err = m.Int64Counter("astra.tts.errors",
		metric.WithDescription("Failed synthesis requests."),
	); err != nil {
		return nil, err
	}
	if met.UnitsSpoken, err = m.Int64Counter("astra.units_spoken",
		metric.WithDescription("Sentence units taken off the playback queue."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a package-level instance bound to the global
// meter provider at first call.
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

// RecordTurn records a finished turn.
func (m *Metrics) RecordTurn(ctx context.Context, d time.Duration, outcome string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.TurnDuration.Record(ctx, d.Seconds(), attrs)
	m.Turns.Add(ctx, 1, attrs)
}

// RecordFirstFragment records time to the first streamed fragment.
func (m *Metrics) RecordFirstFragment(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.FirstFragment.Record(ctx, d.Seconds())
}

// RecordSynthesis records one synthesis and counts it as an error when err is set.
func (m *Metrics) RecordSynthesis(ctx context.Context, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.TTSDuration.Record(ctx, d.Seconds())
	if err != nil {
		m.TTSErrors.Add(ctx, 1)
	}
}

// RecordBargeIn counts an interrupted response.
func (m *Metrics) RecordBargeIn(ctx context.Context) {
	if m == nil {
		return
	}
	m.BargeIns.Add(ctx, 1)
}

// RecordChatError counts a failed chat stream.
func (m *Metrics) RecordChatError(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.ChatErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordUnitSpoken counts a unit taken off the playback queue.
func (m *Metrics) RecordUnitSpoken(ctx context.Context) {
	if m == nil {
		return
	}
	m.UnitsSpoken.Add(ctx, 1)
}
