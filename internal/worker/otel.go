package worker

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/demoview/tickpack/internal/worker"

type metrics struct {
	encoded  metric.Int64Counter
	failed   metric.Int64Counter
	bytes    metric.Int64Counter
	duration metric.Float64Histogram
}

// newMetrics registers the worker instruments on provider, or on the global
// provider when nil (a no-op unless one is configured).
func newMetrics(provider metric.MeterProvider) (*metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	m := provider.Meter(instrumentationName)

	var (
		out metrics
		err error
	)
	out.encoded, err = m.Int64Counter(
		"tickpack.demos.encoded",
		metric.WithDescription("Demos encoded and stored"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating encoded counter: %w", err)
	}
	out.failed, err = m.Int64Counter(
		"tickpack.demos.failed",
		metric.WithDescription("Demos that failed to encode or store"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	out.bytes, err = m.Int64Counter(
		"tickpack.encode.bytes",
		metric.WithDescription("Flattened record bytes produced"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating bytes counter: %w", err)
	}
	out.duration, err = m.Float64Histogram(
		"tickpack.encode.duration",
		metric.WithDescription("Time spent encoding one demo"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return &out, nil
}

func (m *metrics) recordSuccess(ctx context.Context, r Result) {
	attrs := metric.WithAttributes(attribute.String("map", r.State.MapName()))
	m.encoded.Add(ctx, 1, attrs)
	m.bytes.Add(ctx, int64(r.State.Size()), attrs)
	m.duration.Record(ctx, float64(r.Duration.Microseconds())/1000, attrs)
}

func (m *metrics) recordFailure(ctx context.Context, stage string) {
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}
