package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/harrison/shellagent/internal/orchestrator"

type instruments struct {
	tracer     trace.Tracer
	requests   metric.Int64Counter
	executions metric.Int64Counter
	fallbacks  metric.Int64Counter
	duration   metric.Float64Histogram
}

func newInstruments(tp trace.TracerProvider, mp metric.MeterProvider) (*instruments, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	meter := mp.Meter(instrumentationName)
	inst := &instruments{tracer: tp.Tracer(instrumentationName)}

	var err error
	if inst.requests, err = meter.Int64Counter("shellagent.requests",
		metric.WithDescription("Intents handled")); err != nil {
		return nil, err
	}
	if inst.executions, err = meter.Int64Counter("shellagent.executions",
		metric.WithDescription("Commands executed")); err != nil {
		return nil, err
	}
	if inst.fallbacks, err = meter.Int64Counter("shellagent.fallbacks",
		metric.WithDescription("Requests completed by the deterministic fallback")); err != nil {
		return nil, err
	}
	if inst.duration, err = meter.Float64Histogram("shellagent.execution.duration",
		metric.WithDescription("Command execution time"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return inst, nil
}

func (i *instruments) recordExecution(ctx context.Context, succeeded bool, d time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("succeeded", succeeded))
	i.executions.Add(ctx, 1, attrs)
	i.duration.Record(ctx, d.Seconds(), attrs)
}
