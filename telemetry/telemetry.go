// Package telemetry wires OpenTelemetry tracing and metrics into the
// request-handling path. Instruments is nil-safe throughout: a zero-value
// *Instruments (or one built with a nil tracer/meter) turns every method
// into a no-op, so callers can wire it unconditionally and only pay for it
// when an operator has actually configured a TracerProvider/MeterProvider.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NewTracerProvider builds a TracerProvider resource-tagged with
// serviceName. Callers register a real exporter via opts (e.g.
// sdktrace.WithBatcher(exporter)); with none registered, spans are still
// created and can be inspected by a SpanProcessor but nothing is exported
// off-process.
func NewTracerProvider(serviceName string, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		res = resource.Default()
	}
	allOpts := append([]sdktrace.TracerProviderOption{sdktrace.WithResource(res)}, opts...)
	return sdktrace.NewTracerProvider(allOpts...)
}

// NoopTracer returns a tracer that records nothing, the default collaborator
// for components constructed without an explicit Instruments.
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("rae")
}

// Instruments holds the tracer and metric instruments the retrieval and
// orchestration paths record against. Construct with NewInstruments; the
// zero value is also safe to use and behaves as fully disabled.
type Instruments struct {
	tracer trace.Tracer

	requestDuration metric.Float64Histogram
	requestCount    metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
	retrievalCount  metric.Int64Counter
}

// NewInstruments creates the counters and histograms RAE records against
// meter. tracer may be nil, in which case spans degrade to NoopTracer();
// meter may be nil, in which case every metric recording is skipped.
func NewInstruments(tracer trace.Tracer, meter metric.Meter) (*Instruments, error) {
	if tracer == nil {
		tracer = NoopTracer()
	}
	in := &Instruments{tracer: tracer}
	if meter == nil {
		return in, nil
	}

	var err error
	in.requestDuration, err = meter.Float64Histogram("rae.request.duration",
		metric.WithDescription("Duration of ExecuteAgentTask calls in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create request duration histogram: %w", err)
	}
	in.requestCount, err = meter.Int64Counter("rae.request.count",
		metric.WithDescription("Number of ExecuteAgentTask calls"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create request counter: %w", err)
	}
	in.cacheHits, err = meter.Int64Counter("rae.cache.hits",
		metric.WithDescription("Context cache hits"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create cache hit counter: %w", err)
	}
	in.cacheMisses, err = meter.Int64Counter("rae.cache.misses",
		metric.WithDescription("Context cache misses"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create cache miss counter: %w", err)
	}
	in.retrievalCount, err = meter.Int64Counter("rae.retrieval.candidates",
		metric.WithDescription("Candidates returned per retrieval strategy"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create retrieval candidate counter: %w", err)
	}
	return in, nil
}

// StartSpan starts a span named name with attrs, nil-safe when in is nil.
func (in *Instruments) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if in == nil || in.tracer == nil {
		return NoopTracer().Start(ctx, name)
	}
	ctx, span := in.tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// EndSpan records err onto span (if non-nil, sets Error status and records
// the error; otherwise sets Ok) and ends it. Safe to call with a nil span.
func EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// RecordRequest records one ExecuteAgentTask call's duration and outcome.
func (in *Instruments) RecordRequest(ctx context.Context, d time.Duration, tenantID string, err error) {
	if in == nil || in.requestDuration == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	opts := metric.WithAttributes(attribute.String("tenant_id", tenantID), attribute.String("status", status))
	in.requestDuration.Record(ctx, float64(d.Microseconds())/1000.0, opts)
	in.requestCount.Add(ctx, 1, opts)
}

// RecordCacheHit increments the context-cache hit counter.
func (in *Instruments) RecordCacheHit(ctx context.Context) {
	if in == nil || in.cacheHits == nil {
		return
	}
	in.cacheHits.Add(ctx, 1)
}

// RecordCacheMiss increments the context-cache miss counter.
func (in *Instruments) RecordCacheMiss(ctx context.Context) {
	if in == nil || in.cacheMisses == nil {
		return
	}
	in.cacheMisses.Add(ctx, 1)
}

// RecordRetrievalCandidates records how many candidates a retrieval
// strategy returned, tagged by strategy name.
func (in *Instruments) RecordRetrievalCandidates(ctx context.Context, strategy string, n int) {
	if in == nil || in.retrievalCount == nil {
		return
	}
	in.retrievalCount.Add(ctx, int64(n), metric.WithAttributes(attribute.String("strategy", strategy)))
}
