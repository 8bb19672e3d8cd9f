package telemetry

import (
	"context"

	"goa.design/clue/log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ClueLogger adapts goa.design/clue/log's context-scoped logger to Logger,
// grounded on _teacher_ref/agent/telemetry/clue.go.
type ClueLogger struct{}

func (ClueLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	log.Debug(ctx, msg, toClueFields(fields)...)
}

func (ClueLogger) Info(ctx context.Context, msg string, fields ...Field) {
	log.Info(ctx, msg, toClueFields(fields)...)
}

func (ClueLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	log.Print(ctx, msg, toClueFields(fields)...)
}

func (ClueLogger) Error(ctx context.Context, msg string, err error, fields ...Field) {
	log.Error(ctx, err, append([]log.Fielder{log.KV{K: "msg", V: msg}}, toClueFields(fields)...)...)
}

func toClueFields(fields []Field) []log.Fielder {
	out := make([]log.Fielder, 0, len(fields))
	for _, f := range fields {
		out = append(out, log.KV{K: f.Key, V: f.Value})
	}
	return out
}

// OtelMetrics adapts an otel/metric.Meter to Metrics.
type OtelMetrics struct {
	Meter metric.Meter
}

func (m OtelMetrics) IncrCounter(ctx context.Context, name string, delta int64, fields ...Field) {
	counter, err := m.Meter.Int64Counter(name)
	if err != nil {
		return
	}
	counter.Add(ctx, delta, metric.WithAttributes(toAttrs(fields)...))
}

func (m OtelMetrics) RecordHistogram(ctx context.Context, name string, value float64, fields ...Field) {
	hist, err := m.Meter.Float64Histogram(name)
	if err != nil {
		return
	}
	hist.Record(ctx, value, metric.WithAttributes(toAttrs(fields)...))
}

func toAttrs(fields []Field) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(fields))
	for _, f := range fields {
		out = append(out, attribute.String(f.Key, toString(f.Value)))
	}
	return out
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// OtelTracer adapts an otel/trace.Tracer to Tracer.
type OtelTracer struct {
	Tracer trace.Tracer
}

func (t OtelTracer) Start(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.Tracer.Start(ctx, name)
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End() { s.span.End() }

func (s otelSpan) SetError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
}

func (s otelSpan) SetAttribute(key string, value any) {
	s.span.SetAttributes(attribute.String(key, toString(value)))
}
