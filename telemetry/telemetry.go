// Package telemetry defines the ambient logging/metrics/tracing interfaces
// the engine emits through. A Noop implementation is the zero-value
// default so the engine never requires telemetry to be wired for tests;
// an otel/clue-backed implementation is provided for production use.
package telemetry

import "context"

// Field is a single structured logging key/value pair.
type Field struct {
	Key   string
	Value any
}

// F constructs a Field.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

// Logger is a structured, leveled logger.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, err error, fields ...Field)
}

// Metrics records counters and histograms for loop/tool/provider activity.
type Metrics interface {
	IncrCounter(ctx context.Context, name string, delta int64, fields ...Field)
	RecordHistogram(ctx context.Context, name string, value float64, fields ...Field)
}

// Span is a single tracing span; callers must call End exactly once.
type Span interface {
	End()
	SetError(err error)
	SetAttribute(key string, value any)
}

// Tracer opens spans for turn/tool-call boundaries.
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, Span)
}

// Provider bundles Logger, Metrics, and Tracer for convenient injection
// into the engine (engine.Engine.Telemetry).
type Provider struct {
	Logger  Logger
	Metrics Metrics
	Tracer  Tracer
}
