package generator

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/reflectd-dev/reflectd/pkg/observability"
)

const tracerName = "github.com/reflectd-dev/reflectd/internal/generator"

// Instrumented wraps a Generator with tracing and metrics. Every call gets
// an otel span and a prometheus observation; failures are recorded on both.
type Instrumented struct {
	inner Generator
}

// NewInstrumented wraps gen with observability.
func NewInstrumented(gen Generator) *Instrumented {
	return &Instrumented{inner: gen}
}

// Name returns the wrapped provider name.
func (g *Instrumented) Name() string { return g.inner.Name() }

// GenerateText delegates to the wrapped generator with instrumentation.
func (g *Instrumented) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	ctx, span := g.startSpan(ctx, "text", req.Model)
	defer span.End()

	start := time.Now()
	out, err := g.inner.GenerateText(ctx, req)
	g.finish(span, "text", start, err)

	return out, err
}

// GenerateObject delegates to the wrapped generator with instrumentation.
func (g *Instrumented) GenerateObject(ctx context.Context, req ObjectRequest) (json.RawMessage, error) {
	ctx, span := g.startSpan(ctx, "object", req.Model)
	defer span.End()

	start := time.Now()
	out, err := g.inner.GenerateObject(ctx, req)
	g.finish(span, "object", start, err)

	return out, err
}

func (g *Instrumented) startSpan(ctx context.Context, op, model string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "generator."+g.inner.Name()+"."+op,
		trace.WithAttributes(
			attribute.String("generator.provider", g.inner.Name()),
			attribute.String("generator.op", op),
			attribute.String("generator.model", model),
		),
	)
}

func (g *Instrumented) finish(span trace.Span, op string, start time.Time, err error) {
	duration := time.Since(start)
	span.SetAttributes(
		attribute.Int64("generator.duration_ms", duration.Milliseconds()),
		attribute.Bool("generator.success", err == nil),
	)
	if err != nil {
		span.RecordError(err)
	}

	observability.RecordGeneratorCall(g.inner.Name(), op, duration, err)
}
