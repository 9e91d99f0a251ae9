// Package traced wraps a Retriever in an OpenTelemetry span per lookup. With
// no TracerProvider installed the global noop tracer makes it a pass-through.
package traced

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domainretrieval "github.com/alanyang/interview-router/internal/domain/retrieval"
	portretrieval "github.com/alanyang/interview-router/internal/port/retrieval"
)

var _ portretrieval.Retriever = (*Retriever)(nil)

const (
	tracerName = "github.com/alanyang/interview-router/internal/adapter/retrieval/traced"
	spanName   = "retrieval.retrieve"
)

type Retriever struct {
	next    portretrieval.Retriever
	tracer  trace.Tracer
	backend string
}

// New traces next using the global provider. backend names the store in the
// span attributes.
func New(next portretrieval.Retriever, backend string) *Retriever {
	return NewWithTracer(next, backend, otel.Tracer(tracerName))
}

func NewWithTracer(next portretrieval.Retriever, backend string, tracer trace.Tracer) *Retriever {
	return &Retriever{next: next, tracer: tracer, backend: backend}
}

func (r *Retriever) Retrieve(ctx context.Context, text string) (domainretrieval.Result, error) {
	ctx, span := r.tracer.Start(ctx, spanName,
		trace.WithAttributes(
			attribute.String("retrieval.backend", r.backend),
			attribute.Int("retrieval.query_length", len(text)),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	res, err := r.next.Retrieve(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}

	span.SetAttributes(
		attribute.Int("retrieval.hits", len(res.Hits)),
		attribute.Int("retrieval.targets", len(res.Targets)),
	)
	span.SetStatus(codes.Ok, "")
	return res, nil
}
