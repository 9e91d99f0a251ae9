package traced_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"

	"github.com/alanyang/interview-router/internal/adapter/retrieval/traced"
	domainretrieval "github.com/alanyang/interview-router/internal/domain/retrieval"
	"github.com/alanyang/interview-router/internal/mocks"
	portretrieval "github.com/alanyang/interview-router/internal/port/retrieval"
)

func setup(t *testing.T) (*tracetest.SpanRecorder, *mocks.MockRetriever, *traced.Retriever) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	inner := mocks.NewMockRetriever(gomock.NewController(t))
	return sr, inner, traced.NewWithTracer(inner, "keyword", tp.Tracer("test"))
}

func attrs(kvs []attribute.KeyValue) map[string]attribute.Value {
	out := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value
	}
	return out
}

func TestRetrieve_RecordsSpan(t *testing.T) {
	sr, inner, r := setup(t)
	want := domainretrieval.Result{
		Targets: []string{"P1"},
		Hits:    []domainretrieval.Hit{{EntityID: "P1"}, {EntityID: "P1"}},
	}
	inner.EXPECT().Retrieve(gomock.Any(), "airfryer").Return(want, nil)

	got, err := r.Retrieve(context.Background(), "airfryer")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "retrieval.retrieve", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	a := attrs(spans[0].Attributes())
	assert.Equal(t, "keyword", a["retrieval.backend"].AsString())
	assert.Equal(t, int64(8), a["retrieval.query_length"].AsInt64())
	assert.Equal(t, int64(2), a["retrieval.hits"].AsInt64())
	assert.Equal(t, int64(1), a["retrieval.targets"].AsInt64())
}

func TestRetrieve_ErrorSetsStatus(t *testing.T) {
	sr, inner, r := setup(t)
	inner.EXPECT().Retrieve(gomock.Any(), gomock.Any()).
		Return(domainretrieval.Result{}, portretrieval.ErrUnavailable)

	_, err := r.Retrieve(context.Background(), "x")
	assert.True(t, errors.Is(err, portretrieval.ErrUnavailable))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Len(t, spans[0].Events(), 1, "error recorded as span event")
}
