package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/alanyang/interview-router/internal/observability"
	portmetrics "github.com/alanyang/interview-router/internal/port/metrics"
)

func setupRecorder() (*sdkmetric.ManualReader, *observability.Recorder) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, observability.NewRecorderWithMeter(mp.Meter("test"))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumByAttr(t *testing.T, rm metricdata.ResourceMetrics, name string, key attribute.Key) map[string]int64 {
	t.Helper()
	m := findMetric(rm, name)
	require.NotNil(t, m, "%s not recorded", name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", name)

	out := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(key)
		out[v.AsString()] += dp.Value
	}
	return out
}

func TestRecorder_Counters(t *testing.T) {
	reader, r := setupRecorder()
	ctx := context.Background()

	r.QuerySubmitted(ctx, "HIGH")
	r.QuerySubmitted(ctx, "HIGH")
	r.QuerySubmitted(ctx, "LOW")
	r.QueryDropped(ctx, "retrieval_unavailable")
	r.AssignmentCreated(ctx, "AI_TECH_001", 12.5)
	r.AssignmentCompleted(ctx, "AI_TECH_001")

	rm := collect(t, reader)
	assert.Equal(t, map[string]int64{"HIGH": 2, "LOW": 1}, sumByAttr(t, rm, "router.query.submitted", "priority"))
	assert.Equal(t, map[string]int64{"retrieval_unavailable": 1}, sumByAttr(t, rm, "router.query.dropped", "reason"))
	assert.Equal(t, map[string]int64{"AI_TECH_001": 1}, sumByAttr(t, rm, "router.assignment.created", "worker_id"))
	assert.Equal(t, map[string]int64{"AI_TECH_001": 1}, sumByAttr(t, rm, "router.assignment.completed", "worker_id"))
}

func TestRecorder_ScoreHistogram(t *testing.T) {
	reader, r := setupRecorder()
	r.AssignmentCreated(context.Background(), "w1", 20)
	r.AssignmentCreated(context.Background(), "w1", 30)

	m := findMetric(collect(t, reader), "router.assignment.score")
	require.NotNil(t, m)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.InDelta(t, 50.0, hist.DataPoints[0].Sum, 1e-9)
}

func TestRecorder_ObserveKeepsLatest(t *testing.T) {
	reader, r := setupRecorder()
	ctx := context.Background()
	r.Observe(ctx, portmetrics.Snapshot{EfficiencyPercent: 10, AverageWaitMinutes: 1, QueueSize: 4, ActiveAssignments: 2})
	r.Observe(ctx, portmetrics.Snapshot{EfficiencyPercent: 42.5, AverageWaitMinutes: 3.25, QueueSize: 1, ActiveAssignments: 5})

	rm := collect(t, reader)

	eff, ok := findMetric(rm, "router.system.efficiency").Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	assert.InDelta(t, 42.5, eff.DataPoints[0].Value, 1e-9)

	wait, ok := findMetric(rm, "router.system.wait").Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	assert.InDelta(t, 3.25, wait.DataPoints[0].Value, 1e-9)

	queue, ok := findMetric(rm, "router.queue.size").Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), queue.DataPoints[0].Value)

	active, ok := findMetric(rm, "router.assignment.active").Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Equal(t, int64(5), active.DataPoints[0].Value)
}

func TestNewRecorder_GlobalProviderIsNoop(t *testing.T) {
	r := observability.NewRecorder()
	assert.NotPanics(t, func() {
		r.QueryEscalated(context.Background())
		r.Observe(context.Background(), portmetrics.Snapshot{})
	})
}
