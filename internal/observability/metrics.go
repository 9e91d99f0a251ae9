package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	portmetrics "github.com/alanyang/interview-router/internal/port/metrics"
)

// meterName is the instrumentation scope for router metrics.
const meterName = "github.com/alanyang/interview-router"

var _ portmetrics.Recorder = (*Recorder)(nil)

// Recorder turns router lifecycle signals into OTel instruments. Without a
// configured MeterProvider every instrument is a noop.
//
// Instruments:
//   - router.query.submitted (Int64Counter), attribute priority
//   - router.query.escalated (Int64Counter)
//   - router.query.dropped (Int64Counter), attribute reason
//   - router.assignment.created (Int64Counter), attribute worker_id
//   - router.assignment.completed (Int64Counter), attribute worker_id
//   - router.assignment.score (Float64Histogram), attribute worker_id
//   - router.system.efficiency (Float64Gauge), percent
//   - router.system.wait (Float64Gauge), minutes
//   - router.queue.size (Int64Gauge)
//   - router.assignment.active (Int64Gauge)
type Recorder struct {
	submitted  metric.Int64Counter
	escalated  metric.Int64Counter
	dropped    metric.Int64Counter
	created    metric.Int64Counter
	completed  metric.Int64Counter
	score      metric.Float64Histogram
	efficiency metric.Float64Gauge
	wait       metric.Float64Gauge
	queue      metric.Int64Gauge
	active     metric.Int64Gauge
}

// NewRecorder uses the global MeterProvider.
func NewRecorder() *Recorder {
	return NewRecorderWithMeter(otel.Meter(meterName))
}

// NewRecorderWithMeter builds the instruments on meter. The OTel API hands
// back noop instruments on error, so construction cannot fail.
func NewRecorderWithMeter(meter metric.Meter) *Recorder {
	r := &Recorder{}
	r.submitted, _ = meter.Int64Counter("router.query.submitted",
		metric.WithDescription("Queries accepted for routing"),
		metric.WithUnit("{query}"))
	r.escalated, _ = meter.Int64Counter("router.query.escalated",
		metric.WithDescription("Failed match attempts that requeued a query"),
		metric.WithUnit("{query}"))
	r.dropped, _ = meter.Int64Counter("router.query.dropped",
		metric.WithDescription("Queries that left the queue without an assignment"),
		metric.WithUnit("{query}"))
	r.created, _ = meter.Int64Counter("router.assignment.created",
		metric.WithDescription("Assignments created"),
		metric.WithUnit("{assignment}"))
	r.completed, _ = meter.Int64Counter("router.assignment.completed",
		metric.WithDescription("Assignments completed"),
		metric.WithUnit("{assignment}"))
	r.score, _ = meter.Float64Histogram("router.assignment.score",
		metric.WithDescription("Match score of the selected worker"))
	r.efficiency, _ = meter.Float64Gauge("router.system.efficiency",
		metric.WithDescription("Aggregate load over aggregate capacity"),
		metric.WithUnit("%"))
	r.wait, _ = meter.Float64Gauge("router.system.wait",
		metric.WithDescription("Mean wait of active assignments"),
		metric.WithUnit("min"))
	r.queue, _ = meter.Int64Gauge("router.queue.size",
		metric.WithDescription("Queries waiting in the priority queue"),
		metric.WithUnit("{query}"))
	r.active, _ = meter.Int64Gauge("router.assignment.active",
		metric.WithDescription("Assignments not yet completed"),
		metric.WithUnit("{assignment}"))
	return r
}

func (r *Recorder) QuerySubmitted(ctx context.Context, priority string) {
	r.submitted.Add(ctx, 1, metric.WithAttributes(attribute.String("priority", priority)))
}

func (r *Recorder) QueryEscalated(ctx context.Context) {
	r.escalated.Add(ctx, 1)
}

func (r *Recorder) QueryDropped(ctx context.Context, reason string) {
	r.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (r *Recorder) AssignmentCreated(ctx context.Context, workerID string, score float64) {
	attrs := metric.WithAttributes(attribute.String("worker_id", workerID))
	r.created.Add(ctx, 1, attrs)
	r.score.Record(ctx, score, attrs)
}

func (r *Recorder) AssignmentCompleted(ctx context.Context, workerID string) {
	r.completed.Add(ctx, 1, metric.WithAttributes(attribute.String("worker_id", workerID)))
}

func (r *Recorder) Observe(ctx context.Context, s portmetrics.Snapshot) {
	r.efficiency.Record(ctx, s.EfficiencyPercent)
	r.wait.Record(ctx, s.AverageWaitMinutes)
	r.queue.Record(ctx, int64(s.QueueSize))
	r.active.Record(ctx, int64(s.ActiveAssignments))
}
