package metrics

import "context"

// Snapshot is what the monitor computes each tick.
type Snapshot struct {
	EfficiencyPercent  float64
	AverageWaitMinutes float64
	QueueSize          int
	ActiveAssignments  int
}

// Recorder receives router lifecycle signals.
type Recorder interface {
	QuerySubmitted(ctx context.Context, priority string)
	QueryEscalated(ctx context.Context)
	QueryDropped(ctx context.Context, reason string)
	AssignmentCreated(ctx context.Context, workerID string, score float64)
	AssignmentCompleted(ctx context.Context, workerID string)
	Observe(ctx context.Context, s Snapshot)
}

// Nop discards every signal.
type Nop struct{}

func (Nop) QuerySubmitted(context.Context, string)             {}
func (Nop) QueryEscalated(context.Context)                     {}
func (Nop) QueryDropped(context.Context, string)               {}
func (Nop) AssignmentCreated(context.Context, string, float64) {}
func (Nop) AssignmentCompleted(context.Context, string)        {}
func (Nop) Observe(context.Context, Snapshot)                  {}
