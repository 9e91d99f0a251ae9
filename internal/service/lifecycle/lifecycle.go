package lifecycle

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	domainassignment "github.com/alanyang/interview-router/internal/domain/assignment"
	"github.com/alanyang/interview-router/internal/domain/event"
	portbus "github.com/alanyang/interview-router/internal/port/eventbus"
	portmetrics "github.com/alanyang/interview-router/internal/port/metrics"
	portworker "github.com/alanyang/interview-router/internal/port/worker"
)

const (
	DefaultMinDelay = 30 * time.Second
	DefaultMaxDelay = 90 * time.Second
)

type Config struct {
	// Completion fires after a uniform delay in [MinDelay, MaxDelay].
	MinDelay time.Duration
	MaxDelay time.Duration
	Rand     *rand.Rand
	Now      func() time.Time
}

// ReleaseFunc is told which worker just regained capacity.
type ReleaseFunc func(workerID string)

// Tracker owns the active and completed assignment sets and the completion
// timers. An assignment completes at most once.
type Tracker struct {
	registry portworker.Registry
	bus      portbus.EventBus
	metrics  portmetrics.Recorder

	minDelay time.Duration
	maxDelay time.Duration
	rnd      *rand.Rand
	now      func() time.Time

	mu        sync.Mutex
	active    map[string]*domainassignment.Assignment
	completed map[string]*domainassignment.Assignment
	timers    map[string]*time.Timer
	listeners []ReleaseFunc
	closed    bool
	inflight  sync.WaitGroup
}

func NewTracker(cfg Config, registry portworker.Registry, bus portbus.EventBus, metrics portmetrics.Recorder) *Tracker {
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = DefaultMinDelay
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if metrics == nil {
		metrics = portmetrics.Nop{}
	}
	return &Tracker{
		registry:  registry,
		bus:       bus,
		metrics:   metrics,
		minDelay:  cfg.MinDelay,
		maxDelay:  cfg.MaxDelay,
		rnd:       cfg.Rand,
		now:       cfg.Now,
		active:    make(map[string]*domainassignment.Assignment),
		completed: make(map[string]*domainassignment.Assignment),
		timers:    make(map[string]*time.Timer),
	}
}

// OnRelease registers fn to run after every completion frees capacity.
func (t *Tracker) OnRelease(fn ReleaseFunc) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

// Track stores a newly created assignment and schedules its completion.
// It reports false once the tracker has been shut down.
func (t *Tracker) Track(a domainassignment.Assignment) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}
	stored := a.Copy()
	t.active[a.ID] = &stored

	delay := t.minDelay
	if span := t.maxDelay - t.minDelay; span > 0 {
		delay += time.Duration(t.rnd.Int64N(int64(span) + 1))
	}
	id := a.ID
	t.timers[id] = time.AfterFunc(delay, func() {
		t.Complete(context.Background(), id)
	})
	return true
}

// Complete moves an active assignment to the completed set and releases its
// worker. Calls for unknown or already completed ids return false.
func (t *Tracker) Complete(ctx context.Context, id string) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	a, ok := t.active[id]
	if !ok {
		t.mu.Unlock()
		return false
	}
	delete(t.active, id)
	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
	now := t.now()
	a.MarkCompleted(now)
	t.completed[id] = a
	listeners := append([]ReleaseFunc(nil), t.listeners...)
	t.inflight.Add(1)
	t.mu.Unlock()
	defer t.inflight.Done()

	if _, err := t.registry.Release(a.WorkerID, now); err != nil {
		slog.ErrorContext(ctx, "release worker capacity", "assignment_id", id, "worker_id", a.WorkerID, "error", err)
	}

	slog.InfoContext(ctx, "assignment completed", "assignment_id", id, "worker_id", a.WorkerID)
	t.metrics.AssignmentCompleted(ctx, a.WorkerID)
	e := event.New(event.TypeAssignmentCompleted, id).With("worker_id", a.WorkerID)
	if err := t.bus.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "failed to publish AssignmentCompleted event", "assignment_id", id, "error", err)
	}

	for _, fn := range listeners {
		fn(a.WorkerID)
	}
	return true
}

// Get looks in the active set first, then the completed set.
func (t *Tracker) Get(id string) (domainassignment.Assignment, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if a, ok := t.active[id]; ok {
		return a.Copy(), true
	}
	if a, ok := t.completed[id]; ok {
		return a.Copy(), true
	}
	return domainassignment.Assignment{}, false
}

func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

func (t *Tracker) CompletedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.completed)
}

// Counts reads both set sizes under one lock.
func (t *Tracker) Counts() (active, completed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active), len(t.completed)
}

// ActiveSnapshot returns copies of the active assignments.
func (t *Tracker) ActiveSnapshot() []domainassignment.Assignment {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domainassignment.Assignment, 0, len(t.active))
	for _, a := range t.active {
		out = append(out, a.Copy())
	}
	return out
}

// Shutdown stops every pending timer and waits for completions already in
// progress. Nothing mutates tracker or registry state after it returns.
func (t *Tracker) Shutdown() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
	pending := len(t.active)
	t.mu.Unlock()

	t.inflight.Wait()
	slog.Info("assignment tracker stopped", "pending", pending)
}
