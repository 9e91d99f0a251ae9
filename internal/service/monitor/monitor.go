package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"
	"sync"
	"time"

	domainassignment "github.com/alanyang/interview-router/internal/domain/assignment"
	"github.com/alanyang/interview-router/internal/domain/event"
	domainworker "github.com/alanyang/interview-router/internal/domain/worker"
	portbus "github.com/alanyang/interview-router/internal/port/eventbus"
	portmetrics "github.com/alanyang/interview-router/internal/port/metrics"
	portworker "github.com/alanyang/interview-router/internal/port/worker"
)

const (
	DefaultInterval          = 30 * time.Second
	DefaultChurnGate         = 0.1
	DefaultBreakProbability  = 0.3
	DefaultReturnProbability = 0.7
	DefaultShedProbability   = 0.2
)

type Config struct {
	Interval time.Duration
	// ChurnGate is the chance a worker is considered for churn at all on a
	// tick. The per-status probabilities apply only past the gate.
	ChurnGate         float64
	BreakProbability  float64
	ReturnProbability float64
	ShedProbability   float64
	// Disabled turns churn off while keeping metric refresh.
	Disabled bool
	Rand     *rand.Rand
	Now      func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// DefaultConfig returns the churn probabilities of the simulated population.
func DefaultConfig() Config {
	return Config{
		Interval:          DefaultInterval,
		ChurnGate:         DefaultChurnGate,
		BreakProbability:  DefaultBreakProbability,
		ReturnProbability: DefaultReturnProbability,
		ShedProbability:   DefaultShedProbability,
	}
}

type QueueSizer interface {
	QueueSize() int
}

type ActiveSource interface {
	ActiveSnapshot() []domainassignment.Assignment
}

// Measure computes system efficiency in percent and the mean wait in minutes
// of the active assignments. Both are zero when undefined.
func Measure(load, capacity int, active []domainassignment.Assignment, now time.Time) (efficiency, avgWait float64) {
	if capacity > 0 {
		efficiency = 100 * float64(load) / float64(capacity)
	}
	if len(active) > 0 {
		var sum float64
		for _, a := range active {
			sum += now.Sub(a.Query.SubmittedAt).Minutes()
		}
		avgWait = sum / float64(len(active))
	}
	return efficiency, avgWait
}

// Monitor periodically refreshes system metrics and applies availability
// churn to the worker population.
type Monitor struct {
	cfg      Config
	registry portworker.Registry
	active   ActiveSource
	queue    QueueSizer
	bus      portbus.EventBus
	metrics  portmetrics.Recorder

	// tickMu serialises Tick; cfg.Rand is not safe for concurrent use.
	tickMu sync.Mutex

	mu        sync.RWMutex
	latest    portmetrics.Snapshot
	listeners []func(workerID string)
}

func New(cfg Config, registry portworker.Registry, active ActiveSource, queue QueueSizer, bus portbus.EventBus, metrics portmetrics.Recorder) *Monitor {
	if metrics == nil {
		metrics = portmetrics.Nop{}
	}
	return &Monitor{
		cfg:      cfg.withDefaults(),
		registry: registry,
		active:   active,
		queue:    queue,
		bus:      bus,
		metrics:  metrics,
	}
}

// OnAvailable registers fn to run whenever churn returns capacity to service.
func (m *Monitor) OnAvailable(fn func(workerID string)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Run ticks until ctx is cancelled. A panic inside one tick is logged and the
// loop carries on.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	slog.Info("monitor started", "interval", m.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("monitor stopped")
			return nil
		case <-ticker.C:
			m.safeTick(ctx)
		}
	}
}

func (m *Monitor) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "monitor tick panicked", "panic", fmt.Sprint(r))
		}
	}()
	m.Tick(ctx)
}

// Tick refreshes metrics, then applies churn.
func (m *Monitor) Tick(ctx context.Context) portmetrics.Snapshot {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	now := m.cfg.Now()
	load, capacity := m.registry.Totals()
	active := m.active.ActiveSnapshot()
	efficiency, avgWait := Measure(load, capacity, active, now)

	snap := portmetrics.Snapshot{
		EfficiencyPercent:  efficiency,
		AverageWaitMinutes: avgWait,
		QueueSize:          m.queue.QueueSize(),
		ActiveAssignments:  len(active),
	}
	m.mu.Lock()
	m.latest = snap
	m.mu.Unlock()

	m.metrics.Observe(ctx, snap)
	e := event.New(event.TypeMetricsUpdated, "system").
		With("efficiency", strconv.FormatFloat(efficiency, 'f', 2, 64)).
		With("average_wait", strconv.FormatFloat(avgWait, 'f', 2, 64))
	if err := m.bus.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "failed to publish MetricsUpdated event", "error", err)
	}

	if !m.cfg.Disabled {
		m.churn(ctx, now)
	}
	return snap
}

func (m *Monitor) Snapshot() portmetrics.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

func (m *Monitor) churn(ctx context.Context, now time.Time) {
	for _, w := range m.registry.List() {
		if m.cfg.Rand.Float64() >= m.cfg.ChurnGate {
			continue
		}

		var (
			updated domainworker.Worker
			err     error
			changed bool
		)
		switch w.Status {
		case domainworker.StatusAvailable:
			if m.cfg.Rand.Float64() < m.cfg.BreakProbability {
				updated, err = m.registry.SetStatus(w.ID, domainworker.StatusOnBreak, now)
				changed = true
			}
		case domainworker.StatusOnBreak:
			if m.cfg.Rand.Float64() < m.cfg.ReturnProbability {
				updated, err = m.registry.SetStatus(w.ID, domainworker.StatusAvailable, now)
				changed = true
			}
		case domainworker.StatusBusy:
			if m.cfg.Rand.Float64() < m.cfg.ShedProbability && w.CurrentLoad > 0 {
				updated, err = m.registry.Release(w.ID, now)
				changed = true
			}
		}
		if !changed {
			continue
		}
		if err != nil {
			slog.ErrorContext(ctx, "apply worker churn", "worker_id", w.ID, "error", err)
			continue
		}
		if updated.Status == w.Status && updated.CurrentLoad == w.CurrentLoad {
			continue
		}

		slog.InfoContext(ctx, "worker status changed", "worker_id", w.ID, "from", w.Status, "to", updated.Status, "load", updated.CurrentLoad)
		e := event.New(event.TypeWorkerStatus, w.ID).
			With("from", string(w.Status)).
			With("to", string(updated.Status))
		if err := m.bus.Publish(ctx, e); err != nil {
			slog.ErrorContext(ctx, "failed to publish WorkerStatusChanged event", "worker_id", w.ID, "error", err)
		}

		if updated.Eligible(now) {
			m.mu.RLock()
			listeners := slices.Clone(m.listeners)
			m.mu.RUnlock()
			for _, fn := range listeners {
				fn(w.ID)
			}
		}
	}
}
