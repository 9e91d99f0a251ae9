package monitor_test

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/alanyang/interview-router/internal/adapter/memory"
	domainassignment "github.com/alanyang/interview-router/internal/domain/assignment"
	"github.com/alanyang/interview-router/internal/domain/event"
	domainquery "github.com/alanyang/interview-router/internal/domain/query"
	domainworker "github.com/alanyang/interview-router/internal/domain/worker"
	"github.com/alanyang/interview-router/internal/mocks"
	portmetrics "github.com/alanyang/interview-router/internal/port/metrics"
	"github.com/alanyang/interview-router/internal/service/monitor"
	"github.com/alanyang/interview-router/internal/testutil"
)

var t0 = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type fixedQueue int

func (f fixedQueue) QueueSize() int { return int(f) }

type staticActive []domainassignment.Assignment

func (s staticActive) ActiveSnapshot() []domainassignment.Assignment { return s }

func register(t *testing.T, reg *memory.Registry, id string, capacity, load int) {
	t.Helper()
	require.NoError(t, reg.Register(domainworker.New(id, id, nil, 40, capacity, domainworker.Metrics{}, t0)))
	for i := 0; i < load; i++ {
		_, err := reg.Reserve(id, t0)
		require.NoError(t, err)
	}
}

func activeSubmittedAgo(ago ...time.Duration) staticActive {
	var out staticActive
	for _, d := range ago {
		out = append(out, domainassignment.Assignment{Query: domainquery.Query{SubmittedAt: t0.Add(-d)}})
	}
	return out
}

func noChurn() monitor.Config {
	return monitor.Config{Disabled: true, Now: func() time.Time { return t0 }}
}

// ── Measure ───────────────────────────────────────────────────────────────────

func TestMeasure(t *testing.T) {
	tests := []struct {
		name       string
		load, cap  int
		active     staticActive
		wantEff    float64
		wantWaitMn float64
	}{
		{"zero capacity", 0, 0, nil, 0, 0},
		{"idle", 0, 10, nil, 0, 0},
		{"half", 5, 10, activeSubmittedAgo(2*time.Minute, 4*time.Minute), 50, 3},
		{"full", 10, 10, activeSubmittedAgo(time.Minute), 100, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eff, wait := monitor.Measure(tt.load, tt.cap, tt.active, t0)
			assert.InDelta(t, tt.wantEff, eff, 1e-9)
			assert.InDelta(t, tt.wantWaitMn, wait, 1e-9)
			assert.GreaterOrEqual(t, eff, 0.0)
			assert.LessOrEqual(t, eff, 100.0)
		})
	}
}

// ── Tick ──────────────────────────────────────────────────────────────────────

func TestTick_RefreshesSnapshot(t *testing.T) {
	reg := memory.NewRegistry()
	register(t, reg, "A", 4, 1)
	register(t, reg, "B", 6, 2)
	bus := testutil.NewCaptureBus()

	ctrl := gomock.NewController(t)
	rec := mocks.NewMockRecorder(ctrl)
	rec.EXPECT().Observe(gomock.Any(), portmetrics.Snapshot{
		EfficiencyPercent:  30,
		AverageWaitMinutes: 6,
		QueueSize:          3,
		ActiveAssignments:  1,
	})

	m := monitor.New(noChurn(), reg, activeSubmittedAgo(6*time.Minute), fixedQueue(3), bus, rec)
	snap := m.Tick(context.Background())

	assert.InDelta(t, 30.0, snap.EfficiencyPercent, 1e-9)
	assert.Equal(t, snap, m.Snapshot())
	assert.Equal(t, 1, bus.Count(event.TypeMetricsUpdated))
}

func TestTick_ChurnAvailableToBreak(t *testing.T) {
	reg := memory.NewRegistry()
	register(t, reg, "A", 4, 0)
	register(t, reg, "B", 4, 0)
	bus := testutil.NewCaptureBus()

	cfg := noChurn()
	cfg.Disabled = false
	cfg.ChurnGate, cfg.BreakProbability = 1, 1
	m := monitor.New(cfg, reg, staticActive{}, fixedQueue(0), bus, nil)
	m.Tick(context.Background())

	for _, w := range reg.List() {
		assert.Equal(t, domainworker.StatusOnBreak, w.Status)
	}
	assert.Equal(t, 2, bus.Count(event.TypeWorkerStatus))
}

func TestTick_ChurnBreakToAvailableNotifies(t *testing.T) {
	reg := memory.NewRegistry()
	register(t, reg, "A", 4, 0)
	_, err := reg.SetStatus("A", domainworker.StatusOnBreak, t0)
	require.NoError(t, err)

	cfg := noChurn()
	cfg.Disabled = false
	cfg.ChurnGate, cfg.ReturnProbability = 1, 1
	m := monitor.New(cfg, reg, staticActive{}, fixedQueue(0), testutil.NewCaptureBus(), nil)

	var woke []string
	m.OnAvailable(func(id string) { woke = append(woke, id) })
	m.Tick(context.Background())

	w, err := reg.Get("A")
	require.NoError(t, err)
	assert.Equal(t, domainworker.StatusAvailable, w.Status)
	assert.Equal(t, []string{"A"}, woke)
}

func TestTick_ChurnShedsBusyLoad(t *testing.T) {
	reg := memory.NewRegistry()
	register(t, reg, "A", 2, 2)

	cfg := noChurn()
	cfg.Disabled = false
	cfg.ChurnGate, cfg.ShedProbability = 1, 1
	m := monitor.New(cfg, reg, staticActive{}, fixedQueue(0), testutil.NewCaptureBus(), nil)
	m.Tick(context.Background())

	w, err := reg.Get("A")
	require.NoError(t, err)
	assert.Equal(t, 1, w.CurrentLoad)
	assert.Equal(t, domainworker.StatusAvailable, w.Status)
}

func TestTick_GateClosedLeavesWorkersAlone(t *testing.T) {
	reg := memory.NewRegistry()
	register(t, reg, "A", 4, 0)

	cfg := noChurn()
	cfg.Disabled = false
	cfg.ChurnGate, cfg.BreakProbability = 0, 1
	cfg.Rand = rand.New(rand.NewPCG(7, 7))
	m := monitor.New(cfg, reg, staticActive{}, fixedQueue(0), testutil.NewCaptureBus(), nil)

	for i := 0; i < 20; i++ {
		m.Tick(context.Background())
	}
	w, err := reg.Get("A")
	require.NoError(t, err)
	assert.Equal(t, domainworker.StatusAvailable, w.Status)
}

// ── Run ───────────────────────────────────────────────────────────────────────

func TestRun_StopsOnCancel(t *testing.T) {
	reg := memory.NewRegistry()
	register(t, reg, "A", 4, 2)

	cfg := noChurn()
	cfg.Interval = 5 * time.Millisecond
	m := monitor.New(cfg, reg, staticActive{}, fixedQueue(0), testutil.NewCaptureBus(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return m.Snapshot().EfficiencyPercent == 50 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
