package wire

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/interview-router/internal/config"
	domainquery "github.com/alanyang/interview-router/internal/domain/query"
	"github.com/alanyang/interview-router/internal/service/dispatcher"
	"github.com/alanyang/interview-router/internal/service/monitor"
)

func inProcessEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("ROUTER_CONFIG", "")
	t.Setenv("PORT", "")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
seed: 7
lifecycle: {min_delay: 50ms, max_delay: 100ms}
monitor: {interval: 20ms, disable_churn: true}
`))
	require.NoError(t, err)
	return cfg
}

func TestBuild_InProcessDefaults(t *testing.T) {
	inProcessEnv(t)
	app, err := Build(context.Background(), nil)
	require.NoError(t, err)
	defer app.Close()

	assert.Len(t, app.Registry.List(), 6, "built-in population")
	assert.Equal(t, ":8080", app.Server.Addr)
	assert.NotNil(t, app.memCache)
	assert.Nil(t, app.pool)
}

func TestBuild_PortOverride(t *testing.T) {
	inProcessEnv(t)
	t.Setenv("PORT", "9999")
	app, err := Build(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer app.Close()
	assert.Equal(t, ":9999", app.Server.Addr)
}

func TestBuild_BadConfigPath(t *testing.T) {
	inProcessEnv(t)
	t.Setenv("ROUTER_CONFIG", "/does/not/exist.yaml")
	_, err := Build(context.Background(), nil)
	assert.ErrorContains(t, err, "loading config")
}

func TestRunHeadless_RoutesAndCompletes(t *testing.T) {
	inProcessEnv(t)
	app, err := Build(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunHeadless(ctx) }()

	id, err := app.Dispatcher.Submit(ctx, dispatcher.SubmitRequest{
		CustomerID: "CUST_002",
		Text:       "What do people think about the COSORI airfryer?",
		Priority:   domainquery.PriorityHigh,
	})
	require.NoError(t, err)

	var st dispatcher.QueryStatus
	require.Eventually(t, func() bool {
		st, _ = app.Dispatcher.GetQueryStatus(ctx, id)
		return st.State == domainquery.StateAssigned
	}, 2*time.Second, 5*time.Millisecond)

	details, err := app.Dispatcher.GetAssignmentDetails(ctx, st.AssignmentID)
	require.NoError(t, err)
	assert.Equal(t, "AI_HOME_001", details.Worker.ID, "airfryer is a HomeBot specialty")
	assert.Contains(t, details.Targets, "INT_003")

	require.Eventually(t, func() bool {
		return app.Dispatcher.GetSystemStatus(ctx).CompletedAssignments == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunHeadless did not stop")
	}
	assert.Zero(t, app.Tracker.ActiveCount())
}

func TestRouter_ServesStatus(t *testing.T) {
	inProcessEnv(t)
	app, err := Build(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer app.Close()

	srv := httptest.NewServer(app.Server.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusNoContent, health.StatusCode)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func TestMonitorConfig_OverridesOnlySetFields(t *testing.T) {
	gate := 0.0
	mc := monitorConfig(config.MonitorConfig{Interval: time.Second, ChurnGate: &gate}, nil)

	assert.Equal(t, time.Second, mc.Interval)
	assert.Equal(t, 0.0, mc.ChurnGate)
	assert.Equal(t, monitor.DefaultBreakProbability, mc.BreakProbability)
	assert.Equal(t, monitor.DefaultReturnProbability, mc.ReturnProbability)
	assert.Equal(t, monitor.DefaultShedProbability, mc.ShedProbability)
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("SWEEP_TEST", "")
	assert.Equal(t, time.Minute, envDuration("SWEEP_TEST", time.Minute))
	t.Setenv("SWEEP_TEST", "5")
	assert.Equal(t, 5*time.Second, envDuration("SWEEP_TEST", time.Minute))
	t.Setenv("SWEEP_TEST", "-3")
	assert.Equal(t, time.Minute, envDuration("SWEEP_TEST", time.Minute))
	t.Setenv("SWEEP_TEST", "soon")
	assert.Equal(t, time.Minute, envDuration("SWEEP_TEST", time.Minute))
}

func TestSeeder_Deterministic(t *testing.T) {
	a, b := newSeeder(42), newSeeder(42)
	for i := 0; i < 3; i++ {
		assert.Equal(t, a.next().Uint64(), b.next().Uint64())
	}
}

func TestRunSweeper_TicksUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		runSweeper(ctx, "test", 5*time.Millisecond, func(context.Context) (int64, error) {
			if calls.Add(1)%2 == 0 {
				return 0, errors.New("transient")
			}
			return 1, nil
		})
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond, "errors do not stop the sweeper")
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
