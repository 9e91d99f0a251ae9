package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/alanyang/interview-router/internal/adapter/memory"
	domainquery "github.com/alanyang/interview-router/internal/domain/query"
	domainretrieval "github.com/alanyang/interview-router/internal/domain/retrieval"
	domainworker "github.com/alanyang/interview-router/internal/domain/worker"
	"github.com/alanyang/interview-router/internal/mocks"
	"github.com/alanyang/interview-router/internal/service/dispatcher"
	"github.com/alanyang/interview-router/internal/service/lifecycle"
	"github.com/alanyang/interview-router/internal/testutil"
	"github.com/alanyang/interview-router/internal/transport/ratelimit"
)

// ── helpers ───────────────────────────────────────────────────────────────────

type toolsDeps struct {
	registry  *memory.Registry
	retriever *mocks.MockRetriever
	bus       *testutil.CaptureBus
}

func newToolsDeps(t *testing.T) (*dispatcher.Service, toolsDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)
	d := toolsDeps{
		registry:  memory.NewRegistry(),
		retriever: mocks.NewMockRetriever(ctrl),
		bus:       testutil.NewCaptureBus(),
	}
	require.NoError(t, d.registry.Register(domainworker.New("AI_TECH_001", "TechBot Alpha",
		[]string{"headphones"}, 45, 4, domainworker.Metrics{Satisfaction: 4.6}, time.Now())))
	tracker := lifecycle.NewTracker(lifecycle.Config{MinDelay: time.Hour}, d.registry, d.bus, nil)
	t.Cleanup(tracker.Shutdown)
	return dispatcher.NewService(dispatcher.Config{}, d.registry, d.retriever, tracker, d.bus, nil), d
}

func makeReq(args map[string]any) mcpmcp.CallToolRequest {
	var req mcpmcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(r *mcpmcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	b, _ := json.Marshal(r.Content[0])
	var m map[string]interface{}
	json.Unmarshal(b, &m) //nolint:errcheck
	if t, ok := m["text"].(string); ok {
		return t
	}
	return ""
}

// ── submitQueryHandler ────────────────────────────────────────────────────────

func TestSubmitQueryHandler(t *testing.T) {
	tests := []struct {
		name         string
		args         map[string]any
		wantContains string
		wantQueued   int
	}{
		{
			name:         "accepted returns query id",
			args:         map[string]any{"customer_id": "CUST_001", "query_text": "best headphones"},
			wantContains: `"query_id":"Q_`,
			wantQueued:   1,
		},
		{
			name:         "priority and duration honoured",
			args:         map[string]any{"customer_id": "CUST_004", "query_text": "battery life", "priority": "urgent", "expected_duration": 45},
			wantContains: `"query_id":"Q_`,
			wantQueued:   1,
		},
		{
			name:         "bad priority returns error text",
			args:         map[string]any{"customer_id": "c", "query_text": "x", "priority": "soon"},
			wantContains: "error: priority must be one of",
		},
		{
			name:         "missing customer returns error text",
			args:         map[string]any{"query_text": "x"},
			wantContains: "error: submit query: customer id is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newToolsDeps(t)
			h := submitQueryHandler(NewSessionRegistry(), svc, nil)

			res, err := h(context.Background(), makeReq(tt.args))
			require.NoError(t, err)
			assert.Contains(t, resultText(res), tt.wantContains)
			assert.Equal(t, tt.wantQueued, svc.QueueSize())
		})
	}
}

func TestSubmitQueryHandler_RateLimited(t *testing.T) {
	svc, _ := newToolsDeps(t)
	h := submitQueryHandler(NewSessionRegistry(), svc, ratelimit.New(0.001, 1))
	args := map[string]any{"customer_id": "CUST_001", "query_text": "x"}

	res, err := h(context.Background(), makeReq(args))
	require.NoError(t, err)
	assert.Contains(t, resultText(res), "query_id")

	res, err = h(context.Background(), makeReq(args))
	require.NoError(t, err)
	assert.Equal(t, "error: submission rate exceeded", resultText(res))
}

// ── read handlers ─────────────────────────────────────────────────────────────

func TestGetQueryStatusHandler(t *testing.T) {
	svc, _ := newToolsDeps(t)
	id, err := svc.Submit(context.Background(), dispatcher.SubmitRequest{CustomerID: "c", Text: "x", Priority: domainquery.PriorityLow})
	require.NoError(t, err)

	h := getQueryStatusHandler(svc)

	res, err := h(context.Background(), makeReq(map[string]any{"query_id": id}))
	require.NoError(t, err)
	var st dispatcher.QueryStatus
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &st))
	assert.Equal(t, domainquery.StatePending, st.State)
	assert.Equal(t, domainquery.PriorityLow, st.Priority)

	res, err = h(context.Background(), makeReq(map[string]any{"query_id": "Q_nope"}))
	require.NoError(t, err)
	assert.Equal(t, "error: query not found", resultText(res))
}

func TestGetAssignmentDetailsHandler(t *testing.T) {
	svc, d := newToolsDeps(t)
	d.retriever.EXPECT().Retrieve(gomock.Any(), gomock.Any()).
		Return(domainretrieval.Result{Targets: []string{"INT_001"}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); _ = svc.Run(ctx) }()
	t.Cleanup(func() { cancel(); <-done })

	id, err := svc.Submit(ctx, dispatcher.SubmitRequest{CustomerID: "c", Text: "best headphones"})
	require.NoError(t, err)
	var st dispatcher.QueryStatus
	require.Eventually(t, func() bool {
		st, _ = svc.GetQueryStatus(ctx, id)
		return st.State == domainquery.StateAssigned
	}, 2*time.Second, 5*time.Millisecond)

	h := getAssignmentDetailsHandler(svc)
	res, err := h(context.Background(), makeReq(map[string]any{"assignment_id": st.AssignmentID}))
	require.NoError(t, err)
	text := resultText(res)
	assert.Contains(t, text, `"interviewer_id":"AI_TECH_001"`)
	assert.Contains(t, text, `"target_interviewees":["INT_001"]`)

	res, err = h(context.Background(), makeReq(map[string]any{"assignment_id": "A_nope"}))
	require.NoError(t, err)
	assert.Equal(t, "error: assignment not found", resultText(res))
}

func TestGetSystemStatusHandler(t *testing.T) {
	svc, _ := newToolsDeps(t)
	res, err := getSystemStatusHandler(svc)(context.Background(), makeReq(nil))
	require.NoError(t, err)

	var st dispatcher.SystemStatus
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &st))
	assert.Equal(t, 1, st.TotalWorkers)
	assert.Equal(t, 1, st.AvailableWorkers)
}

func TestBriefing(t *testing.T) {
	svc, _ := newToolsDeps(t)
	text := briefing(svc.GetSystemStatus(context.Background()))
	assert.Contains(t, text, "1 of 1 interviewers available")
	assert.Contains(t, text, "TechBot Alpha (AI_TECH_001): available, load 0/4")
}
