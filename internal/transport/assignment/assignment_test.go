package assignment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
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
	transportassignment "github.com/alanyang/interview-router/internal/transport/assignment"
)

func init() { gin.SetMode(gin.TestMode) }

func TestGetAssignment(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := memory.NewRegistry()
	require.NoError(t, reg.Register(domainworker.New("AI_TECH_001", "TechBot Alpha", []string{"headphones"}, 45, 2,
		domainworker.Metrics{Satisfaction: 4.5}, time.Now())))
	bus := testutil.NewCaptureBus()
	tracker := lifecycle.NewTracker(lifecycle.Config{MinDelay: time.Hour}, reg, bus, nil)
	t.Cleanup(tracker.Shutdown)

	retriever := mocks.NewMockRetriever(ctrl)
	retriever.EXPECT().Retrieve(gomock.Any(), gomock.Any()).
		Return(domainretrieval.Result{Targets: []string{"INT_001", "INT_002"}}, nil)
	svc := dispatcher.NewService(dispatcher.Config{}, reg, retriever, tracker, bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); _ = svc.Run(ctx) }()
	t.Cleanup(func() { cancel(); <-done })

	id, err := svc.Submit(ctx, dispatcher.SubmitRequest{CustomerID: "CUST_001", Text: "best headphones"})
	require.NoError(t, err)

	var st dispatcher.QueryStatus
	require.Eventually(t, func() bool {
		st, _ = svc.GetQueryStatus(ctx, id)
		return st.State == domainquery.StateAssigned
	}, 2*time.Second, 5*time.Millisecond)

	r := gin.New()
	transportassignment.Register(r.Group("/assignments"), svc)

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/assignments/"+st.AssignmentID, nil)
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, st.AssignmentID, body["assignment_id"])
		assert.Equal(t, []any{"INT_001", "INT_002"}, body["target_interviewees"])
		assert.Equal(t, "assigned", body["status"])

		interviewer := body["interviewer"].(map[string]any)
		assert.Equal(t, "AI_TECH_001", interviewer["interviewer_id"])

		query := body["query"].(map[string]any)
		assert.Equal(t, "NORMAL", query["priority"])
		assert.Equal(t, "best headphones", query["query_text"])
	})

	t.Run("missing returns 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/assignments/A_missing", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
