package query_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/alanyang/interview-router/internal/domain/query"
)

func TestNew_Defaults(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	q := New("CUST_001", "best headphones", Priority(0), 0, "", now)

	assert.True(t, strings.HasPrefix(q.ID, "Q_"))
	assert.Len(t, q.ID, 10)
	assert.Equal(t, PriorityNormal, q.Priority)
	assert.Equal(t, DefaultExpectedDuration, q.ExpectedDuration)
	assert.Equal(t, DefaultCategory, q.Category)
	assert.Equal(t, now, q.SubmittedAt)
	assert.NotNil(t, q.Metadata)
}

func TestEscalate(t *testing.T) {
	tests := []struct {
		name        string
		from        Priority
		want        Priority
		wantChanged bool
	}{
		{name: "low→high", from: PriorityLow, want: PriorityHigh, wantChanged: true},
		{name: "normal→high", from: PriorityNormal, want: PriorityHigh, wantChanged: true},
		{name: "high stays high", from: PriorityHigh, want: PriorityHigh, wantChanged: false},
		{name: "urgent never lowered", from: PriorityUrgent, want: PriorityUrgent, wantChanged: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Query{Priority: tt.from}
			changed := q.Escalate()
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.want, q.Priority)
			assert.GreaterOrEqual(t, q.Priority, tt.from)
		})
	}
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority(" urgent ")
	require.NoError(t, err)
	assert.Equal(t, PriorityUrgent, p)

	_, err = ParsePriority("critical")
	require.Error(t, err)
}

func TestPriority_JSON(t *testing.T) {
	data, err := json.Marshal(PriorityHigh)
	require.NoError(t, err)
	assert.JSONEq(t, `"HIGH"`, string(data))

	var p Priority
	require.NoError(t, json.Unmarshal([]byte(`"low"`), &p))
	assert.Equal(t, PriorityLow, p)

	assert.Error(t, json.Unmarshal([]byte(`3`), &p))
}

func TestCopy_DoesNotShareMetadata(t *testing.T) {
	q := New("c", "text", PriorityNormal, 60, "general", time.Now())
	q.Metadata["source"] = "web"

	cp := q.Copy()
	cp.Metadata["source"] = "mcp"

	assert.Equal(t, "web", q.Metadata["source"])
}

func TestWaitMinutes(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	q := Query{SubmittedAt: start}
	assert.InDelta(t, 1.5, q.WaitMinutes(start.Add(90*time.Second)), 1e-9)
}
