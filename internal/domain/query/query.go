package query

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority is an ordered urgency level. Higher values are served first.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 2
	PriorityHigh   Priority = 3
	PriorityUrgent Priority = 4
)

var priorityNames = map[Priority]string{
	PriorityLow:    "LOW",
	PriorityNormal: "NORMAL",
	PriorityHigh:   "HIGH",
	PriorityUrgent: "URGENT",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

// ParsePriority accepts a level name in any case.
func ParsePriority(s string) (Priority, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for p, name := range priorityNames {
		if name == want {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("priority must be a string: %w", err)
	}
	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

type State string

const (
	StatePending      State = "pending"
	StateAssigned     State = "assigned"
	StateDropped      State = "dropped"
	StateUnassignable State = "unassignable"
)

const (
	DefaultExpectedDuration = 60
	DefaultCategory         = "general"
)

type Query struct {
	ID               string         `json:"query_id"`
	CustomerID       string         `json:"customer_id"`
	Text             string         `json:"query_text"`
	Priority         Priority       `json:"priority"`
	SubmittedAt      time.Time      `json:"timestamp"`
	ExpectedDuration int            `json:"expected_duration"`
	Category         string         `json:"category"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	// Attempts counts failed match attempts.
	Attempts int `json:"attempts"`
}

func New(customerID, text string, priority Priority, expectedDuration int, category string, submittedAt time.Time) Query {
	if !priority.Valid() {
		priority = PriorityNormal
	}
	if expectedDuration <= 0 {
		expectedDuration = DefaultExpectedDuration
	}
	if category == "" {
		category = DefaultCategory
	}
	return Query{
		ID:               "Q_" + uuid.New().String()[:8],
		CustomerID:       customerID,
		Text:             text,
		Priority:         priority,
		SubmittedAt:      submittedAt,
		ExpectedDuration: expectedDuration,
		Category:         category,
		Metadata:         map[string]any{},
	}
}

// Escalate raises the priority to HIGH after a failed match. It never lowers
// an URGENT query and reports whether the level changed.
func (q *Query) Escalate() bool {
	if q.Priority >= PriorityHigh {
		return false
	}
	q.Priority = PriorityHigh
	return true
}

// WaitMinutes is the time since submission in fractional minutes.
func (q *Query) WaitMinutes(now time.Time) float64 {
	return now.Sub(q.SubmittedAt).Minutes()
}

// Copy returns a deep copy so an assignment never shares the metadata map.
func (q Query) Copy() Query {
	out := q
	if q.Metadata != nil {
		out.Metadata = make(map[string]any, len(q.Metadata))
		for k, v := range q.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
