package assignment

import (
	"time"

	"github.com/google/uuid"

	"github.com/alanyang/interview-router/internal/domain/query"
	"github.com/alanyang/interview-router/internal/domain/retrieval"
)

type Status string

const (
	StatusAssigned  Status = "assigned"
	StatusCompleted Status = "completed"
)

// Assignment binds a copied query to a worker. The worker is referenced by id
// only; the registry stays its sole owner.
type Assignment struct {
	ID                  string          `json:"assignment_id"`
	Query               query.Query     `json:"query"`
	WorkerID            string          `json:"interviewer_id"`
	WorkerName          string          `json:"interviewer_name"`
	WorkerSpecialties   []string        `json:"interviewer_specialties"`
	Targets             []string        `json:"target_interviewees"`
	Retrieval           []retrieval.Hit `json:"retrieval,omitempty"`
	EstimatedStart      time.Time       `json:"estimated_start_time"`
	EstimatedCompletion time.Time       `json:"estimated_completion_time"`
	Status              Status          `json:"status"`
	PriorityScore       float64         `json:"priority_score"`
	CreatedAt           time.Time       `json:"created_at"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
}

type Params struct {
	Query         query.Query
	WorkerID      string
	WorkerName    string
	Specialties   []string
	Result        retrieval.Result
	StartOffset   time.Duration
	PriorityScore float64
	Now           time.Time
}

func New(p Params) Assignment {
	start := p.Now.Add(p.StartOffset)
	targets := p.Result.Targets
	if targets == nil {
		targets = []string{}
	}
	return Assignment{
		ID:                  "A_" + uuid.New().String()[:8],
		Query:               p.Query.Copy(),
		WorkerID:            p.WorkerID,
		WorkerName:          p.WorkerName,
		WorkerSpecialties:   append([]string(nil), p.Specialties...),
		Targets:             append([]string{}, targets...),
		Retrieval:           append([]retrieval.Hit(nil), p.Result.Hits...),
		EstimatedStart:      start,
		EstimatedCompletion: start.Add(time.Duration(p.Query.ExpectedDuration) * time.Minute),
		Status:              StatusAssigned,
		PriorityScore:       p.PriorityScore,
		CreatedAt:           p.Now,
	}
}

// MarkCompleted is the only transition an assignment makes.
func (a *Assignment) MarkCompleted(at time.Time) {
	a.Status = StatusCompleted
	a.CompletedAt = &at
}

// Copy returns a value that shares no slices or maps with a.
func (a Assignment) Copy() Assignment {
	out := a
	out.Query = a.Query.Copy()
	out.WorkerSpecialties = append([]string(nil), a.WorkerSpecialties...)
	out.Targets = append([]string{}, a.Targets...)
	out.Retrieval = append([]retrieval.Hit(nil), a.Retrieval...)
	if a.CompletedAt != nil {
		at := *a.CompletedAt
		out.CompletedAt = &at
	}
	return out
}
