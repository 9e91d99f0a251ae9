package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alanyang/interview-router/internal/backoff"
	domainassignment "github.com/alanyang/interview-router/internal/domain/assignment"
	"github.com/alanyang/interview-router/internal/domain/event"
	domainquery "github.com/alanyang/interview-router/internal/domain/query"
	domainworker "github.com/alanyang/interview-router/internal/domain/worker"
	portbus "github.com/alanyang/interview-router/internal/port/eventbus"
	portmetrics "github.com/alanyang/interview-router/internal/port/metrics"
	portretrieval "github.com/alanyang/interview-router/internal/port/retrieval"
	portworker "github.com/alanyang/interview-router/internal/port/worker"
	"github.com/alanyang/interview-router/internal/service/lifecycle"
	"github.com/alanyang/interview-router/internal/service/matcher"
	"github.com/alanyang/interview-router/internal/service/monitor"
)

var (
	ErrInvalidQuery         = errors.New("invalid query")
	ErrQueryNotFound        = errors.New("query not found")
	ErrAssignmentNotFound   = errors.New("assignment not found")
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
)

const (
	DefaultRetrievalTimeout = 10 * time.Second
	DefaultStartOffsetMin   = 5 * time.Minute
	DefaultStartOffsetMax   = 30 * time.Minute
)

// Drop reasons surfaced through QueryStatus and metrics.
const (
	ReasonRetrieval    = "retrieval_unavailable"
	ReasonUnassignable = "max_match_attempts"
	ReasonInternal     = "internal_error"
)

type Config struct {
	RetrievalTimeout time.Duration
	// MaxMatchAttempts caps failed match attempts before a query is marked
	// unassignable. Zero keeps retrying forever.
	MaxMatchAttempts int
	StartOffsetMin   time.Duration
	StartOffsetMax   time.Duration
	Backoff          backoff.Strategy
	Rand             *rand.Rand
	Now              func() time.Time
}

func (c Config) withDefaults() Config {
	if c.RetrievalTimeout <= 0 {
		c.RetrievalTimeout = DefaultRetrievalTimeout
	}
	if c.StartOffsetMin <= 0 && c.StartOffsetMax <= 0 {
		c.StartOffsetMin, c.StartOffsetMax = DefaultStartOffsetMin, DefaultStartOffsetMax
	}
	if c.StartOffsetMax < c.StartOffsetMin {
		c.StartOffsetMax = c.StartOffsetMin
	}
	if c.Backoff == nil {
		c.Backoff = backoff.DefaultStrategy()
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// SubmitRequest carries caller input. Zero values select the defaults:
// NORMAL priority, 60 minutes, category "general".
type SubmitRequest struct {
	CustomerID       string
	Text             string
	Priority         domainquery.Priority
	ExpectedDuration int
	Category         string
	Metadata         map[string]any
}

type QueryStatus struct {
	QueryID      string               `json:"query_id"`
	CustomerID   string               `json:"customer_id"`
	State        domainquery.State    `json:"state"`
	Priority     domainquery.Priority `json:"priority"`
	Attempts     int                  `json:"attempts"`
	AssignmentID string               `json:"assignment_id,omitempty"`
	Reason       string               `json:"reason,omitempty"`
	SubmittedAt  time.Time            `json:"submitted_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

type WorkerDetail struct {
	ID          string   `json:"interviewer_id"`
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	CurrentLoad int      `json:"current_load"`
	MaxCapacity int      `json:"max_capacity"`
	Specialties []string `json:"specialties"`
}

type SystemStatus struct {
	Timestamp            time.Time      `json:"timestamp"`
	TotalWorkers         int            `json:"total_interviewers"`
	AvailableWorkers     int            `json:"available_interviewers"`
	ActiveAssignments    int            `json:"active_assignments"`
	CompletedAssignments int            `json:"completed_assignments"`
	TotalProcessed       int            `json:"total_queries_processed"`
	QueueSize            int            `json:"queue_size"`
	EfficiencyPercent    float64        `json:"system_efficiency"`
	AverageWaitMinutes   float64        `json:"average_wait_time"`
	Workers              []WorkerDetail `json:"interviewer_details"`
}

type QueryDetail struct {
	ID         string               `json:"query_id"`
	CustomerID string               `json:"customer_id"`
	Text       string               `json:"query_text"`
	Priority   domainquery.Priority `json:"priority"`
	Timestamp  time.Time            `json:"timestamp"`
}

type WorkerRef struct {
	ID          string   `json:"interviewer_id"`
	Name        string   `json:"name"`
	Specialties []string `json:"specialties"`
}

type AssignmentDetails struct {
	AssignmentID        string                  `json:"assignment_id"`
	Query               QueryDetail             `json:"query"`
	Worker              WorkerRef               `json:"interviewer"`
	Targets             []string                `json:"target_interviewees"`
	EstimatedStart      time.Time               `json:"estimated_start_time"`
	EstimatedCompletion time.Time               `json:"estimated_completion_time"`
	Status              domainassignment.Status `json:"status"`
	PriorityScore       float64                 `json:"priority_score"`
	CompletedAt         *time.Time              `json:"completed_at,omitempty"`
}

type record struct {
	status QueryStatus
}

// claim records what one iteration has taken so a panic can undo it.
type claim struct {
	workerID     string
	assignmentID string
}

// Service accepts queries, orders them by priority and runs the single
// processing loop that turns each one into an assignment.
type Service struct {
	cfg       Config
	registry  portworker.Registry
	retriever portretrieval.Retriever
	tracker   *lifecycle.Tracker
	bus       portbus.EventBus
	metrics   portmetrics.Recorder

	mu        sync.Mutex
	queue     priorityQueue
	records   map[string]*record
	processed int
	rnd       *rand.Rand

	submitted chan struct{}
	released  chan struct{}
}

func NewService(
	cfg Config,
	registry portworker.Registry,
	retriever portretrieval.Retriever,
	tracker *lifecycle.Tracker,
	bus portbus.EventBus,
	metrics portmetrics.Recorder,
) *Service {
	cfg = cfg.withDefaults()
	if metrics == nil {
		metrics = portmetrics.Nop{}
	}
	s := &Service{
		cfg:       cfg,
		registry:  registry,
		retriever: retriever,
		tracker:   tracker,
		bus:       bus,
		metrics:   metrics,
		records:   make(map[string]*record),
		rnd:       cfg.Rand,
		submitted: make(chan struct{}, 1),
		released:  make(chan struct{}, 1),
	}
	tracker.OnRelease(func(string) { s.Wake() })
	return s
}

// Submit validates and enqueues a query, returning its id immediately.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return "", fmt.Errorf("submit query: customer id is required: %w", ErrInvalidQuery)
	}
	if strings.TrimSpace(req.Text) == "" {
		return "", fmt.Errorf("submit query: query text is required: %w", ErrInvalidQuery)
	}
	if req.Priority == 0 {
		req.Priority = domainquery.PriorityNormal
	}
	if !req.Priority.Valid() {
		return "", fmt.Errorf("submit query: priority %d: %w", int(req.Priority), ErrInvalidQuery)
	}
	if req.ExpectedDuration < 0 {
		return "", fmt.Errorf("submit query: negative expected duration: %w", ErrInvalidQuery)
	}

	now := s.cfg.Now()
	q := domainquery.New(req.CustomerID, req.Text, req.Priority, req.ExpectedDuration, req.Category, now)
	for k, v := range req.Metadata {
		q.Metadata[k] = v
	}

	s.mu.Lock()
	s.queue.push(q)
	s.records[q.ID] = &record{status: QueryStatus{
		QueryID:     q.ID,
		CustomerID:  q.CustomerID,
		State:       domainquery.StatePending,
		Priority:    q.Priority,
		SubmittedAt: q.SubmittedAt,
		UpdatedAt:   now,
	}}
	s.mu.Unlock()
	signal(s.submitted)

	slog.InfoContext(ctx, "query submitted", "query_id", q.ID, "customer_id", q.CustomerID, "priority", q.Priority.String())
	s.metrics.QuerySubmitted(ctx, q.Priority.String())
	s.publish(ctx, event.New(event.TypeQuerySubmitted, q.ID).With("priority", q.Priority.String()))

	return q.ID, nil
}

// Wake tells a backing-off loop that capacity may have appeared.
func (s *Service) Wake() { signal(s.released) }

// Run is the processing loop. It handles one query at a time until ctx is
// cancelled; a failing iteration never stops the loop. Queries still queued
// at cancellation stay pending.
func (s *Service) Run(ctx context.Context) error {
	slog.Info("dispatcher started")
	for {
		q, ok := s.next(ctx)
		if !ok {
			break
		}
		attempt, retry := s.safeProcess(ctx, q)
		if ctx.Err() != nil {
			break
		}
		if retry {
			s.pause(ctx, attempt)
		}
	}
	slog.Info("dispatcher stopped", "queued", s.QueueSize())
	return nil
}

func (s *Service) next(ctx context.Context) (domainquery.Query, bool) {
	for {
		if ctx.Err() != nil {
			return domainquery.Query{}, false
		}
		s.mu.Lock()
		q, ok := s.queue.pop()
		s.mu.Unlock()
		if ok {
			return q, true
		}
		select {
		case <-ctx.Done():
			return domainquery.Query{}, false
		case <-s.submitted:
		}
	}
}

// pause waits after a failed match until capacity is released or the backoff
// delay elapses.
func (s *Service) pause(ctx context.Context, attempt int) {
	timer := time.NewTimer(s.cfg.Backoff.Delay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-s.released:
	case <-timer.C:
	}
}

func (s *Service) safeProcess(ctx context.Context, q domainquery.Query) (attempt int, retry bool) {
	var c claim
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "processing query panicked", "query_id", q.ID, "panic", fmt.Sprint(r))
			s.settle(ctx, q, c)
			attempt, retry = 0, false
		}
	}()
	return s.process(ctx, q, &c)
}

// settle leaves a query consistent after a panicked iteration. A tracked
// assignment stands and owns its reservation; an untracked reservation is
// returned before the query is dropped.
func (s *Service) settle(ctx context.Context, q domainquery.Query, c claim) {
	now := s.cfg.Now()
	if c.assignmentID != "" {
		s.markAssigned(q, c.assignmentID, now)
		return
	}
	if c.workerID != "" {
		if _, err := s.registry.Release(c.workerID, now); err != nil {
			slog.ErrorContext(ctx, "release worker after panic", "worker_id", c.workerID, "error", err)
		}
	}
	s.drop(ctx, q, ReasonInternal)
}

// markAssigned records the assignment on the query. Repeated calls count the
// query once.
func (s *Service) markAssigned(q domainquery.Query, assignmentID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[q.ID]
	if ok && rec.status.State == domainquery.StateAssigned {
		return
	}
	s.processed++
	if ok {
		rec.status.State = domainquery.StateAssigned
		rec.status.AssignmentID = assignmentID
		rec.status.Priority = q.Priority
		rec.status.Reason = ""
		rec.status.UpdatedAt = now
	}
}

// process handles one dequeued query. It reports whether the query went back
// to the queue and how many attempts it has used.
func (s *Service) process(ctx context.Context, q domainquery.Query, c *claim) (int, bool) {
	rctx, cancel := context.WithTimeout(ctx, s.cfg.RetrievalTimeout)
	result, err := s.retriever.Retrieve(rctx, q.Text)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			// Shutting down: leave the query queued untouched for Run to stop.
			s.requeue(q)
			return q.Attempts, false
		}
		slog.WarnContext(ctx, "dropping query: retrieval failed",
			"query_id", q.ID, "error", fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err))
		s.drop(ctx, q, ReasonRetrieval)
		return 0, false
	}

	now := s.cfg.Now()
	candidate, err := matcher.SelectBest(q, s.registry.SnapshotEligible(now))
	if err == nil {
		candidate.Worker, err = s.registry.Reserve(candidate.Worker.ID, now)
	}
	if err != nil {
		if !errors.Is(err, matcher.ErrNoEligibleWorker) && !errors.Is(err, portworker.ErrStaleEligibility) {
			slog.ErrorContext(ctx, "reserve worker", "query_id", q.ID, "error", err)
		}
		return s.escalate(ctx, q)
	}

	w := candidate.Worker
	c.workerID = w.ID
	a := domainassignment.New(domainassignment.Params{
		Query:         q,
		WorkerID:      w.ID,
		WorkerName:    w.Name,
		Specialties:   w.Specialties,
		Result:        result,
		StartOffset:   s.startOffset(),
		PriorityScore: matcher.PriorityScore(q, w, now),
		Now:           now,
	})
	if !s.tracker.Track(a) {
		// Tracker closed: hand the capacity back and wait before retrying.
		if _, err := s.registry.Release(w.ID, now); err != nil {
			slog.ErrorContext(ctx, "release worker after refused track", "worker_id", w.ID, "error", err)
		}
		c.workerID = ""
		slog.WarnContext(ctx, "tracker refused assignment, query requeued", "query_id", q.ID)
		s.requeue(q)
		return q.Attempts + 1, true
	}
	c.assignmentID = a.ID
	s.markAssigned(q, a.ID, now)

	slog.InfoContext(ctx, "assignment created",
		"assignment_id", a.ID,
		"query_id", q.ID,
		"worker_id", w.ID,
		"score", candidate.Score,
		"targets", len(a.Targets),
	)
	s.metrics.AssignmentCreated(ctx, w.ID, candidate.Score)
	s.publish(ctx, event.New(event.TypeAssignmentCreated, a.ID).
		With("query_id", q.ID).
		With("worker_id", w.ID))
	return 0, false
}

// escalate raises the query to at least HIGH and puts it back, unless the
// attempt cap has been reached.
func (s *Service) escalate(ctx context.Context, q domainquery.Query) (int, bool) {
	q.Escalate()
	q.Attempts++
	now := s.cfg.Now()

	if s.cfg.MaxMatchAttempts > 0 && q.Attempts >= s.cfg.MaxMatchAttempts {
		s.mu.Lock()
		if rec, ok := s.records[q.ID]; ok {
			rec.status.State = domainquery.StateUnassignable
			rec.status.Reason = ReasonUnassignable
			rec.status.Priority = q.Priority
			rec.status.Attempts = q.Attempts
			rec.status.UpdatedAt = now
		}
		s.mu.Unlock()

		slog.WarnContext(ctx, "query unassignable", "query_id", q.ID, "attempts", q.Attempts)
		s.metrics.QueryDropped(ctx, ReasonUnassignable)
		s.publish(ctx, event.New(event.TypeQueryUnassignable, q.ID).With("attempts", strconv.Itoa(q.Attempts)))
		return q.Attempts, false
	}

	s.mu.Lock()
	s.queue.push(q)
	if rec, ok := s.records[q.ID]; ok {
		rec.status.Priority = q.Priority
		rec.status.Attempts = q.Attempts
		rec.status.UpdatedAt = now
	}
	s.mu.Unlock()

	slog.InfoContext(ctx, "no eligible worker, query requeued", "query_id", q.ID, "priority", q.Priority.String(), "attempts", q.Attempts)
	s.metrics.QueryEscalated(ctx)
	s.publish(ctx, event.New(event.TypeQueryEscalated, q.ID).
		With("priority", q.Priority.String()).
		With("attempts", strconv.Itoa(q.Attempts)))
	return q.Attempts, true
}

func (s *Service) requeue(q domainquery.Query) {
	s.mu.Lock()
	s.queue.push(q)
	s.mu.Unlock()
}

func (s *Service) drop(ctx context.Context, q domainquery.Query, reason string) {
	s.mu.Lock()
	if rec, ok := s.records[q.ID]; ok {
		rec.status.State = domainquery.StateDropped
		rec.status.Reason = reason
		rec.status.UpdatedAt = s.cfg.Now()
	}
	s.mu.Unlock()

	s.metrics.QueryDropped(ctx, reason)
	s.publish(ctx, event.New(event.TypeQueryDropped, q.ID).With("reason", reason))
}

func (s *Service) startOffset() time.Duration {
	lo, hi := s.cfg.StartOffsetMin, s.cfg.StartOffsetMax
	if hi <= lo {
		return lo
	}
	// Whole minutes, inclusive on both ends.
	span := int64((hi - lo) / time.Minute)
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + time.Duration(s.rnd.Int64N(span+1))*time.Minute
}

func (s *Service) publish(ctx context.Context, e event.Event) {
	if err := s.bus.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "failed to publish event", "type", e.Type, "entity_id", e.EntityID, "error", err)
	}
}

func (s *Service) QueueSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.len()
}

func (s *Service) GetQueryStatus(_ context.Context, id string) (QueryStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return QueryStatus{}, fmt.Errorf("get query %s: %w", id, ErrQueryNotFound)
	}
	return rec.status, nil
}

func (s *Service) GetAssignmentDetails(_ context.Context, id string) (AssignmentDetails, error) {
	a, ok := s.tracker.Get(id)
	if !ok {
		return AssignmentDetails{}, fmt.Errorf("get assignment %s: %w", id, ErrAssignmentNotFound)
	}
	return AssignmentDetails{
		AssignmentID: a.ID,
		Query: QueryDetail{
			ID:         a.Query.ID,
			CustomerID: a.Query.CustomerID,
			Text:       a.Query.Text,
			Priority:   a.Query.Priority,
			Timestamp:  a.Query.SubmittedAt,
		},
		Worker: WorkerRef{
			ID:          a.WorkerID,
			Name:        a.WorkerName,
			Specialties: a.WorkerSpecialties,
		},
		Targets:             a.Targets,
		EstimatedStart:      a.EstimatedStart,
		EstimatedCompletion: a.EstimatedCompletion,
		Status:              a.Status,
		PriorityScore:       round2(a.PriorityScore),
		CompletedAt:         a.CompletedAt,
	}, nil
}

// GetSystemStatus assembles a point-in-time view. Efficiency and wait are
// computed fresh from the registry and the active set.
func (s *Service) GetSystemStatus(_ context.Context) SystemStatus {
	now := s.cfg.Now()
	workers := s.registry.List()
	active := s.tracker.ActiveSnapshot()
	completed := s.tracker.CompletedCount()

	var load, capacity, available int
	details := make([]WorkerDetail, 0, len(workers))
	for _, w := range workers {
		load += w.CurrentLoad
		capacity += w.MaxCapacity
		if w.Status == domainworker.StatusAvailable {
			available++
		}
		details = append(details, WorkerDetail{
			ID:          w.ID,
			Name:        w.Name,
			Status:      string(w.Status),
			CurrentLoad: w.CurrentLoad,
			MaxCapacity: w.MaxCapacity,
			Specialties: w.Specialties,
		})
	}
	efficiency, avgWait := monitor.Measure(load, capacity, active, now)

	s.mu.Lock()
	processed := s.processed
	queued := s.queue.len()
	s.mu.Unlock()

	return SystemStatus{
		Timestamp:            now,
		TotalWorkers:         len(workers),
		AvailableWorkers:     available,
		ActiveAssignments:    len(active),
		CompletedAssignments: completed,
		TotalProcessed:       processed,
		QueueSize:            queued,
		EfficiencyPercent:    round2(efficiency),
		AverageWaitMinutes:   round2(avgWait),
		Workers:              details,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
