package worker

import (
	"errors"
	"time"

	domainworker "github.com/alanyang/interview-router/internal/domain/worker"
)

var (
	ErrWorkerNotFound   = errors.New("worker not found")
	ErrDuplicateWorker  = errors.New("worker already registered")
	ErrInvalidCapacity  = errors.New("worker capacity must be positive")
	ErrInvalidStatus    = errors.New("status cannot be set directly")
	ErrStaleEligibility = errors.New("worker no longer eligible")
)

// Registry owns the worker population. All methods return copies.
type Registry interface {
	Register(w domainworker.Worker) error
	Get(id string) (domainworker.Worker, error)
	List() []domainworker.Worker

	// SnapshotEligible is a point-in-time view; callers must tolerate
	// staleness and rely on Reserve to re-validate.
	SnapshotEligible(now time.Time) []domainworker.Worker

	// Reserve re-checks eligibility and takes one unit of capacity in a
	// single atomic step. Returns ErrStaleEligibility when the worker lost
	// the race.
	Reserve(id string, now time.Time) (domainworker.Worker, error)
	// Release gives back one unit of capacity; load never drops below zero.
	Release(id string, now time.Time) (domainworker.Worker, error)

	// SetStatus applies monitor-driven churn (available, on_break, offline).
	SetStatus(id string, status domainworker.Status, now time.Time) (domainworker.Worker, error)

	// Totals returns Σload and Σcapacity from one consistent read.
	Totals() (load, capacity int)
}
