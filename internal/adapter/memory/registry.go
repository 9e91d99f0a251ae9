package memory

import (
	"fmt"
	"sync"
	"time"

	domainworker "github.com/alanyang/interview-router/internal/domain/worker"
	portworker "github.com/alanyang/interview-router/internal/port/worker"
)

var _ portworker.Registry = (*Registry)(nil)

// Registry is the in-process worker registry. A single RWMutex serialises
// every load and status mutation; reads hand out copies.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]*domainworker.Worker
	order   []string // registration order; ties in scoring depend on it
}

func NewRegistry() *Registry {
	return &Registry{
		workers: make(map[string]*domainworker.Worker),
	}
}

func (r *Registry) Register(w domainworker.Worker) error {
	if w.MaxCapacity <= 0 {
		return fmt.Errorf("register %s: %w", w.ID, portworker.ErrInvalidCapacity)
	}
	if w.CurrentLoad < 0 || w.CurrentLoad > w.MaxCapacity {
		return fmt.Errorf("register %s: load %d outside [0,%d]", w.ID, w.CurrentLoad, w.MaxCapacity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workers[w.ID]; ok {
		return fmt.Errorf("register %s: %w", w.ID, portworker.ErrDuplicateWorker)
	}
	cp := w.Copy()
	if cp.Status == "" {
		cp.Status = domainworker.StatusAvailable
	}
	cp.DeriveStatus()
	r.workers[w.ID] = &cp
	r.order = append(r.order, w.ID)
	return nil
}

func (r *Registry) Get(id string) (domainworker.Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workers[id]
	if !ok {
		return domainworker.Worker{}, fmt.Errorf("get %s: %w", id, portworker.ErrWorkerNotFound)
	}
	return w.Copy(), nil
}

func (r *Registry) List() []domainworker.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domainworker.Worker, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.workers[id].Copy())
	}
	return out
}

func (r *Registry) SnapshotEligible(now time.Time) []domainworker.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domainworker.Worker
	for _, id := range r.order {
		w := r.workers[id]
		if w.Eligible(now) {
			out = append(out, w.Copy())
		}
	}
	return out
}

func (r *Registry) Reserve(id string, now time.Time) (domainworker.Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[id]
	if !ok {
		return domainworker.Worker{}, fmt.Errorf("reserve %s: %w", id, portworker.ErrWorkerNotFound)
	}
	if !w.Eligible(now) {
		return domainworker.Worker{}, fmt.Errorf("reserve %s: %w", id, portworker.ErrStaleEligibility)
	}
	w.CurrentLoad++
	w.LastActivity = now
	w.DeriveStatus()
	return w.Copy(), nil
}

func (r *Registry) Release(id string, now time.Time) (domainworker.Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[id]
	if !ok {
		return domainworker.Worker{}, fmt.Errorf("release %s: %w", id, portworker.ErrWorkerNotFound)
	}
	if w.CurrentLoad > 0 {
		w.CurrentLoad--
	}
	w.LastActivity = now
	w.DeriveStatus()
	return w.Copy(), nil
}

func (r *Registry) SetStatus(id string, status domainworker.Status, now time.Time) (domainworker.Worker, error) {
	switch status {
	case domainworker.StatusAvailable, domainworker.StatusOnBreak, domainworker.StatusOffline:
	default:
		return domainworker.Worker{}, fmt.Errorf("set status %s to %q: %w", id, status, portworker.ErrInvalidStatus)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[id]
	if !ok {
		return domainworker.Worker{}, fmt.Errorf("set status %s: %w", id, portworker.ErrWorkerNotFound)
	}
	w.Status = status
	w.LastActivity = now
	// Returning to service re-derives BUSY for a full worker.
	w.DeriveStatus()
	return w.Copy(), nil
}

func (r *Registry) Totals() (load, capacity int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, w := range r.workers {
		load += w.CurrentLoad
		capacity += w.MaxCapacity
	}
	return load, capacity
}
