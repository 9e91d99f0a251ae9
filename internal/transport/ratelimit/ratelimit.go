// Package ratelimit throttles query submissions per customer.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PerCustomer keeps one token bucket per customer id. A nil *PerCustomer
// allows everything.
type PerCustomer struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New returns nil when perSecond is not positive, which disables limiting.
func New(perSecond float64, burst int) *PerCustomer {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &PerCustomer{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}
}

// WithClock swaps the time source; tests use it to refill buckets.
func (p *PerCustomer) WithClock(now func() time.Time) *PerCustomer {
	if p != nil {
		p.now = now
	}
	return p
}

// Allow reports whether customerID may submit one more query now.
func (p *PerCustomer) Allow(customerID string) bool {
	if p == nil {
		return true
	}
	p.mu.Lock()
	l, ok := p.limiters[customerID]
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
		p.limiters[customerID] = l
	}
	p.mu.Unlock()
	return l.AllowN(p.now(), 1)
}
