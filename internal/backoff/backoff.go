// Package backoff paces retries of queries that found no eligible worker.
// Strategies are stateless and safe for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the wait before retry attempt n (1-indexed).
type Strategy interface {
	Delay(attempt int) time.Duration
}

// ── Constant ──────────────────────────────────────────────────────────────────

type Constant struct {
	Interval time.Duration
}

func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ── Exponential ───────────────────────────────────────────────────────────────

// Exponential doubles the delay each attempt: min(Initial * 2^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

func (e *Exponential) Delay(attempt int) time.Duration {
	return capped(e.Initial, e.Max, attempt)
}

// ── ExponentialWithJitter ─────────────────────────────────────────────────────

// ExponentialWithJitter draws uniformly from [0, Exponential.Delay(attempt)].
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	return time.Duration(rand.Float64() * float64(capped(e.Initial, e.Max, attempt))) //nolint:gosec // jitter needs no crypto rand
}

// ── Default ───────────────────────────────────────────────────────────────────

const (
	DefaultInitial = 250 * time.Millisecond
	DefaultMax     = 5 * time.Second
)

func DefaultStrategy() Strategy {
	return NewExponential(DefaultInitial, DefaultMax)
}

func capped(initial, maxDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(initial) * math.Pow(2, float64(attempt-1))
	if maxDelay > 0 && d > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(d)
}
