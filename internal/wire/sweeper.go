package wire

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/alanyang/interview-router/internal/adapter/memory"
)

// sweepFunc removes expired entries and reports how many went.
type sweepFunc func(ctx context.Context) (int64, error)

// runSweeper calls sweep every interval until ctx is cancelled. Redis expires
// its own keys and needs none.
func runSweeper(ctx context.Context, name string, interval time.Duration, sweep sweepFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweep(ctx)
			if err != nil {
				slog.Warn("sweep failed", "store", name, "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("sweep", "store", name, "evicted", n)
			}
		}
	}
}

func memorySweep(c *memory.Cache) sweepFunc {
	return func(context.Context) (int64, error) { return int64(c.Sweep()), nil }
}

// envDuration reads an integer-seconds env var and returns a Duration.
// Falls back to defaultVal if the var is unset or invalid.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

// seeder hands each component its own random stream. A zero seed draws from
// the runtime source so runs differ.
type seeder struct {
	seed uint64
	n    uint64
}

func newSeeder(seed uint64) *seeder {
	return &seeder{seed: seed}
}

func (s *seeder) next() *rand.Rand {
	s.n++
	if s.seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(s.seed, s.n))
}
