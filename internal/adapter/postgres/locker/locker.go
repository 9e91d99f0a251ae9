package locker

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CorpusLock guards seeding of the transcripts table when several router
// replicas start against the same database.
const CorpusLock = "interview-router:corpus"

// Locker serialises work across processes with Postgres session advisory
// locks. Lock and unlock run on one acquired connection because
// pg_advisory_unlock on another session is a no-op.
type Locker struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Locker {
	return &Locker{pool: pool}
}

// Key maps a lock name onto the bigint keyspace of pg_advisory_lock.
func Key(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64())
}

// WithLock runs fn while holding the advisory lock for name.
func (l *Locker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection for lock %s: %w", name, err)
	}
	defer conn.Release()

	key := Key(name)
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", key); err != nil {
		return fmt.Errorf("acquire lock %s: %w", name, err)
	}
	// Background ctx so the unlock still fires after ctx is cancelled.
	defer conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", key) //nolint:errcheck

	return fn(ctx)
}
