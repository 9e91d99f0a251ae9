package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	portcache "github.com/alanyang/interview-router/internal/port/cache"
)

var _ portcache.Cache = (*Repository)(nil)

// Repository keeps recorded HTTP responses in processed_requests so a retried
// submission is answered with the original result across restarts.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

// Get returns the stored response, or ErrNotFound when the key is unknown or
// has expired.
func (r *Repository) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT response FROM processed_requests WHERE idempotency_key = $1 AND expires_at > $2`

	var result []byte
	err := r.pool.QueryRow(ctx, query, key, r.now()).Scan(&result)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, portcache.ErrNotFound
		}
		return nil, fmt.Errorf("checking idempotency key: %w", err)
	}
	return result, nil
}

// Set records a response. An unexpired entry for the same key wins.
func (r *Repository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	query := `
		INSERT INTO processed_requests (idempotency_key, response, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (idempotency_key) DO UPDATE
			SET response = EXCLUDED.response, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at
			WHERE processed_requests.expires_at <= EXCLUDED.created_at`

	now := r.now()
	if _, err := r.pool.Exec(ctx, query, key, value, now.Add(ttl), now); err != nil {
		return fmt.Errorf("storing idempotency key: %w", err)
	}
	return nil
}

func (r *Repository) Invalidate(ctx context.Context, key string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM processed_requests WHERE idempotency_key = $1`, key); err != nil {
		return fmt.Errorf("deleting idempotency key: %w", err)
	}
	return nil
}

// Purge deletes expired rows and reports how many were removed.
func (r *Repository) Purge(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM processed_requests WHERE expires_at <= $1`, r.now())
	if err != nil {
		return 0, fmt.Errorf("purging idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
