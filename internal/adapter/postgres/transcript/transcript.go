package transcript

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainretrieval "github.com/alanyang/interview-router/internal/domain/retrieval"
	portretrieval "github.com/alanyang/interview-router/internal/port/retrieval"
)

var _ portretrieval.Retriever = (*Repository)(nil)

const (
	DefaultTopK     = 10
	DefaultMinScore = 0.01
)

// Repository stores transcript chunks and ranks them with Postgres full-text
// search. It implements port/retrieval.Retriever.
type Repository struct {
	pool     *pgxpool.Pool
	topK     int
	minScore float64
}

type Option func(*Repository)

func WithTopK(k int) Option {
	return func(r *Repository) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithMinScore drops hits ranked below score.
func WithMinScore(score float64) Option {
	return func(r *Repository) { r.minScore = score }
}

func New(pool *pgxpool.Pool, opts ...Option) *Repository {
	r := &Repository{pool: pool, topK: DefaultTopK, minScore: DefaultMinScore}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Insert upserts chunks in one batch. Chunks are keyed by interview and turn
// range.
func (r *Repository) Insert(ctx context.Context, chunks []domainretrieval.Chunk) (int, error) {
	query := `
		INSERT INTO transcript_chunks (interview_id, interviewee_id, product_name, text, start_turn, end_turn)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (interview_id, start_turn, end_turn)
		DO UPDATE SET interviewee_id = EXCLUDED.interviewee_id,
			product_name = EXCLUDED.product_name,
			text = EXCLUDED.text`

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(query, c.Source, c.EntityID, c.Category, c.Text, c.StartTurn, c.EndTurn)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range chunks {
		if _, err := results.Exec(); err != nil {
			return i, fmt.Errorf("inserting chunk %s[%d-%d]: %w",
				chunks[i].Source, chunks[i].StartTurn, chunks[i].EndTurn, err)
		}
	}
	return len(chunks), nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM transcript_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Retrieve ranks chunks against text and keeps the first three distinct
// interviewees. A query with no lexemes yields an empty result.
func (r *Repository) Retrieve(ctx context.Context, text string) (domainretrieval.Result, error) {
	query := `
		SELECT interview_id, interviewee_id, product_name, text, start_turn, end_turn,
			ts_rank(search_vector, q) AS score
		FROM transcript_chunks, plainto_tsquery('english', $1) q
		WHERE search_vector @@ q
		ORDER BY score DESC, id ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, text, r.topK)
	if err != nil {
		return domainretrieval.Result{}, fmt.Errorf("searching transcripts: %w: %w", portretrieval.ErrUnavailable, err)
	}
	defer rows.Close()

	var hits []domainretrieval.Hit
	for rows.Next() {
		var (
			c     domainretrieval.Chunk
			score float32
		)
		if err := rows.Scan(&c.Source, &c.EntityID, &c.Category, &c.Text, &c.StartTurn, &c.EndTurn, &score); err != nil {
			return domainretrieval.Result{}, fmt.Errorf("scanning transcript hit: %w", err)
		}
		if float64(score) < r.minScore {
			continue
		}
		hits = append(hits, c.Hit(float64(score)))
	}
	if err := rows.Err(); err != nil {
		return domainretrieval.Result{}, fmt.Errorf("iterating transcript hits: %w: %w", portretrieval.ErrUnavailable, err)
	}

	return domainretrieval.Result{
		Targets: domainretrieval.TargetsFrom(hits, domainretrieval.MaxTargets),
		Hits:    hits,
	}, nil
}
