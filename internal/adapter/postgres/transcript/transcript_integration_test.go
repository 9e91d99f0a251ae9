//go:build integration

package transcript_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/interview-router/internal/adapter/postgres/transcript"
	domainretrieval "github.com/alanyang/interview-router/internal/domain/retrieval"
	"github.com/alanyang/interview-router/internal/testutil"
)

func seed(t *testing.T, ctx context.Context, r *transcript.Repository) string {
	t.Helper()
	// Unique interview prefix keeps runs against a shared database apart.
	prefix := "INT_" + uuid.New().String()[:6]
	chunks := []domainretrieval.Chunk{
		{Source: prefix + "_1", EntityID: prefix + "_P1", Category: "headphones", Text: "noise cancelling headphones drain battery quickly", StartTurn: 1, EndTurn: 4},
		{Source: prefix + "_2", EntityID: prefix + "_P2", Category: "headphones", Text: "headphones battery lasts a full flight", StartTurn: 2, EndTurn: 5},
		{Source: prefix + "_3", EntityID: prefix + "_P1", Category: "headphones", Text: "battery battery battery headphones", StartTurn: 7, EndTurn: 9},
		{Source: prefix + "_4", EntityID: prefix + "_P3", Category: "air fryer", Text: "the air fryer basket is small", StartTurn: 1, EndTurn: 3},
	}
	n, err := r.Insert(ctx, chunks)
	require.NoError(t, err)
	require.Equal(t, len(chunks), n)
	return prefix
}

func TestRetrieve_RanksAndDedupes(t *testing.T) {
	ctx := context.Background()
	pool := testutil.SetupTestDB(t)
	r := transcript.New(pool, transcript.WithMinScore(0))
	prefix := seed(t, ctx, r)

	res, err := r.Retrieve(ctx, "headphones battery "+prefix)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(res.Targets), domainretrieval.MaxTargets)
	seen := map[string]bool{}
	for _, id := range res.Targets {
		assert.False(t, seen[id], "targets must be distinct")
		seen[id] = true
	}
	for _, h := range res.Hits {
		assert.NotEmpty(t, h.Locator)
	}
}

func TestRetrieve_NoMatchIsEmpty(t *testing.T) {
	ctx := context.Background()
	pool := testutil.SetupTestDB(t)
	r := transcript.New(pool)

	res, err := r.Retrieve(ctx, "zzqxv unmatched lexeme")
	require.NoError(t, err)
	assert.Empty(t, res.Targets)
}

func TestInsert_UpsertsOnConflict(t *testing.T) {
	ctx := context.Background()
	pool := testutil.SetupTestDB(t)
	r := transcript.New(pool)
	seed(t, ctx, r)

	before, err := r.Count(ctx)
	require.NoError(t, err)

	chunk := domainretrieval.Chunk{Source: "INT_dup", EntityID: "P1", Text: "first", StartTurn: 1, EndTurn: 2}
	_, err = r.Insert(ctx, []domainretrieval.Chunk{chunk})
	require.NoError(t, err)
	chunk.Text = "second"
	_, err = r.Insert(ctx, []domainretrieval.Chunk{chunk})
	require.NoError(t, err)

	after, err := r.Count(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, after-before, 1)
}
