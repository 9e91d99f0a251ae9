// Package keyword ranks transcript chunks in process by token overlap. It
// backs the router when no database is configured.
package keyword

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	domainretrieval "github.com/alanyang/interview-router/internal/domain/retrieval"
	portretrieval "github.com/alanyang/interview-router/internal/port/retrieval"
)

var _ portretrieval.Retriever = (*Index)(nil)

const (
	DefaultTopK     = 10
	DefaultMinScore = 0.1
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "for": {}, "how": {}, "i": {},
	"in": {}, "is": {}, "it": {}, "of": {}, "on": {}, "or": {}, "the": {},
	"to": {}, "what": {}, "with": {},
}

type entry struct {
	chunk  domainretrieval.Chunk
	tokens map[string]struct{}
}

// Index is immutable after construction and safe for concurrent reads.
type Index struct {
	entries  []entry
	topK     int
	minScore float64
}

type Option func(*Index)

func WithTopK(k int) Option {
	return func(ix *Index) {
		if k > 0 {
			ix.topK = k
		}
	}
}

func WithMinScore(score float64) Option {
	return func(ix *Index) { ix.minScore = score }
}

func New(chunks []domainretrieval.Chunk, opts ...Option) *Index {
	ix := &Index{topK: DefaultTopK, minScore: DefaultMinScore}
	for _, o := range opts {
		o(ix)
	}
	ix.entries = make([]entry, 0, len(chunks))
	for _, c := range chunks {
		ix.entries = append(ix.entries, entry{
			chunk:  c,
			tokens: tokenize(c.Category + " " + c.Text),
		})
	}
	return ix
}

func (ix *Index) Len() int { return len(ix.entries) }

// Retrieve scores each chunk by the cosine of the two token sets.
func (ix *Index) Retrieve(ctx context.Context, text string) (domainretrieval.Result, error) {
	if err := ctx.Err(); err != nil {
		return domainretrieval.Result{}, err
	}

	q := tokenize(text)
	if len(q) == 0 {
		return domainretrieval.Result{Targets: []string{}}, nil
	}

	type scored struct {
		idx   int
		score float64
	}
	var ranked []scored
	for i, e := range ix.entries {
		if len(e.tokens) == 0 {
			continue
		}
		overlap := 0
		for tok := range q {
			if _, ok := e.tokens[tok]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		score := float64(overlap) / math.Sqrt(float64(len(q)*len(e.tokens)))
		if score < ix.minScore {
			continue
		}
		ranked = append(ranked, scored{idx: i, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > ix.topK {
		ranked = ranked[:ix.topK]
	}

	hits := make([]domainretrieval.Hit, 0, len(ranked))
	for _, r := range ranked {
		hits = append(hits, ix.entries[r.idx].chunk.Hit(r.score))
	}
	return domainretrieval.Result{
		Targets: domainretrieval.TargetsFrom(hits, domainretrieval.MaxTargets),
		Hits:    hits,
	}, nil
}

func tokenize(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}
