// Package cached memoizes retrieval results in a port/cache.Cache, keyed by
// normalized query text.
package cached

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainretrieval "github.com/alanyang/interview-router/internal/domain/retrieval"
	portcache "github.com/alanyang/interview-router/internal/port/cache"
	portretrieval "github.com/alanyang/interview-router/internal/port/retrieval"
)

var _ portretrieval.Retriever = (*Retriever)(nil)

const keyPrefix = "retrieval:"

type Retriever struct {
	next  portretrieval.Retriever
	cache portcache.Cache
	ttl   time.Duration
}

func New(next portretrieval.Retriever, cache portcache.Cache, ttl time.Duration) *Retriever {
	return &Retriever{next: next, cache: cache, ttl: ttl}
}

// Retrieve serves from cache when possible. Cache faults are logged and
// bypassed; only successful lookups are stored.
func (r *Retriever) Retrieve(ctx context.Context, text string) (domainretrieval.Result, error) {
	key := Key(text)

	data, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		var res domainretrieval.Result
		if uerr := json.Unmarshal(data, &res); uerr == nil {
			return res, nil
		}
		slog.WarnContext(ctx, "discarding corrupt cached retrieval", "key", key)
	case !errors.Is(err, portcache.ErrNotFound):
		slog.WarnContext(ctx, "retrieval cache read failed", "key", key, "error", err)
	}

	res, err := r.next.Retrieve(ctx, text)
	if err != nil {
		return domainretrieval.Result{}, err
	}

	if data, err := json.Marshal(res); err == nil {
		if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
			slog.WarnContext(ctx, "retrieval cache write failed", "key", key, "error", err)
		}
	}
	return res, nil
}

// Key folds case and whitespace so trivially different phrasings share an
// entry.
func Key(text string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(norm))
	return keyPrefix + hex.EncodeToString(sum[:16])
}
