package retrieval

import (
	"context"
	"errors"

	domainretrieval "github.com/alanyang/interview-router/internal/domain/retrieval"
)

// ErrUnavailable marks a failed or timed-out lookup.
var ErrUnavailable = errors.New("retrieval unavailable")

// Retriever maps free text to ranked target entities. Implementations are
// synchronous and side-effect free from the caller's point of view.
type Retriever interface {
	Retrieve(ctx context.Context, text string) (domainretrieval.Result, error)
}
