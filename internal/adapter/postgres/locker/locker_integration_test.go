//go:build integration

package locker_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/interview-router/internal/adapter/postgres/locker"
	"github.com/alanyang/interview-router/internal/testutil"
)

func TestWithLock_SerialisesHolders(t *testing.T) {
	l := locker.New(testutil.SetupTestDB(t))
	ctx := context.Background()

	var (
		inside  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(ctx, "locker-test", func(context.Context) error {
				if inside.Add(1) > 1 {
					overlap.Store(true)
				}
				defer inside.Add(-1)
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.False(t, overlap.Load())
}
