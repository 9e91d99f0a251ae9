package cached_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/alanyang/interview-router/internal/adapter/memory"
	"github.com/alanyang/interview-router/internal/adapter/retrieval/cached"
	domainretrieval "github.com/alanyang/interview-router/internal/domain/retrieval"
	"github.com/alanyang/interview-router/internal/mocks"
	portretrieval "github.com/alanyang/interview-router/internal/port/retrieval"
)

func TestRetrieve_SecondCallHitsCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockRetriever(ctrl)

	want := domainretrieval.Result{Targets: []string{"P1", "P2"}}
	inner.EXPECT().Retrieve(gomock.Any(), "Best Headphones").Return(want, nil).Times(1)

	r := cached.New(inner, memory.NewCache(), time.Minute)

	got, err := r.Retrieve(context.Background(), "Best Headphones")
	require.NoError(t, err)
	assert.Equal(t, want.Targets, got.Targets)

	got, err = r.Retrieve(context.Background(), "  best   headphones ")
	require.NoError(t, err)
	assert.Equal(t, want.Targets, got.Targets)
}

func TestRetrieve_ErrorsAreNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockRetriever(ctrl)

	gomock.InOrder(
		inner.EXPECT().Retrieve(gomock.Any(), "q").Return(domainretrieval.Result{}, portretrieval.ErrUnavailable),
		inner.EXPECT().Retrieve(gomock.Any(), "q").Return(domainretrieval.Result{Targets: []string{}}, nil),
	)

	r := cached.New(inner, memory.NewCache(), time.Minute)

	_, err := r.Retrieve(context.Background(), "q")
	require.ErrorIs(t, err, portretrieval.ErrUnavailable)

	res, err := r.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, res.Targets)
}

func TestRetrieve_CacheFaultFallsThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockRetriever(ctrl)
	cache := mocks.NewMockCache(ctrl)

	boom := errors.New("connection refused")
	cache.EXPECT().Get(gomock.Any(), cached.Key("q")).Return(nil, boom)
	inner.EXPECT().Retrieve(gomock.Any(), "q").Return(domainretrieval.Result{Targets: []string{"P1"}}, nil)
	cache.EXPECT().Set(gomock.Any(), cached.Key("q"), gomock.Any(), time.Minute).Return(boom)

	res, err := cached.New(inner, cache, time.Minute).Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"P1"}, res.Targets)
}

func TestKey_Normalizes(t *testing.T) {
	assert.Equal(t, cached.Key("Air Fryer"), cached.Key(" air   FRYER "))
	assert.NotEqual(t, cached.Key("air fryer"), cached.Key("airfryer"))
}
