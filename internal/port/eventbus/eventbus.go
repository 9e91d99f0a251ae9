package eventbus

import (
	"context"

	"github.com/alanyang/interview-router/internal/domain/event"
)

type Handler func(ctx context.Context, e event.Event)

type Subscription interface {
	Unsubscribe()
}

// EventBus fans domain events out to subscribers of a channel.
// Publish must not block on slow subscribers.
type EventBus interface {
	Publish(ctx context.Context, e event.Event) error
	Subscribe(ctx context.Context, ch event.Channel, handler Handler) (Subscription, error)
}
