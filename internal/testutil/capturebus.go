package testutil

import (
	"context"
	"sync"

	"github.com/alanyang/interview-router/internal/domain/event"
	porteventbus "github.com/alanyang/interview-router/internal/port/eventbus"
)

var _ porteventbus.EventBus = (*CaptureBus)(nil)

// CaptureBus is an EventBus test double. It records every published event and
// forwards it synchronously to subscribers of the matching channel.
type CaptureBus struct {
	mu     sync.Mutex
	Events []event.Event
	subs   map[event.Channel][]porteventbus.Handler
}

func NewCaptureBus() *CaptureBus {
	return &CaptureBus{subs: make(map[event.Channel][]porteventbus.Handler)}
}

func (b *CaptureBus) Publish(ctx context.Context, e event.Event) error {
	b.mu.Lock()
	b.Events = append(b.Events, e)
	handlers := append([]porteventbus.Handler(nil), b.subs[event.ChannelFor(e.Type)]...)
	b.mu.Unlock()

	for _, h := range handlers {
		h(ctx, e)
	}
	return nil
}

func (b *CaptureBus) Subscribe(_ context.Context, ch event.Channel, handler porteventbus.Handler) (porteventbus.Subscription, error) {
	b.mu.Lock()
	b.subs[ch] = append(b.subs[ch], handler)
	b.mu.Unlock()
	return noopSubscription{}, nil
}

// Types returns the recorded event types in publish order.
func (b *CaptureBus) Types() []event.Type {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]event.Type, len(b.Events))
	for i, e := range b.Events {
		out[i] = e.Type
	}
	return out
}

// Count returns how many events of type t were published.
func (b *CaptureBus) Count(t event.Type) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.Events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}
