package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alanyang/interview-router/internal/domain/event"
	porteventbus "github.com/alanyang/interview-router/internal/port/eventbus"
)

var _ porteventbus.EventBus = (*EventBus)(nil)

const defaultSubscriberBuffer = 64

// EventBus delivers events in-process. Each subscriber owns a buffered queue
// drained by its own goroutine; a full queue drops the event rather than
// stalling the publisher.
type EventBus struct {
	buffer int

	mu   sync.RWMutex
	subs map[event.Channel]map[*subscription]struct{}
}

func NewEventBus(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &EventBus{
		buffer: buffer,
		subs:   make(map[event.Channel]map[*subscription]struct{}),
	}
}

func (eb *EventBus) Publish(_ context.Context, e event.Event) error {
	ch := event.ChannelFor(e.Type)

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for sub := range eb.subs[ch] {
		select {
		case sub.queue <- e:
		default:
			slog.Warn("event dropped for slow subscriber", "channel", ch, "type", e.Type, "entity_id", e.EntityID)
		}
	}
	return nil
}

func (eb *EventBus) Subscribe(ctx context.Context, ch event.Channel, handler porteventbus.Handler) (porteventbus.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		queue:  make(chan event.Event, eb.buffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	eb.mu.Lock()
	if eb.subs[ch] == nil {
		eb.subs[ch] = make(map[*subscription]struct{})
	}
	eb.subs[ch][sub] = struct{}{}
	eb.mu.Unlock()

	go func() {
		defer func() {
			eb.mu.Lock()
			delete(eb.subs[ch], sub)
			eb.mu.Unlock()
			close(sub.done)
		}()

		for {
			select {
			case <-subCtx.Done():
				return
			case e := <-sub.queue:
				handler(subCtx, e)
			}
		}
	}()

	return sub, nil
}

type subscription struct {
	queue  chan event.Event
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *subscription) Unsubscribe() {
	s.cancel()
	<-s.done
}
