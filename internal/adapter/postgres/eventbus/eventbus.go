package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyang/interview-router/internal/domain/event"
	porteventbus "github.com/alanyang/interview-router/internal/port/eventbus"
)

var _ porteventbus.EventBus = (*EventBus)(nil)

const (
	// maxPayload is the NOTIFY payload limit in the default configuration.
	maxPayload    = 8000
	truncatedAttr = "truncated"
)

var (
	ErrUnroutable      = errors.New("event type has no channel")
	ErrPayloadTooLarge = errors.New("event payload exceeds NOTIFY limit")
)

// EventBus fans events out across router replicas with LISTEN/NOTIFY. Each
// subscription pins one pooled connection for its lifetime.
type EventBus struct {
	pool *pgxpool.Pool

	mu   sync.Mutex
	subs map[event.Channel]map[*subscription]struct{}
}

func New(pool *pgxpool.Pool) *EventBus {
	return &EventBus{
		pool: pool,
		subs: make(map[event.Channel]map[*subscription]struct{}),
	}
}

func (eb *EventBus) Publish(ctx context.Context, e event.Event) error {
	ch := event.ChannelFor(e.Type)
	if ch == "" {
		return fmt.Errorf("publishing event %q: %w", e.Type, ErrUnroutable)
	}
	payload, err := encode(e)
	if err != nil {
		return err
	}

	channel := channelName(ch)
	if _, err := eb.pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, string(payload)); err != nil {
		return fmt.Errorf("publishing event on channel %s: %w", channel, err)
	}
	return nil
}

// encode marshals e for NOTIFY. Postgres rejects payloads of maxPayload bytes
// or more, so an oversized event is sent without its attributes and marked
// truncated; subscribers re-read state through the dispatcher anyway.
func encode(e event.Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshaling event: %w", err)
	}
	if len(payload) < maxPayload {
		return payload, nil
	}

	slog.Warn("event payload too large, dropping attributes", "type", e.Type, "entity_id", e.EntityID, "bytes", len(payload))
	e.Attrs = map[string]string{truncatedAttr: "true"}
	payload, err = json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshaling event: %w", err)
	}
	if len(payload) >= maxPayload {
		return nil, fmt.Errorf("event %s for %s: %w", e.Type, e.EntityID, ErrPayloadTooLarge)
	}
	return payload, nil
}

// decode parses a notification and reports whether it belongs on ch. Other
// writers can NOTIFY on the same channel; events of unknown types or types
// routed elsewhere are discarded.
func decode(ch event.Channel, payload string) (event.Event, bool) {
	var e event.Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		slog.Warn("discarding malformed event payload", "channel", ch, "error", err)
		return event.Event{}, false
	}
	if event.ChannelFor(e.Type) != ch {
		slog.Warn("discarding event on foreign channel", "channel", ch, "type", e.Type)
		return event.Event{}, false
	}
	return e, true
}

func (eb *EventBus) Subscribe(ctx context.Context, ch event.Channel, handler porteventbus.Handler) (porteventbus.Subscription, error) {
	conn, err := eb.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection for LISTEN: %w", err)
	}

	channel := channelName(ch)
	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("executing LISTEN on channel %s: %w", channel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel, done: make(chan struct{})}

	eb.mu.Lock()
	if eb.subs[ch] == nil {
		eb.subs[ch] = make(map[*subscription]struct{})
	}
	eb.subs[ch][sub] = struct{}{}
	eb.mu.Unlock()

	go func() {
		defer func() {
			if _, err := conn.Exec(context.Background(), "UNLISTEN "+channel); err != nil {
				slog.Warn("unlisten failed", "channel", channel, "error", err)
			}
			conn.Release()

			eb.mu.Lock()
			delete(eb.subs[ch], sub)
			eb.mu.Unlock()
			close(sub.done)
		}()

		for {
			notification, err := conn.Conn().WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() != nil {
					return
				}
				slog.Warn("waiting for notification", "channel", channel, "error", err)
				continue
			}

			e, ok := decode(ch, notification.Payload)
			if !ok {
				continue
			}
			handler(subCtx, e)
		}
	}()

	return sub, nil
}

// Subscribers reports the live subscription count for a channel.
func (eb *EventBus) Subscribers(ch event.Channel) int {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return len(eb.subs[ch])
}

// channelName converts a domain Channel to a safe Postgres channel identifier.
func channelName(ch event.Channel) string {
	return "interview_router_" + string(ch)
}

type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *subscription) Unsubscribe() {
	s.cancel()
	<-s.done
}
