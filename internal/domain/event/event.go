package event

import (
	"time"
)

type Type string

const (
	TypeQuerySubmitted      Type = "query_submitted"
	TypeQueryEscalated      Type = "query_escalated"
	TypeQueryDropped        Type = "query_dropped"
	TypeQueryUnassignable   Type = "query_unassignable"
	TypeAssignmentCreated   Type = "assignment_created"
	TypeAssignmentCompleted Type = "assignment_completed"
	TypeWorkerStatus        Type = "worker_status_changed"
	TypeMetricsUpdated      Type = "metrics_updated"
)

// Channel groups event types by domain. Each channel maps to one Postgres
// NOTIFY channel when the Postgres bus is in use.
type Channel string

const (
	ChannelQuery      Channel = "query"
	ChannelAssignment Channel = "assignment"
	ChannelWorker     Channel = "worker"
)

// Channels lists every channel, for subscribers that want the full stream.
var Channels = []Channel{ChannelQuery, ChannelAssignment, ChannelWorker}

var typeToChannel = map[Type]Channel{
	TypeQuerySubmitted:      ChannelQuery,
	TypeQueryEscalated:      ChannelQuery,
	TypeQueryDropped:        ChannelQuery,
	TypeQueryUnassignable:   ChannelQuery,
	TypeAssignmentCreated:   ChannelAssignment,
	TypeAssignmentCompleted: ChannelAssignment,
	TypeWorkerStatus:        ChannelWorker,
	TypeMetricsUpdated:      ChannelWorker,
}

// ChannelFor returns the domain channel for a given event type.
func ChannelFor(t Type) Channel { return typeToChannel[t] }

// Event carries identifiers and a small attribute map, not full state.
// Subscribers read fresh state through the dispatcher.
type Event struct {
	Type      Type              `json:"type"`
	EntityID  string            `json:"entity_id"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func New(eventType Type, entityID string) Event {
	return Event{
		Type:      eventType,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

// With returns a copy of e carrying an extra attribute.
func (e Event) With(key, value string) Event {
	attrs := make(map[string]string, len(e.Attrs)+1)
	for k, v := range e.Attrs {
		attrs[k] = v
	}
	attrs[key] = value
	e.Attrs = attrs
	return e
}
