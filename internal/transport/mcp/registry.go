package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/alanyang/interview-router/internal/domain/event"
	porteventbus "github.com/alanyang/interview-router/internal/port/eventbus"
)

// SessionRegistry remembers which MCP session submitted which query so the
// outcome can be pushed back to that session as a notification.
type SessionRegistry struct {
	mu        sync.RWMutex
	byQuery   map[string]string              // queryID → sessionID
	bySession map[string]map[string]struct{} // sessionID → queryIDs

	// mcpSrv is set after the MCP server is constructed.
	mcpMu  sync.RWMutex
	mcpSrv *mcpserver.MCPServer
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byQuery:   make(map[string]string),
		bySession: make(map[string]map[string]struct{}),
	}
}

func (r *SessionRegistry) SetMCPServer(s *mcpserver.MCPServer) {
	r.mcpMu.Lock()
	r.mcpSrv = s
	r.mcpMu.Unlock()
}

// Watch ties a query's outcome to a session.
func (r *SessionRegistry) Watch(sessionID, queryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byQuery[queryID] = sessionID
	if r.bySession[sessionID] == nil {
		r.bySession[sessionID] = make(map[string]struct{})
	}
	r.bySession[sessionID][queryID] = struct{}{}
}

// Unregister drops a closed session and returns how many watches it held.
func (r *SessionRegistry) Unregister(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	queries := r.bySession[sessionID]
	for q := range queries {
		delete(r.byQuery, q)
	}
	delete(r.bySession, sessionID)
	return len(queries)
}

// SessionFor returns the session watching queryID.
func (r *SessionRegistry) SessionFor(queryID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byQuery[queryID]
	return s, ok
}

func (r *SessionRegistry) forget(queryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionID, ok := r.byQuery[queryID]
	if !ok {
		return
	}
	delete(r.byQuery, queryID)
	if qs := r.bySession[sessionID]; qs != nil {
		delete(qs, queryID)
		if len(qs) == 0 {
			delete(r.bySession, sessionID)
		}
	}
}

// NotifyQuery pushes e to the session watching queryID. Unwatched queries are
// a no-op.
func (r *SessionRegistry) NotifyQuery(_ context.Context, queryID string, e event.Event) error {
	sessionID, ok := r.SessionFor(queryID)
	if !ok {
		return nil
	}

	r.mcpMu.RLock()
	srv := r.mcpSrv
	r.mcpMu.RUnlock()
	if srv == nil {
		return fmt.Errorf("mcp server not initialized")
	}

	params, err := toParams(e)
	if err != nil {
		return fmt.Errorf("serialize notification: %w", err)
	}
	return srv.SendNotificationToSpecificClient(sessionID, "notifications/message", params)
}

// Bridge forwards terminal query outcomes to watching sessions until ctx ends.
func (r *SessionRegistry) Bridge(ctx context.Context, bus porteventbus.EventBus) error {
	handler := func(ctx context.Context, e event.Event) {
		queryID, done := outcomeQuery(e)
		if queryID == "" {
			return
		}
		if err := r.NotifyQuery(ctx, queryID, e); err != nil {
			slog.WarnContext(ctx, "mcp: notify session failed", "query_id", queryID, "error", err)
		}
		if done {
			r.forget(queryID)
		}
	}
	for _, ch := range []event.Channel{event.ChannelQuery, event.ChannelAssignment} {
		if _, err := bus.Subscribe(ctx, ch, handler); err != nil {
			return fmt.Errorf("subscribe %s to mcp sessions: %w", ch, err)
		}
	}
	return nil
}

// outcomeQuery extracts the query an event is about and whether the event
// settles it.
func outcomeQuery(e event.Event) (queryID string, done bool) {
	switch e.Type {
	case event.TypeAssignmentCreated:
		return e.Attrs["query_id"], true
	case event.TypeQueryDropped, event.TypeQueryUnassignable:
		return e.EntityID, true
	case event.TypeQueryEscalated:
		return e.EntityID, false
	}
	return "", false
}

func toParams(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return map[string]any{"data": v}, nil
	}
	return params, nil
}
