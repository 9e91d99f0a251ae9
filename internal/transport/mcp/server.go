package mcp

import (
	"context"
	"log/slog"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/alanyang/interview-router/internal/service/dispatcher"
	"github.com/alanyang/interview-router/internal/transport/ratelimit"
)

// Server wraps the mcp-go MCPServer and its StreamableHTTPServer. Tools live
// in tools.go, prompts in prompts.go, session state in registry.go.
type Server struct {
	httpSrv *mcpserver.StreamableHTTPServer
	reg     *SessionRegistry
}

func New(reg *SessionRegistry, svc *dispatcher.Service, limiter *ratelimit.PerCustomer) *Server {
	s := &Server{reg: reg}

	hooks := &mcpserver.Hooks{}
	hooks.OnUnregisterSession = append(hooks.OnUnregisterSession, s.onSessionClose)

	mcpSrv := mcpserver.NewMCPServer(
		"interview-router",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithPromptCapabilities(true),
		mcpserver.WithHooks(hooks),
	)
	reg.SetMCPServer(mcpSrv)

	RegisterTools(mcpSrv, reg, svc, limiter)
	RegisterPrompts(mcpSrv, svc)

	s.httpSrv = mcpserver.NewStreamableHTTPServer(mcpSrv)
	return s
}

// Handler returns the streamable HTTP endpoint.
func (s *Server) Handler() http.Handler {
	return s.httpSrv
}

func (s *Server) Registry() *SessionRegistry {
	return s.reg
}

func (s *Server) onSessionClose(ctx context.Context, session mcpserver.ClientSession) {
	if n := s.reg.Unregister(session.SessionID()); n > 0 {
		slog.InfoContext(ctx, "mcp: session closed with pending watches", "session_id", session.SessionID(), "watches", n)
	}
}
