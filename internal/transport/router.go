package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alanyang/interview-router/internal/port/cache"
	porteventbus "github.com/alanyang/interview-router/internal/port/eventbus"
	portworker "github.com/alanyang/interview-router/internal/port/worker"
	"github.com/alanyang/interview-router/internal/service/dispatcher"

	assignmenthandler "github.com/alanyang/interview-router/internal/transport/assignment"
	mcptransport "github.com/alanyang/interview-router/internal/transport/mcp"
	queryhandler "github.com/alanyang/interview-router/internal/transport/query"
	"github.com/alanyang/interview-router/internal/transport/ratelimit"
	systemhandler "github.com/alanyang/interview-router/internal/transport/system"
	wshandler "github.com/alanyang/interview-router/internal/transport/ws"
)

// IdempotencyTTL is how long a replayable POST response is kept.
const IdempotencyTTL = 24 * time.Hour

func NewRouter(
	ctx context.Context,
	svc *dispatcher.Service,
	registry portworker.Registry,
	limiter *ratelimit.PerCustomer,
	idempotency cache.Cache,
	mcpServer *mcptransport.Server,
	eventBus porteventbus.EventBus,
) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(CORSMiddleware())
	r.Use(IdempotencyMiddleware(idempotency, IdempotencyTTL))

	api := r.Group("/api")

	queryhandler.Register(api.Group("/queries"), svc, limiter)
	assignmenthandler.Register(api.Group("/assignments"), svc)
	systemhandler.Register(api, svc, registry)

	hub := wshandler.NewHub()
	hub.Register(api.Group("/ws"))
	if err := hub.Bridge(ctx, eventBus); err != nil {
		return nil, fmt.Errorf("bridge events to ws: %w", err)
	}

	if mcpServer != nil {
		if err := mcpServer.Registry().Bridge(ctx, eventBus); err != nil {
			return nil, fmt.Errorf("bridge events to mcp: %w", err)
		}
		r.Any("/mcp", gin.WrapH(mcpServer.Handler()))
	}

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	return r, nil
}
