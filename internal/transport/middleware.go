package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alanyang/interview-router/internal/port/cache"
)

// noisyPaths are high-frequency read paths logged at Debug to keep Info clean.
var noisyPaths = map[string]bool{
	"/api/status":  true,
	"/api/workers": true,
	"/api/ws":      true,
	"/healthz":     true,
}

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.Request.Method == "OPTIONS" {
			return
		}

		level := slog.LevelInfo
		if c.Request.Method == "GET" && noisyPaths[c.Request.URL.Path] {
			level = slog.LevelDebug
		}
		slog.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Mcp-Session-Id")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// IdempotencyHeader lets a client retry a POST without submitting twice.
const IdempotencyHeader = "Idempotency-Key"

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response of a successful POST that
// carried the same Idempotency-Key. Cache faults fall through to the handler.
func IdempotencyMiddleware(store cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if c.Request.Method != http.MethodPost || key == "" || store == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		cacheKey := "idempotency:" + c.Request.URL.Path + ":" + key

		if data, err := store.Get(ctx, cacheKey); err == nil {
			var resp storedResponse
			if err := json.Unmarshal(data, &resp); err == nil {
				c.Header("Idempotent-Replayed", "true")
				c.Data(resp.Status, resp.ContentType, resp.Body)
				c.Abort()
				return
			}
		} else if !errors.Is(err, cache.ErrNotFound) {
			slog.WarnContext(ctx, "idempotency lookup failed", "error", err)
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		status := w.Status()
		if status < 200 || status >= 300 {
			return
		}
		data, err := json.Marshal(storedResponse{
			Status:      status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		})
		if err != nil {
			return
		}
		if err := store.Set(ctx, cacheKey, data, ttl); err != nil {
			slog.WarnContext(ctx, "idempotency store failed", "error", err)
		}
	}
}
