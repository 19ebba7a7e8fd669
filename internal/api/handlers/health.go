package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports the state of the process and its dependencies.
type HealthHandler struct {
	database Pinger
	cache    Pinger // nil when running without Redis
	wsCount  func() int
	email    bool
}

func NewHealthHandler(database, cache Pinger, wsCount func() int, emailConfigured bool) *HealthHandler {
	return &HealthHandler{database: database, cache: cache, wsCount: wsCount, email: emailConfigured}
}

// Health returns 503 when the database is unreachable. The cache is optional
// and only degrades the report.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"database":  "connected",
		"cache":     "disabled",
		"email":     "disabled",
	}

	if err := h.database.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["database"] = "unreachable"
	}
	if h.cache != nil {
		body["cache"] = "connected"
		if err := h.cache.Ping(ctx); err != nil {
			body["cache"] = "unreachable"
			if status == http.StatusOK {
				body["status"] = "degraded"
			}
		}
	}
	if h.email {
		body["email"] = "configured"
	}
	if h.wsCount != nil {
		body["ws_clients"] = h.wsCount()
	}

	c.JSON(status, body)
}
