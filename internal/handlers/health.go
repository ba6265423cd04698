package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	ws "github.com/thereayou/artem-chat/internal/websocket"
)

const healthTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db       Pinger
	registry *ws.Registry
}

func NewHealthHandler(db Pinger, registry *ws.Registry) *HealthHandler {
	return &HealthHandler{db: db, registry: registry}
}

// Health отвечает 503, если хранилище недоступно.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "storage unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": h.registry.Count()})
}
