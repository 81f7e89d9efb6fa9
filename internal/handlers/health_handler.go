package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"

	"shuttle-ticket/utils"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	redis  redis.Cmdable
	ledger Pinger
}

// NewHealthHandler checks the ledger and, when configured, Redis.
func NewHealthHandler(redisClient redis.Cmdable, ledger Pinger) *HealthHandler {
	return &HealthHandler{redis: redisClient, ledger: ledger}
}

func (h *HealthHandler) Health(e *core.RequestEvent) error {
	ctx, cancel := context.WithTimeout(e.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.ledger.Ping(ctx); err != nil {
		return e.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  "ledger: " + err.Error(),
		})
	}
	if h.redis != nil {
		if err := utils.RedisHealthCheck(ctx, h.redis); err != nil {
			return e.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  "redis: " + err.Error(),
			})
		}
	}
	return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}
