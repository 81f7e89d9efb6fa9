package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"

	"shuttle-ticket/internal/logger"
	"shuttle-ticket/monitoring"
)

const scanWindow = time.Minute

type RateLimiter struct {
	redis   redis.Cmdable
	limit   int64
	monitor *monitoring.Monitor
	log     logger.Logger
}

// NewRateLimiter limits boarding scans to limit per caller per minute. A
// non-positive limit or a nil client disables limiting.
func NewRateLimiter(redisClient redis.Cmdable, limit int, monitor *monitoring.Monitor, log logger.Logger) *RateLimiter {
	return &RateLimiter{redis: redisClient, limit: int64(limit), monitor: monitor, log: log}
}

func scanKey(identity string) string {
	return fmt.Sprintf("ratelimit:scan:%s", identity)
}

// Allow counts one request for identity and reports whether it is within the
// limit. Redis failures let the request through.
func (r *RateLimiter) Allow(ctx context.Context, identity string) bool {
	if r.redis == nil || r.limit <= 0 {
		return true
	}

	key := scanKey(identity)
	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		r.log.Warn("rate limiter unavailable, allowing request", "key", key, "error", err)
		return true
	}
	if count == 1 {
		if err := r.redis.Expire(ctx, key, scanWindow).Err(); err != nil {
			r.log.Warn("failed to set rate limit window", "key", key, "error", err)
		}
	}
	return count <= r.limit
}

// ScanRateLimit guards the boarding scan route, keyed by operator when
// authenticated and by client IP otherwise.
func (r *RateLimiter) ScanRateLimit(e *core.RequestEvent) error {
	var identity string
	if e.Auth != nil {
		identity = "user:" + e.Auth.Id
	} else {
		identity = "ip:" + e.RealIP()
	}

	if !r.Allow(e.Request.Context(), identity) {
		r.monitor.TrackRateLimited()
		return apis.NewTooManyRequestsError("Too many scans. Please try again later.", nil)
	}
	return e.Next()
}

// AntiBot rejects requests from well-known crawler user agents.
func AntiBot(e *core.RequestEvent) error {
	if isSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
		return apis.NewForbiddenError("Access denied", nil)
	}
	return e.Next()
}

func isSuspiciousUserAgent(ua string) bool {
	ua = strings.ToLower(ua)
	for _, pattern := range []string{"bot", "crawler", "spider", "scraper"} {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
