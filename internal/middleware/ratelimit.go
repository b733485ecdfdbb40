package middleware

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"lectern/internal/models"
	"lectern/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy defines the behavior when no rate limit store is usable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request with 503.
	FailClosed
)

// localWindows is the process-local fixed-window counter used when Redis is
// nil or erroring.
type localWindows struct {
	mu      sync.Mutex
	entries map[string]localWindow
	calls   int
}

type localWindow struct {
	count   int
	expires time.Time
}

var fallbackLimiter = &localWindows{entries: make(map[string]localWindow)}

func (l *localWindows) incr(key string, window time.Duration, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%1024 == 0 {
		for k, e := range l.entries {
			if now.After(e.expires) {
				delete(l.entries, k)
			}
		}
	}

	e, ok := l.entries[key]
	if !ok || now.After(e.expires) {
		e = localWindow{expires: now.Add(window)}
	}
	e.count++
	l.entries[key] = e
	return e.count
}

func (l *localWindows) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]localWindow)
}

func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

// CheckRateLimit checks if a resource has exceeded its rate limit.
// Returns true if allowed, false if limit exceeded.
// Rate limiting is disabled when APP_ENV is "test", "development" or "stress".
// Redis is authoritative; when it is nil or failing the process-local
// counter is used and the Redis error is returned alongside the decision.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if rateLimitBypassed() {
		return true, nil
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	if rdb != nil {
		cnt, err := rdb.Incr(ctx, key).Result()
		if err == nil {
			if cnt == 1 {
				rdb.Expire(ctx, key, window)
			}
			return cnt <= int64(limit), nil
		}
		observability.RedisErrors.WithLabelValues("rate_limit").Inc()
		allowed := fallbackLimiter.incr(key, window, time.Now()) <= limit
		return allowed, fmt.Errorf("redis rate limit: %w", err)
	}

	allowed := fallbackLimiter.incr(key, window, time.Now()) <= limit
	return allowed, errRedisUnavailable
}

var errRedisUnavailable = fmt.Errorf("redis client is nil")

// RateLimit returns a Fiber middleware enforcing `limit` requests per `window`.
// It keys by authenticated userID (if set in c.Locals("userID")) otherwise by remote IP.
// It defaults to FailOpen policy.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy returns a Fiber middleware enforcing `limit` requests
// per `window`. With FailClosed, requests are refused with 503 when Redis is
// unavailable; with FailOpen the process-local counter decides.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var id string
		if uid, ok := c.Locals("userID").(uint); ok {
			id = fmt.Sprintf("user:%d", uid)
		} else {
			id = fmt.Sprintf("ip:%s", c.IP())
		}

		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		allowed, err := CheckRateLimit(c.UserContext(), rdb, resource, id, limit, window)
		if err != nil && policy == FailClosed {
			Logger.WarnContext(c.UserContext(), "rate limit fail-closed",
				"resource", resource, "path", c.Path(), "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.Envelope{
				Error: "rate limit unavailable",
				Code:  models.CodeInternal,
			})
		}

		if !allowed {
			c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", int(window.Seconds())))
			return models.RespondWithError(c, fiber.StatusTooManyRequests, &models.AppError{
				Code:    models.CodeRateLimited,
				Message: "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
