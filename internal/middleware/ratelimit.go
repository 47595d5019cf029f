package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"interviewroom-backend/internal/database"
	"interviewroom-backend/pkg/logger"
	"interviewroom-backend/pkg/response"
)

// RateLimiter limits requests per client IP in fixed windows. Counters live
// in Redis and fall back to process memory while Redis is degraded or absent.
type RateLimiter struct {
	redis    *database.RedisClient
	scope    string
	requests int
	window   time.Duration
	memory   *InMemoryRateLimiter
	now      func() time.Time
}

// NewRateLimiter creates a limiter allowing requests per window for scope.
// redisClient may be nil.
func NewRateLimiter(redisClient *database.RedisClient, scope string, requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:    redisClient,
		scope:    scope,
		requests: requests,
		window:   window,
		memory:   NewInMemoryRateLimiter(),
		now:      time.Now,
	}
}

// Middleware returns a Gin middleware for rate limiting
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := fmt.Sprintf("%s:ip:%s", rl.scope, c.ClientIP())

		allowed, remaining, resetAt := rl.check(c.Request.Context(), identifier)

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if !allowed {
			response.Error(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many interview sessions started, try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) check(ctx context.Context, identifier string) (bool, int, int64) {
	if rl.redis != nil && !rl.redis.IsDegraded() {
		allowed, remaining, resetAt, err := rl.checkRedis(ctx, identifier)
		if err == nil {
			return allowed, remaining, resetAt
		}
		logger.Warn("Redis rate limit check failed, using in-memory counters",
			zap.String("identifier", identifier),
			zap.Error(err))
	}
	return rl.memory.Check(identifier, rl.requests, rl.window, rl.now())
}

func (rl *RateLimiter) checkRedis(ctx context.Context, identifier string) (bool, int, int64, error) {
	key := "ratelimit:" + identifier

	pipe := rl.redis.Client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, 0, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	count := int(incr.Val())
	expiresIn := ttl.Val()
	if count == 1 || expiresIn < 0 {
		if err := rl.redis.Client.PExpire(ctx, key, rl.window).Err(); err != nil {
			return false, 0, 0, fmt.Errorf("failed to set rate limit window: %w", err)
		}
		expiresIn = rl.window
	}

	remaining := rl.requests - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= rl.requests, remaining, rl.now().Add(expiresIn).Unix(), nil
}

// InMemoryRateLimiter provides in-memory fixed-window counters
type InMemoryRateLimiter struct {
	mu     sync.Mutex
	limits map[string]*windowCount
}

type windowCount struct {
	count       int
	windowStart time.Time
}

// NewInMemoryRateLimiter creates a new in-memory rate limiter
func NewInMemoryRateLimiter() *InMemoryRateLimiter {
	return &InMemoryRateLimiter{
		limits: make(map[string]*windowCount),
	}
}

// Check counts one request for identifier at now and reports whether it is
// within the limit, the remaining budget and the window reset as unix seconds
func (im *InMemoryRateLimiter) Check(identifier string, requests int, window time.Duration, now time.Time) (bool, int, int64) {
	im.mu.Lock()
	defer im.mu.Unlock()

	limit, ok := im.limits[identifier]
	if !ok || now.Sub(limit.windowStart) >= window {
		limit = &windowCount{windowStart: now}
		im.limits[identifier] = limit
	}
	limit.count++

	remaining := requests - limit.count
	if remaining < 0 {
		remaining = 0
	}
	return limit.count <= requests, remaining, limit.windowStart.Add(window).Unix()
}
