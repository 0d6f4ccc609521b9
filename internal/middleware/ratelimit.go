// ratelimit.go enforces per-client request limits in front of the gate chain,
// returning 429 once a client exhausts its allowance. Two backends exist: an
// in-process token bucket (one instance) and Redis via redis_rate (shared
// across replicas).
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/client-portal/portal/internal/safego"
	"github.com/client-portal/portal/internal/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// Backend names accepted by security.rate_limiting.backend.
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained allowance per client
	RequestsPerMinute int
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
	// CleanupInterval is how often idle in-memory entries are dropped
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 120,
		BurstSize:         30,
		CleanupInterval:   5 * time.Minute,
	}
}

// RateLimitDecision is the outcome of one Allow call.
type RateLimitDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a request from key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (RateLimitDecision, error)
	Backend() string
}

// rateLimitEntry tracks the bucket for a single client
type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter is the in-memory token bucket limiter
type RateLimiter struct {
	config  RateLimitConfig
	entries map[string]*rateLimitEntry
	mu      sync.Mutex
	now     func() time.Time
	stopCh  chan struct{}
	stop    sync.Once
}

// NewRateLimiter creates an in-memory limiter and starts its cleanup goroutine.
// Call Stop on shutdown.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	return newRateLimiter(config, time.Now)
}

func newRateLimiter(config RateLimitConfig, now func() time.Time) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		config:  config,
		entries: make(map[string]*rateLimitEntry),
		now:     now,
		stopCh:  make(chan struct{}),
	}
	safego.Go("rate-limiter-cleanup", rl.cleanup)
	return rl
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle(10 * time.Minute)
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) evictIdle(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, entry := range rl.entries {
		if now.Sub(entry.lastUpdate) > idle {
			delete(rl.entries, key)
		}
	}
}

// Stop stops the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stop.Do(func() { close(rl.stopCh) })
}

// Backend implements Limiter
func (rl *RateLimiter) Backend() string { return RateLimitBackendMemory }

// Allow implements Limiter
func (rl *RateLimiter) Allow(_ context.Context, key string) (RateLimitDecision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	burst := float64(rl.config.BurstSize)
	perSecond := float64(rl.config.RequestsPerMinute) / 60.0

	entry, exists := rl.entries[key]
	if !exists {
		entry = &rateLimitEntry{tokens: burst, lastUpdate: now}
		rl.entries[key] = entry
	} else {
		elapsed := now.Sub(entry.lastUpdate).Seconds()
		entry.tokens = min(burst, entry.tokens+elapsed*perSecond)
		entry.lastUpdate = now
	}

	decision := RateLimitDecision{Limit: rl.config.RequestsPerMinute}
	if entry.tokens >= 1 {
		entry.tokens--
		decision.Allowed = true
		decision.Remaining = int(entry.tokens)
		return decision, nil
	}

	if perSecond > 0 {
		decision.RetryAfter = time.Duration((1 - entry.tokens) / perSecond * float64(time.Second))
	} else {
		decision.RetryAfter = time.Minute
	}
	return decision, nil
}

// RedisRateLimiter shares limits across replicas through Redis
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

// NewRedisRateLimiter creates a limiter backed by client
func NewRedisRateLimiter(client redis.UniversalClient, config RateLimitConfig) *RedisRateLimiter {
	limit := redis_rate.PerMinute(config.RequestsPerMinute)
	if config.BurstSize > 0 {
		limit.Burst = config.BurstSize
	}
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(client),
		limit:   limit,
	}
}

// Backend implements Limiter
func (r *RedisRateLimiter) Backend() string { return RateLimitBackendRedis }

// Allow implements Limiter
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (RateLimitDecision, error) {
	res, err := r.limiter.Allow(ctx, "portal:ratelimit:"+key, r.limit)
	if err != nil {
		return RateLimitDecision{}, err
	}
	return RateLimitDecision{
		Allowed:    res.Allowed > 0,
		Limit:      r.limit.Rate,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

// RateLimitMiddleware rejects requests over the limit with 429. Limiter errors
// let the request through and are logged.
//
// Requests are keyed by client IP. Mount it before authentication so rejected
// floods never reach the token codec or the user directory:
//
//	apiV1 := router.Group("/api/v1")
//	apiV1.Use(middleware.RateLimitMiddleware(limiter))
//	apiV1.Use(middleware.AuthMiddleware(codec, dir))
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := getRateLimitKey(c)

		decision, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			slog.Error("rate limiter unavailable, allowing request",
				"backend", limiter.Backend(),
				"request_id", GetRequestID(c),
				"error", err,
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			retryAfter := int(decision.RetryAfter.Round(time.Second) / time.Second)
			if retryAfter < 1 {
				retryAfter = 1
			}
			telemetry.RateLimitRejectionsTotal.WithLabelValues(limiter.Backend()).Inc()
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse("rate limit exceeded"))
			return
		}

		c.Next()
	}
}

// getRateLimitKey keys on the client IP. The limiter runs ahead of
// AuthMiddleware, so no principal exists yet and the bearer token is unverified.
func getRateLimitKey(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
