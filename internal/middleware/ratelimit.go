// ratelimit.go provides Gin middleware that enforces per-client rate limits, returning
// 429 responses when the configured requests-per-minute threshold is exceeded. Two
// limiters are available: an in-process token bucket for single-replica deployments and
// a Redis-backed GCRA limiter (redis_rate) that shares budgets across replicas.
package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"github.com/castline/castline/internal/telemetry"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained number of requests allowed per minute
	RequestsPerMinute int
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
	// CleanupInterval is how often the in-memory limiter drops idle clients
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns the limits applied to public and account routes.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 200,
		BurstSize:         50,
		CleanupInterval:   5 * time.Minute,
	}
}

// AdminRateLimitConfig returns limits for admin routes. Burst defaults to a
// sixth of the per-minute rate, never less than one.
func AdminRateLimitConfig(requestsPerMinute int) RateLimitConfig {
	burst := requestsPerMinute / 6
	if burst < 1 {
		burst = 1
	}
	return RateLimitConfig{
		RequestsPerMinute: requestsPerMinute,
		BurstSize:         burst,
		CleanupInterval:   5 * time.Minute,
	}
}

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the client identified by key may make another request.
type Limiter interface {
	Take(ctx context.Context, key string) (Decision, error)
	// Backend names the implementation for metrics.
	Backend() string
}

// rateLimitEntry tracks the token bucket of a single client
type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter is an in-memory token bucket limiter.
type RateLimiter struct {
	config  RateLimitConfig
	entries map[string]*rateLimitEntry
	mu      sync.Mutex
	stopCh  chan struct{}
	now     func() time.Time
}

// NewRateLimiter creates a new in-memory rate limiter and starts its cleanup loop.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		config:  config,
		entries: make(map[string]*rateLimitEntry),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
	go rl.cleanup()
	return rl
}

// cleanup periodically removes clients idle for more than 10 minutes
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, entry := range rl.entries {
				if now.Sub(entry.lastUpdate) > 10*time.Minute {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// Backend implements Limiter.
func (rl *RateLimiter) Backend() string { return "memory" }

// Take implements Limiter. It never returns an error.
func (rl *RateLimiter) Take(_ context.Context, key string) (Decision, error) {
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
		entry.tokens = math.Min(burst, entry.tokens+elapsed*perSecond)
		entry.lastUpdate = now
	}

	d := Decision{Limit: rl.config.RequestsPerMinute}
	if entry.tokens >= 1 {
		entry.tokens--
		d.Allowed = true
	} else if perSecond > 0 {
		d.RetryAfter = time.Duration((1 - entry.tokens) / perSecond * float64(time.Second))
	} else {
		d.RetryAfter = time.Minute
	}
	d.Remaining = int(entry.tokens)
	return d, nil
}

// RedisRateLimiter is a distributed limiter backed by redis_rate's GCRA implementation.
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
}

// NewRedisRateLimiter creates a limiter sharing its budget across all replicas that
// use the same Redis and prefix.
func NewRedisRateLimiter(client *redis.Client, prefix string, config RateLimitConfig) *RedisRateLimiter {
	burst := config.BurstSize
	if burst < 1 {
		burst = 1
	}
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(client),
		limit: redis_rate.Limit{
			Rate:   config.RequestsPerMinute,
			Burst:  burst,
			Period: time.Minute,
		},
		prefix: prefix,
	}
}

// Backend implements Limiter.
func (rl *RedisRateLimiter) Backend() string { return "redis" }

// Take implements Limiter.
func (rl *RedisRateLimiter) Take(ctx context.Context, key string) (Decision, error) {
	res, err := rl.limiter.Allow(ctx, rl.prefix+key, rl.limit)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:    res.Allowed > 0,
		Limit:      rl.limit.Rate,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

// RateLimitMiddleware rate limits requests per client. Clients are keyed by
// authenticated account id when auth ran earlier in the chain, otherwise by IP.
// A limiter error lets the request through: losing Redis must not take the API down.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := getRateLimitKey(c)

		d, err := limiter.Take(c.Request.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable; allowing request", "backend", limiter.Backend(), "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))

		if !d.Allowed {
			retry := int(math.Ceil(d.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			telemetry.RateLimitRejectedTotal.WithLabelValues(limiter.Backend()).Inc()
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"code":        "RATE_LIMITED",
				"retry_after": retry,
			})
			return
		}

		c.Next()
	}
}

// getRateLimitKey prefers the authenticated account over the client IP.
func getRateLimitKey(c *gin.Context) string {
	if id := AccountID(c); id != "" {
		return "account:" + id
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
