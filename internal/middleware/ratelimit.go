package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mirai-api/gateway/internal/cache"
	"golang.org/x/time/rate"
)

// RateLimiter manages per-client token buckets
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rps int, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// getLimiter returns a rate limiter for a specific key
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	limiter, exists = rl.limiters[key]
	if exists {
		return limiter
	}

	limiter = rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[key] = limiter

	return limiter
}

// RateLimit throttles requests per authenticated account, falling back to
// the client IP for anonymous routes. This is transport-level protection; the
// daily quota is enforced separately by the guard.
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var key string
		if account, ok := GetAccount(c); ok {
			key = fmt.Sprintf("account:%s", account.ID)
		} else {
			key = fmt.Sprintf("ip:%s", c.ClientIP())
		}

		limiter := rl.getLimiter(key)
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  http.StatusTooManyRequests,
				"message": "Rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

// RegisterThrottle limits account registrations per client IP using the
// shared Redis fixed-window counter, so the cap holds across instances.
// A nil cache disables the throttle.
func RegisterThrottle(c *cache.Cache, perHour int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if c == nil {
			ctx.Next()
			return
		}

		key := fmt.Sprintf("register:%s", ctx.ClientIP())
		allowed, err := c.CheckRateLimit(ctx.Request.Context(), key, perHour, time.Hour)
		if err != nil {
			// Redis being down must not block registration.
			ctx.Next()
			return
		}

		if !allowed {
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  http.StatusTooManyRequests,
				"message": "Too many registrations, try again later",
			})
			return
		}

		ctx.Next()
	}
}
