package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"groupcart/internal/monitor"
	"groupcart/pkg/limiter"
	"groupcart/pkg/log"
	"groupcart/pkg/utils"
)

// Limiter keyed admission check
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimitConfig rate limiting middleware configuration
type RateLimitConfig struct {
	Limiter Limiter
	// KeyFunc derives the limiter key, the client IP by default
	KeyFunc func(c *gin.Context) string
	// SkipFunc bypasses the limiter
	SkipFunc func(c *gin.Context) bool
	Metrics  *monitor.MetricsCollector
}

// IPRateLimit token bucket per client IP; idle buckets are dropped after ttl
func IPRateLimit(rps float64, burst int, ttl time.Duration, metrics *monitor.MetricsCollector) gin.HandlerFunc {
	return RateLimitWithConfig(RateLimitConfig{
		Limiter: limiter.NewKeyedTokenBucket(rate.Limit(rps), burst, ttl),
		Metrics: metrics,
	})
}

// RateLimitWithConfig rate limiting middleware with configuration
func RateLimitWithConfig(config RateLimitConfig) gin.HandlerFunc {
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}

	return func(c *gin.Context) {
		if config.SkipFunc != nil && config.SkipFunc(c) {
			c.Next()
			return
		}

		key := config.KeyFunc(c)
		allowed, err := config.Limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// limiter backend down: admit the request
			log.WithFields(log.Fields{
				"key":   key,
				"error": err.Error(),
			}).Warn("Rate limiter unavailable")
			c.Next()
			return
		}

		if !allowed {
			config.Metrics.RecordRateLimited()
			log.WithFields(log.Fields{
				"key":    key,
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Warn("Rate limit exceeded")

			c.Header("Retry-After", "1")
			utils.Error(c, utils.CodeRateLimit, "Too many requests")
			c.Abort()
			return
		}

		c.Next()
	}
}
