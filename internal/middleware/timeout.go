package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// Timeout bounds the request context so downstream calls give up after d.
// Handlers still write their own response; long lived upgrades should be
// excluded with skip.
func Timeout(d time.Duration, skip func(c *gin.Context) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 || (skip != nil && skip(c)) {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
