package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPObserver receives per-request measurements.
type HTTPObserver interface {
	HTTPInflight(delta float64)
	ObserveHTTP(method, route, status string, dur time.Duration)
}

// Metrics reports latency and status per route template, so user ids in
// paths never become label values.
func Metrics(obs HTTPObserver) gin.HandlerFunc {
	if obs == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		obs.HTTPInflight(1)
		defer obs.HTTPInflight(-1)

		c.Next()

		obs.ObserveHTTP(c.Request.Method, c.FullPath(), strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
