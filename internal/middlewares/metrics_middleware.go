package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"schemakit/internal/metrics"
)

// Metrics records request counts and latency per route template.
func Metrics(c *gin.Context) {
	start := time.Now()
	c.Next()

	endpoint := c.FullPath()
	if endpoint == "" {
		endpoint = "unmatched"
	}

	metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
}
