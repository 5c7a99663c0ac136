package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/escola-backoffice/internal/service"
)

// Metrics records request counts and latency per matched route.
// Requests that match no route are grouped under "unmatched".
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
