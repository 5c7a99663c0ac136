package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowHeaders  = "Authorization, Content-Type, X-Requested-With, X-Request-ID"
	allowMethods  = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	exposeHeaders = "Content-Disposition, X-Request-ID"
	maxAge        = "600"
)

// New returns a CORS middleware for the listed origins. An empty list or a "*" entry admits any origin.
func New(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			allowAll = true
			continue
		}
		originSet[strings.ToLower(origin)] = struct{}{}
	}

	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		_, listed := originSet[strings.ToLower(strings.TrimRight(origin, "/"))]
		if !allowAll && !listed {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		header.Set("Access-Control-Allow-Origin", origin)
		header.Set("Access-Control-Allow-Credentials", "true")
		header.Set("Access-Control-Expose-Headers", exposeHeaders)

		if c.Request.Method == http.MethodOptions {
			header.Set("Access-Control-Allow-Headers", allowHeaders)
			header.Set("Access-Control-Allow-Methods", allowMethods)
			header.Set("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
