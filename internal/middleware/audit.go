package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-backoffice/internal/models"
)

// Audit logs every successful state-changing request with the acting user.
func Audit(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Writer.Status() >= 400 {
			return
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if value, ok := c.Get(ContextUserKey); ok {
			if claims, ok := value.(*models.JWTClaims); ok {
				fields = append(fields, zap.String("user_id", claims.UserID), zap.String("role", string(claims.Role)))
			}
		}
		logger.Info("audit", fields...)
	}
}
