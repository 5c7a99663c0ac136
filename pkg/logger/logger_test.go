package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/escola-backoffice/pkg/middleware/requestid"
)

func newObservedRouter() (*gin.Engine, *observer.ObservedLogs) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.Use(GinMiddleware(zap.New(core)))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/charges/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.POST("/jobs/charges", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	return r, logs
}

func TestGinMiddlewareLevelsByStatus(t *testing.T) {
	r, logs := newObservedRouter()

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/charges/c-1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/jobs/charges", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "/charges/:id", entries[0].ContextMap()["route"])
	assert.NotEmpty(t, entries[0].ContextMap()["request_id"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestGinMiddlewareSkipsHealthyChecks(t *testing.T) {
	r, logs := newObservedRouter()

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Zero(t, logs.Len())
}
