package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/escola-backoffice/internal/models"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
	err    error
	token  string
}

func (v *validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	v.token = token
	return v.claims, v.err
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.POST("/students/:id", handlers...)
	router.GET("/students/:id", handlers...)
	return router
}

func serve(router *gin.Engine, method, path, auth string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	router.ServeHTTP(rec, req)
	return rec
}

func TestJWTRequiresBearerToken(t *testing.T) {
	validator := &validatorStub{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}}
	router := newRouter(JWT(validator))

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/students/s1", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/students/s1", "Basic abc").Code)

	rec := serve(router, http.MethodGet, "/students/s1", "Bearer token-1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "token-1", validator.token)
}

func TestJWTRejectsInvalidToken(t *testing.T) {
	validator := &validatorStub{err: appErrors.Clone(appErrors.ErrUnauthorized, "token expired")}
	rec := serve(newRouter(JWT(validator)), http.MethodGet, "/students/s1", "Bearer stale")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalJWTNeverBlocks(t *testing.T) {
	validator := &validatorStub{err: errors.New("bad token")}
	rec := serve(newRouter(OptionalJWT(validator)), http.MethodGet, "/students/s1", "Bearer broken")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRBACAllowsRolesAndSelf(t *testing.T) {
	cases := []struct {
		name   string
		claims *models.JWTClaims
		path   string
		want   int
	}{
		{"admin", &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}, "/students/s1", http.StatusNoContent},
		{"own student record", &models.JWTClaims{UserID: "u2", Role: models.RoleStudent, StudentID: "s1"}, "/students/s1", http.StatusNoContent},
		{"other student", &models.JWTClaims{UserID: "u2", Role: models.RoleStudent, StudentID: "s1"}, "/students/s2", http.StatusForbidden},
		{"system", &models.JWTClaims{UserID: "cron", Role: models.RoleSystem}, "/students/s9", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newRouter(JWT(&validatorStub{claims: tc.claims}), RBAC(string(models.RoleAdmin), RoleSelf))
			assert.Equal(t, tc.want, serve(router, http.MethodGet, tc.path, "Bearer t").Code)
		})
	}
}

func TestRBACWithoutClaims(t *testing.T) {
	rec := serve(newRouter(RequireRoles(models.RoleAdmin)), http.MethodGet, "/students/s1", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuditLogsMutatingRequests(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	validator := &validatorStub{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}}
	router := newRouter(Audit(zap.New(core)), JWT(validator))

	serve(router, http.MethodGet, "/students/s1", "Bearer t")
	assert.Zero(t, logs.Len())

	serve(router, http.MethodPost, "/students/s1", "Bearer t")
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "audit", entry.Message)
	assert.Equal(t, "u1", entry.ContextMap()["user_id"])
	assert.Equal(t, "/students/:id", entry.ContextMap()["route"])
}

func TestResponseMetaCollectsEntries(t *testing.T) {
	var meta map[string]interface{}
	router := newRouter(WithResponseMeta(), func(c *gin.Context) {
		SetCacheHit(c, true)
		SetMeta(c, "created", 4)
		meta = ExtractMeta(c)
	})

	serve(router, http.MethodGet, "/students/s1", "")

	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, 4, meta["created"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestResponseMetaEmptyIsNil(t *testing.T) {
	var meta map[string]interface{}
	router := newRouter(WithResponseMeta(), func(c *gin.Context) { meta = ExtractMeta(c) })

	serve(router, http.MethodGet, "/students/s1", "")

	assert.Nil(t, meta)
}
