package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func do(origins []string, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/reports/statement", func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(method, "/reports/statement", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListedOriginGetsHeaders(t *testing.T) {
	rec := do([]string{"https://office.escola.test/"}, http.MethodGet, "https://Office.escola.test")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://Office.escola.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestPreflight(t *testing.T) {
	rec := do([]string{"*"}, http.MethodOptions, "https://anywhere.test")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))

	rec = do([]string{"https://office.escola.test"}, http.MethodOptions, "https://evil.test")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnlistedOriginPassesWithoutHeaders(t *testing.T) {
	rec := do([]string{"https://office.escola.test"}, http.MethodGet, "https://evil.test")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
