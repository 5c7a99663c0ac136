package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestErrorHidesInternalCause(t *testing.T) {
	c, w := newContext()

	Error(c, errors.New("pq: connection refused"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
	assert.Len(t, c.Errors, 1)
	assert.True(t, c.IsAborted())
}

func TestErrorKeepsDomainStatus(t *testing.T) {
	c, w := newContext()

	Error(c, appErrors.Clone(appErrors.ErrConflict, "contract is locked"))

	require.Equal(t, http.StatusConflict, w.Code)
	var body Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "contract is locked", body.Error.Message)
	assert.Empty(t, c.Errors)
}

func TestJSONDropsEmptyMeta(t *testing.T) {
	c, w := newContext()

	JSON(c, http.StatusOK, gin.H{"ok": true}, nil, map[string]interface{}{})

	assert.NotContains(t, w.Body.String(), "meta")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestAttachment(t *testing.T) {
	c, w := newContext()

	Attachment(c, "extrato.pdf", "application/pdf", []byte("%PDF"))

	assert.Equal(t, `attachment; filename="extrato.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}
