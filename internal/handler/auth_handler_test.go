package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/escola-backoffice/internal/models"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
)

type authServiceStub struct {
	login     *models.LoginResponse
	err       error
	lastLogin models.LoginRequest
	lastActor models.Actor
	lastPwd   models.ChangePasswordRequest
}

func (s *authServiceStub) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	s.lastLogin = req
	return s.login, s.err
}

func (s *authServiceStub) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: userID}, s.err
}

func (s *authServiceStub) ChangePassword(ctx context.Context, actor models.Actor, req models.ChangePasswordRequest) error {
	s.lastActor = actor
	s.lastPwd = req
	return s.err
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &authServiceStub{login: &models.LoginResponse{AccessToken: "tok"}}
	h := NewAuthHandler(svc)

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"ana@escola.test","password":"segredo"}`))
	h.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"access_token":"tok"`)
	assert.Equal(t, "ana@escola.test", svc.lastLogin.Email)
}

func TestAuthHandlerLoginRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(&authServiceStub{})

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":`))
	h.Login(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerMeNeedsClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(&authServiceStub{})

	c, w := newGinContext(http.MethodGet, "/auth/me", nil)
	h.Me(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerChangePassword(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &authServiceStub{}
	h := NewAuthHandler(svc)

	c, _ := newGinContext(http.MethodPut, "/auth/password", []byte(`{"current_password":"old-secret","new_password":"new-secret"}`))
	withClaims(c, &models.JWTClaims{UserID: "u-1", Role: models.RoleStudent, StudentID: "s1"})
	h.ChangePassword(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "u-1", svc.lastActor.UserID)
	assert.Equal(t, "new-secret", svc.lastPwd.NewPassword)
}

func TestAuthHandlerChangePasswordWrongCurrent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(&authServiceStub{err: appErrors.ErrInvalidCredentials})

	c, w := newGinContext(http.MethodPut, "/auth/password", []byte(`{"current_password":"x","new_password":"new-secret"}`))
	withClaims(c, &models.JWTClaims{UserID: "u-1", Role: models.RoleTeacher})
	h.ChangePassword(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
