package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/escola-backoffice/internal/models"
	"github.com/noah-isme/escola-backoffice/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Me(ctx context.Context, userID string) (*models.UserInfo, error)
	ChangePassword(ctx context.Context, actor models.Actor, req models.ChangePasswordRequest) error
}

// AuthHandler exposes login and the caller's own account.
type AuthHandler struct {
	service authService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Login godoc
// @Summary Authenticate user
// @Description Exchanges email and password for a bearer token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Me godoc
// @Summary Current user
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	info, err := h.service.Me(c.Request.Context(), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// ChangePassword godoc
// @Summary Change own password
// @Tags Authentication
// @Accept json
// @Param payload body models.ChangePasswordRequest true "Current and new password"
// @Success 204
// @Failure 401 {object} response.Envelope
// @Router /auth/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.ChangePassword(c.Request.Context(), actor, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
