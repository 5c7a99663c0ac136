package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/escola-backoffice/internal/service"
	"github.com/noah-isme/escola-backoffice/pkg/response"
)

// AlertHandler exposes absence alert endpoints.
type AlertHandler struct {
	alerts *service.AbsenceAlertService
}

// NewAlertHandler constructs AlertHandler.
func NewAlertHandler(alerts *service.AbsenceAlertService) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

type resolveAlertRequest struct {
	Note string `json:"note" binding:"max=500"`
}

// ListPending godoc
// @Summary List open absence alerts
// @Tags Alerts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /alerts [get]
func (h *AlertHandler) ListPending(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	alerts, err := h.alerts.ListPending(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil)
}

// Resolve godoc
// @Summary Resolve absence alert
// @Tags Alerts
// @Accept json
// @Produce json
// @Param id path string true "Alert ID"
// @Param payload body resolveAlertRequest false "Resolution note"
// @Success 200 {object} response.Envelope
// @Router /alerts/{id}/resolve [post]
func (h *AlertHandler) Resolve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req resolveAlertRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	alert, err := h.alerts.Resolve(c.Request.Context(), actor, c.Param("id"), req.Note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alert, nil)
}
