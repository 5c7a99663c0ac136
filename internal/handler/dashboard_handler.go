package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/middleware"
	"github.com/noah-isme/escola-backoffice/internal/models"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
	"github.com/noah-isme/escola-backoffice/pkg/response"
)

type dashboardService interface {
	Admin(ctx context.Context, actor models.Actor, filter models.DashboardFilter) (*dto.AdminDashboardResponse, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Admin godoc
// @Summary Back-office dashboard
// @Tags Dashboard
// @Produce json
// @Param month query string false "Month (YYYY-MM). Defaults to the current month"
// @Param classId query string false "Restrict to one class"
// @Param kind query string false "Restrict to one charge kind"
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "dashboard is disabled"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.DashboardFilter{
		ClassID: strings.TrimSpace(c.Query("classId")),
		Kind:    models.ChargeKind(strings.TrimSpace(c.Query("kind"))),
	}
	if raw := c.Query("month"); raw != "" {
		month, err := monthOrCurrent(raw)
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.Month = month
	}

	summary, cacheHit, err := h.service.Admin(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}
