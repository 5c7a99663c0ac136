package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/service"
	"github.com/noah-isme/escola-backoffice/pkg/response"
)

// ClassHandler exposes class group endpoints.
type ClassHandler struct {
	classes *service.ClassService
}

// NewClassHandler constructs ClassHandler.
func NewClassHandler(classes *service.ClassService) *ClassHandler {
	return &ClassHandler{classes: classes}
}

// List godoc
// @Summary List classes
// @Tags Classes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	classes, err := h.classes.List(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body dto.ClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ClassRequest
	if !bindJSON(c, &req) {
		return
	}
	class, err := h.classes.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body dto.ClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ClassRequest
	if !bindJSON(c, &req) {
		return
	}
	class, err := h.classes.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Roster godoc
// @Summary Class roster
// @Description Enrollments grouped by status plus the sessions of the selected month.
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Param month query string false "Month (YYYY-MM). Defaults to the current month"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/roster [get]
func (h *ClassHandler) Roster(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	month, err := monthOrCurrent(c.Query("month"))
	if err != nil {
		response.Error(c, err)
		return
	}
	roster, err := h.classes.Roster(c.Request.Context(), actor, c.Param("id"), month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}
