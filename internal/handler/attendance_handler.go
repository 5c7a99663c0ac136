package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/models"
	"github.com/noah-isme/escola-backoffice/internal/service"
	"github.com/noah-isme/escola-backoffice/pkg/dates"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
	"github.com/noah-isme/escola-backoffice/pkg/response"
)

// AttendanceHandler exposes class session and roll-call endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// List godoc
// @Summary List class sessions
// @Tags Attendance
// @Produce json
// @Param classId query string false "Filter by class"
// @Param teacherId query string false "Filter by teacher"
// @Param from query string false "First lesson date (YYYY-MM-DD)"
// @Param to query string false "Last lesson date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.ClassSessionFilter{
		ClassID:   c.Query("classId"),
		TeacherID: c.Query("teacherId"),
	}
	if raw := c.Query("from"); raw != "" {
		from, err := dates.Parse(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from date, expected YYYY-MM-DD"))
			return
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := dates.Parse(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to date, expected YYYY-MM-DD"))
			return
		}
		filter.To = &to
	}

	sessions, err := h.attendance.ListSessions(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// Get godoc
// @Summary Get class session with its roll
// @Tags Attendance
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *AttendanceHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	session, err := h.attendance.GetSession(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Record godoc
// @Summary Record a lesson
// @Description Creates the session and one attendance row per active enrollment; absent students are queued for absence detection.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.RecordSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /sessions [post]
func (h *AttendanceHandler) Record(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RecordSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.attendance.RecordSession(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Update godoc
// @Summary Update a recorded lesson
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.UpdateSessionRequest true "Session payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [put]
func (h *AttendanceHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.attendance.UpdateSession(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}
