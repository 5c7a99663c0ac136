package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/models"
	"github.com/noah-isme/escola-backoffice/internal/service"
	"github.com/noah-isme/escola-backoffice/pkg/response"
)

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param classId query string false "Filter by class"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.EnrollmentFilter{
		StudentID: c.Query("studentId"),
		ClassID:   c.Query("classId"),
		Status:    models.EnrollmentStatus(c.Query("status")),
	}
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, err := h.enrollments.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Enroll godoc
// @Summary Enroll student in class
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.EnrollRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// UpdateStatus godoc
// @Summary Change enrollment status
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.EnrollmentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/status [patch]
func (h *EnrollmentHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.EnrollmentStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.enrollments.UpdateStatus(c.Request.Context(), actor, c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// SyncStudent godoc
// @Summary Re-apply the student status to the student's enrollments
// @Tags Enrollments
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/enrollments/sync [post]
func (h *EnrollmentHandler) SyncStudent(c *gin.Context) {
	if _, ok := actorFromContext(c); !ok {
		return
	}
	affected, err := h.enrollments.SyncEnrollmentStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"enrollments_affected": affected}, nil)
}
