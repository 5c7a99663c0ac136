package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/models"
	"github.com/noah-isme/escola-backoffice/internal/service"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
	"github.com/noah-isme/escola-backoffice/pkg/response"
)

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students   *service.StudentService
	attendance *service.AttendanceService
	exams      *service.ExamService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students *service.StudentService, attendance *service.AttendanceService, exams *service.ExamService) *StudentHandler {
	return &StudentHandler{students: students, attendance: attendance, exams: exams}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Search by name, CPF or email"
// @Param classId query string false "Filter by class"
// @Param status query string false "Filter by status (active, inactive, locked)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var filter models.StudentFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.ClassID = c.Query("classId")
	filter.Status = models.StudentStatus(c.Query("status"))
	filter.Page, filter.PageSize = pageParams(c)

	students, pagination, err := h.students.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	student, err := h.students.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary Create student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.StudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.StudentRequest
	if !bindJSON(c, &req) {
		return
	}
	student, err := h.students.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Update student
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.StudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.StudentRequest
	if !bindJSON(c, &req) {
		return
	}
	student, err := h.students.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// ChangeStatus godoc
// @Summary Change student status
// @Description Propagates the new status to every non-withdrawn enrollment.
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.StudentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/status [patch]
func (h *StudentHandler) ChangeStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.StudentStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.students.ChangeStatus(c.Request.Context(), actor, c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Attendance godoc
// @Summary Student attendance summary
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Param months query int false "Number of months in the monthly breakdown"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance [get]
func (h *StudentHandler) Attendance(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	months := 0
	if raw := c.Query("months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "months must be a positive number"))
			return
		}
		months = parsed
	}
	today, _ := dateOrToday("")
	studentID := c.Param("id")

	summary, err := h.attendance.StudentSummary(c.Request.Context(), actor, studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	monthly, err := h.attendance.MonthlyFrequency(c.Request.Context(), actor, studentID, today, months)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.StudentAttendanceResponse{
		StudentID: studentID,
		Summary:   *summary,
		Monthly:   monthly,
	}, nil)
}

// Exams godoc
// @Summary List exams released to a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/exams [get]
func (h *StudentHandler) Exams(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	exams, err := h.exams.ListStudentExams(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exams, nil)
}
