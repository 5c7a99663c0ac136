package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/models"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
	"github.com/noah-isme/escola-backoffice/pkg/response"
)

type reportService interface {
	OpenChargeStudents(ctx context.Context, actor models.Actor) ([]models.OpenChargeStudent, error)
	TeacherLessons(ctx context.Context, actor models.Actor, month time.Time) (*dto.TeacherLessonsResponse, error)
	Statement(ctx context.Context, actor models.Actor, req dto.StatementRequest) (*dto.ExportFile, error)
}

// ReportHandler exposes reporting endpoints.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// OpenCharges godoc
// @Summary Students with open charges
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/open-charges [get]
func (h *ReportHandler) OpenCharges(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	rows, err := h.reports.OpenChargeStudents(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// TeacherLessons godoc
// @Summary Lessons given per teacher and week
// @Tags Reports
// @Produce json
// @Param month query string false "Month (YYYY-MM). Defaults to the current month"
// @Success 200 {object} response.Envelope
// @Router /reports/teacher-lessons [get]
func (h *ReportHandler) TeacherLessons(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	month, err := monthOrCurrent(c.Query("month"))
	if err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.reports.TeacherLessons(c.Request.Context(), actor, month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Statement godoc
// @Summary Download a student's billing statement
// @Tags Reports
// @Produce octet-stream
// @Param student_id query string true "Student ID"
// @Param format query string false "csv or pdf"
// @Param from query string false "First month (YYYY-MM)"
// @Param to query string false "Last month (YYYY-MM)"
// @Success 200 {file} file
// @Router /reports/statement [get]
func (h *ReportHandler) Statement(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.StatementRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid statement query"))
		return
	}
	file, err := h.reports.Statement(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
