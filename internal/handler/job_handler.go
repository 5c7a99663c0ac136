package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/escola-backoffice/internal/middleware"
	"github.com/noah-isme/escola-backoffice/internal/service"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
	"github.com/noah-isme/escola-backoffice/pkg/response"
)

type chargeGenerator interface {
	GenerateCharges(ctx context.Context, asOf time.Time) (*service.ChargeGenerationResult, error)
}

type absenceDetector interface {
	DetectAll(ctx context.Context, asOf time.Time) (*service.DetectionSummary, error)
}

type overdueMarker interface {
	MarkOverdue(ctx context.Context, today time.Time) (int, error)
}

// JobHandler triggers the nightly batch jobs on demand.
type JobHandler struct {
	invoices chargeGenerator
	detector absenceDetector
	overdue  overdueMarker
}

// NewJobHandler constructs JobHandler.
func NewJobHandler(invoices chargeGenerator, detector absenceDetector, overdue overdueMarker) *JobHandler {
	return &JobHandler{invoices: invoices, detector: detector, overdue: overdue}
}

// GenerateCharges godoc
// @Summary Run the invoice generator
// @Description Creates every missing tuition and enrollment fee charge up to the given date. Safe to re-run.
// @Tags Jobs
// @Produce json
// @Param date query string false "Reference date (YYYY-MM-DD). Defaults to today"
// @Success 200 {object} response.Envelope
// @Router /jobs/charges [post]
func (h *JobHandler) GenerateCharges(c *gin.Context) {
	if h.invoices == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	asOf, err := dateOrToday(c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.invoices.GenerateCharges(c.Request.Context(), asOf)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "created", result.CreatedCount())
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// DetectAbsences godoc
// @Summary Run the absence detector for every enrolled student
// @Tags Jobs
// @Produce json
// @Param date query string false "Reference date (YYYY-MM-DD). Defaults to today"
// @Success 200 {object} response.Envelope
// @Router /jobs/absences [post]
func (h *JobHandler) DetectAbsences(c *gin.Context) {
	if h.detector == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	asOf, err := dateOrToday(c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.detector.DetectAll(c.Request.Context(), asOf)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// MarkOverdue godoc
// @Summary Flag pending charges past their due date
// @Tags Jobs
// @Produce json
// @Param date query string false "Reference date (YYYY-MM-DD). Defaults to today"
// @Success 200 {object} response.Envelope
// @Router /jobs/overdue [post]
func (h *JobHandler) MarkOverdue(c *gin.Context) {
	if h.overdue == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	today, err := dateOrToday(c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	n, err := h.overdue.MarkOverdue(c.Request.Context(), today)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"date": today.Format("2006-01-02"), "updated": n}, nil)
}
