package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/service"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
	"github.com/noah-isme/escola-backoffice/pkg/response"
)

// ExamHandler exposes exam templates and the student exam flow.
type ExamHandler struct {
	exams *service.ExamService
}

// NewExamHandler constructs ExamHandler.
func NewExamHandler(exams *service.ExamService) *ExamHandler {
	return &ExamHandler{exams: exams}
}

func sectionIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "section index must be a non-negative number"))
		return 0, false
	}
	return index, true
}

// ListTemplates godoc
// @Summary List exam templates
// @Tags Exams
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /exam-templates [get]
func (h *ExamHandler) ListTemplates(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	templates, err := h.exams.ListTemplates(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, nil)
}

// GetTemplate godoc
// @Summary Get exam template with questions
// @Tags Exams
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Router /exam-templates/{id} [get]
func (h *ExamHandler) GetTemplate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	template, err := h.exams.GetTemplate(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, template, nil)
}

// CreateTemplate godoc
// @Summary Create exam template
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body dto.ExamTemplateRequest true "Template payload"
// @Success 201 {object} response.Envelope
// @Router /exam-templates [post]
func (h *ExamHandler) CreateTemplate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ExamTemplateRequest
	if !bindJSON(c, &req) {
		return
	}
	template, err := h.exams.CreateTemplate(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, template)
}

// CloneTemplate godoc
// @Summary Clone exam template
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body dto.CloneTemplateRequest true "Clone payload"
// @Success 201 {object} response.Envelope
// @Router /exam-templates/{id}/clone [post]
func (h *ExamHandler) CloneTemplate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CloneTemplateRequest
	if !bindJSON(c, &req) {
		return
	}
	template, err := h.exams.CloneTemplate(c.Request.Context(), actor, c.Param("id"), req.Title)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, template)
}

// UpdateQuestion godoc
// @Summary Edit a template question
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param questionId path string true "Question ID"
// @Param payload body dto.UpdateQuestionRequest true "Question payload"
// @Success 200 {object} response.Envelope
// @Router /exam-templates/{id}/questions/{questionId} [put]
func (h *ExamHandler) UpdateQuestion(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateQuestionRequest
	if !bindJSON(c, &req) {
		return
	}
	question, err := h.exams.UpdateQuestion(c.Request.Context(), actor, c.Param("id"), c.Param("questionId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// Release godoc
// @Summary Release an exam to a student
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body dto.ReleaseExamRequest true "Release payload"
// @Success 201 {object} response.Envelope
// @Router /exams [post]
func (h *ExamHandler) Release(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ReleaseExamRequest
	if !bindJSON(c, &req) {
		return
	}
	exam, err := h.exams.ReleaseExam(c.Request.Context(), actor, req.StudentID, req.TemplateID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exam)
}

// Get godoc
// @Summary Get student exam with answers
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id} [get]
func (h *ExamHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	exam, err := h.exams.GetExam(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exam, nil)
}

// OpenSection godoc
// @Summary Open an exam section
// @Description Sections open in order; opening the first one starts the exam.
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Param index path int true "Section index"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /exams/{id}/sections/{index} [get]
func (h *ExamHandler) OpenSection(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	index, ok := sectionIndex(c)
	if !ok {
		return
	}
	section, err := h.exams.OpenSection(c.Request.Context(), actor, c.Param("id"), index)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// SubmitSection godoc
// @Summary Submit a section's answers
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param index path int true "Section index"
// @Param payload body dto.SubmitAnswersRequest true "Answers by question id"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/sections/{index}/answers [post]
func (h *ExamHandler) SubmitSection(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	index, ok := sectionIndex(c)
	if !ok {
		return
	}
	var req dto.SubmitAnswersRequest
	if !bindJSON(c, &req) {
		return
	}
	exam, err := h.exams.SubmitSectionAnswers(c.Request.Context(), actor, c.Param("id"), index, req.Answers)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exam, nil)
}

// Grade godoc
// @Summary Grade a submitted exam
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body dto.GradeExamRequest true "Points by question id"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /exams/{id}/grade [post]
func (h *ExamHandler) Grade(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.GradeExamRequest
	if !bindJSON(c, &req) {
		return
	}
	exam, err := h.exams.GradeExam(c.Request.Context(), actor, c.Param("id"), req.Points)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exam, nil)
}
