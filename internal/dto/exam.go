package dto

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/escola-backoffice/internal/models"
)

// QuestionRequest describes one question of a template.
type QuestionRequest struct {
	QuestionType models.QuestionType `json:"question_type" validate:"required,oneof=multiple_choice true_false short_answer essay dictation"`
	Prompt       string              `json:"prompt" validate:"required"`
	Options      []string            `json:"options"`
	Points       decimal.Decimal     `json:"points"`
}

// ExamTemplateRequest creates a template with its ordered sections and questions.
type ExamTemplateRequest struct {
	Title     string                `json:"title" validate:"required,max=200"`
	Sections  []models.QuestionType `json:"sections" validate:"required,min=1,dive,oneof=multiple_choice true_false short_answer essay dictation"`
	Questions []QuestionRequest     `json:"questions" validate:"required,min=1,dive"`
}

// UpdateQuestionRequest edits a question in place.
type UpdateQuestionRequest struct {
	Prompt  string          `json:"prompt" validate:"required"`
	Options []string        `json:"options"`
	Points  decimal.Decimal `json:"points"`
}

// CloneTemplateRequest names the copy of a template.
type CloneTemplateRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

// ReleaseExamRequest hands a template to a student.
type ReleaseExamRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	TemplateID string `json:"template_id" validate:"required"`
}

// SubmitAnswersRequest maps question ids to answers.
type SubmitAnswersRequest struct {
	Answers map[string]string `json:"answers"`
}

// GradeExamRequest maps question ids to awarded points.
type GradeExamRequest struct {
	Points map[string]decimal.Decimal `json:"points" validate:"required"`
}

// ExamSection is the delivery view of one section.
type ExamSection struct {
	Exam      models.StudentExam  `json:"exam"`
	Index     int                 `json:"index"`
	Type      models.QuestionType `json:"type"`
	Questions []models.Question   `json:"questions"`
}

// ExamDetail is a student exam with its answers.
type ExamDetail struct {
	Exam    models.StudentExam     `json:"exam"`
	Answers []models.StudentAnswer `json:"answers"`
}
