package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// QuestionType names an exam section; a template orders its sections by type.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
	QuestionTypeEssay          QuestionType = "essay"
	QuestionTypeDictation      QuestionType = "dictation"
)

// ExamTemplate defines the ordered sections of an exam.
type ExamTemplate struct {
	ID        string         `db:"id" json:"id"`
	Title     string         `db:"title" json:"title"`
	Sections  pq.StringArray `db:"sections" json:"sections"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	Questions []Question     `db:"-" json:"questions,omitempty"`
}

// SectionType returns the question type of the section at index.
func (t *ExamTemplate) SectionType(index int) (QuestionType, bool) {
	if index < 0 || index >= len(t.Sections) {
		return "", false
	}
	return QuestionType(t.Sections[index]), true
}

// Question belongs to a template.
type Question struct {
	ID           string          `db:"id" json:"id"`
	TemplateID   string          `db:"template_id" json:"template_id"`
	QuestionType QuestionType    `db:"question_type" json:"question_type"`
	Prompt       string          `db:"prompt" json:"prompt"`
	Options      pq.StringArray  `db:"options" json:"options,omitempty"`
	Points       decimal.Decimal `db:"points" json:"points"`
	Position     int             `db:"position" json:"position"`
}

// StudentExamStatus: not_started -> in_progress -> awaiting_grading -> finalized.
type StudentExamStatus string

const (
	StudentExamNotStarted      StudentExamStatus = "not_started"
	StudentExamInProgress      StudentExamStatus = "in_progress"
	StudentExamAwaitingGrading StudentExamStatus = "awaiting_grading"
	StudentExamFinalized       StudentExamStatus = "finalized"
)

// Closed reports whether the exam no longer accepts answers.
func (s StudentExamStatus) Closed() bool {
	return s == StudentExamAwaitingGrading || s == StudentExamFinalized
}

// StudentExam is one student's instance of a template.
type StudentExam struct {
	ID          string            `db:"id" json:"id"`
	StudentID   string            `db:"student_id" json:"student_id"`
	TemplateID  string            `db:"template_id" json:"template_id"`
	Status      StudentExamStatus `db:"status" json:"status"`
	NextSection int               `db:"next_section" json:"next_section"`
	Score       *decimal.Decimal  `db:"score" json:"score,omitempty"`
	MaxScore    *decimal.Decimal  `db:"max_score" json:"max_score,omitempty"`
	StartedAt   *time.Time        `db:"started_at" json:"started_at,omitempty"`
	SubmittedAt *time.Time        `db:"submitted_at" json:"submitted_at,omitempty"`
	GradedAt    *time.Time        `db:"graded_at" json:"graded_at,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// StudentAnswer is upserted per (exam, question).
type StudentAnswer struct {
	ID            string           `db:"id" json:"id"`
	StudentExamID string           `db:"student_exam_id" json:"student_exam_id"`
	QuestionID    string           `db:"question_id" json:"question_id"`
	Answer        string           `db:"answer" json:"answer"`
	AwardedPoints *decimal.Decimal `db:"awarded_points" json:"awarded_points,omitempty"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}
