package dto

import "github.com/noah-isme/escola-backoffice/internal/models"

// ExportFormat selects the statement renderer.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// StatementRequest selects a student's charges for export.
type StatementRequest struct {
	StudentID string       `form:"student_id" validate:"required"`
	Format    ExportFormat `form:"format" validate:"omitempty,oneof=csv pdf"`
	From      string       `form:"from" validate:"omitempty,datetime=2006-01"`
	To        string       `form:"to" validate:"omitempty,datetime=2006-01"`
}

// ExportFile is a rendered document ready to be sent.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// TeacherLessonsResponse counts lessons per teacher and ISO week of a month.
type TeacherLessonsResponse struct {
	Month string                      `json:"month"`
	Weeks []models.TeacherWeekLessons `json:"weeks"`
}
