package dto

import "github.com/noah-isme/escola-backoffice/internal/models"

// LessonMarkers carries the lesson bookmarks reached in a session.
type LessonMarkers struct {
	LastParagraph *int    `json:"last_paragraph" validate:"omitempty,min=0"`
	LastWord      *string `json:"last_word" validate:"omitempty,max=100"`
	NewDictation  *int    `json:"new_dictation" validate:"omitempty,min=0"`
	OldDictation  *int    `json:"old_dictation" validate:"omitempty,min=0"`
	NewReading    *int    `json:"new_reading" validate:"omitempty,min=0"`
	OldReading    *int    `json:"old_reading" validate:"omitempty,min=0"`
	LessonCheck   *string `json:"lesson_check" validate:"omitempty,max=100"`
}

// RecordSessionRequest registers a lesson and its attendance roll.
type RecordSessionRequest struct {
	ClassID    string   `json:"class_id" validate:"required"`
	TeacherID  *string  `json:"teacher_id"`
	LessonDate string   `json:"lesson_date" validate:"required,datetime=2006-01-02"`
	Present    []string `json:"present" validate:"dive,required"`
	LessonMarkers
}

// UpdateSessionRequest edits a recorded lesson. A nil Present keeps the roll as is.
type UpdateSessionRequest struct {
	Present []string `json:"present" validate:"omitempty,dive,required"`
	LessonMarkers
}

// SessionResponse is a session with its attendance roll.
type SessionResponse struct {
	Session    models.ClassSession `json:"session"`
	Attendance []models.Attendance `json:"attendance"`
}

// StudentAttendanceResponse summarises one student's attendance.
type StudentAttendanceResponse struct {
	StudentID string                     `json:"student_id"`
	Summary   models.AttendanceStats     `json:"summary"`
	Monthly   []models.MonthlyAttendance `json:"monthly"`
}
