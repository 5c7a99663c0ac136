package models

import "time"

// AbsenceAlertStatus tracks the follow-up of an absence streak.
type AbsenceAlertStatus string

const (
	AbsenceAlertPending  AbsenceAlertStatus = "pending"
	AbsenceAlertResolved AbsenceAlertStatus = "resolved"
)

// AbsenceAlert flags a student with consecutive absences. A student has at most one pending alert.
type AbsenceAlert struct {
	ID             string             `db:"id" json:"id"`
	StudentID      string             `db:"student_id" json:"student_id"`
	ClassID        *string            `db:"class_id" json:"class_id,omitempty"`
	StreakStart    time.Time          `db:"streak_start" json:"streak_start"`
	AbsenceCount   int                `db:"absence_count" json:"absence_count"`
	Status         AbsenceAlertStatus `db:"status" json:"status"`
	ResolutionNote *string            `db:"resolution_note" json:"resolution_note,omitempty"`
	ResolvedAt     *time.Time         `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
}

// AbsenceAlertDetail adds display names for listings.
type AbsenceAlertDetail struct {
	AbsenceAlert
	StudentName string  `db:"student_name" json:"student_name"`
	ClassName   *string `db:"class_name" json:"class_name,omitempty"`
}
