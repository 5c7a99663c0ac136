package models

import "time"

// Attendance marks one student present or absent in one session.
type Attendance struct {
	ID        string `db:"id" json:"id"`
	SessionID string `db:"session_id" json:"session_id"`
	StudentID string `db:"student_id" json:"student_id"`
	Present   bool   `db:"present" json:"present"`
}

// AttendanceEntry is an attendance row joined with its session, used by streak scans.
type AttendanceEntry struct {
	AttendanceID     string    `db:"attendance_id" json:"attendance_id"`
	SessionID        string    `db:"session_id" json:"session_id"`
	ClassID          string    `db:"class_id" json:"class_id"`
	StudentID        string    `db:"student_id" json:"student_id"`
	LessonDate       time.Time `db:"lesson_date" json:"lesson_date"`
	SessionCreatedAt time.Time `db:"session_created_at" json:"-"`
	Present          bool      `db:"present" json:"present"`
}

// AttendanceStats summarises a student's attendance.
type AttendanceStats struct {
	Total      int     `db:"total" json:"total"`
	Present    int     `db:"present" json:"present"`
	Absent     int     `db:"absent" json:"absent"`
	Percentage float64 `db:"-" json:"percentage"`
}

// MonthlyAttendance is the attendance percentage of one month.
type MonthlyAttendance struct {
	Month      time.Time `db:"month" json:"month"`
	Total      int       `db:"total" json:"total"`
	Present    int       `db:"present" json:"present"`
	Percentage float64   `db:"-" json:"percentage"`
}
