package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusEnrolled   EnrollmentStatus = "enrolled"
	EnrollmentStatusMonitoring EnrollmentStatus = "monitoring"
	EnrollmentStatusTrial      EnrollmentStatus = "trial"
	EnrollmentStatusLocked     EnrollmentStatus = "locked"
	EnrollmentStatusInactive   EnrollmentStatus = "inactive"
	EnrollmentStatusWithdrawn  EnrollmentStatus = "withdrawn"
)

// Valid reports whether the status is known.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusEnrolled, EnrollmentStatusMonitoring, EnrollmentStatusTrial,
		EnrollmentStatusLocked, EnrollmentStatusInactive, EnrollmentStatusWithdrawn:
		return true
	}
	return false
}

// AttendsClass reports whether sessions of the class record attendance for this enrollment.
func (s EnrollmentStatus) AttendsClass() bool {
	return s == EnrollmentStatusEnrolled || s == EnrollmentStatusTrial || s == EnrollmentStatusMonitoring
}

// Enrollment links a student to a class group.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	ClassID   string           `db:"class_id" json:"class_id"`
	Status    EnrollmentStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// EnrollmentDetail enriches Enrollment with student and class names.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	ClassName   string `db:"class_name" json:"class_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	ClassID   string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}
