package models

import "time"

// StudentStatus is the global lifecycle of a student.
type StudentStatus string

const (
	StudentStatusActive   StudentStatus = "active"
	StudentStatusInactive StudentStatus = "inactive"
	StudentStatusLocked   StudentStatus = "locked"
)

// Valid reports whether the status is known.
func (s StudentStatus) Valid() bool {
	switch s {
	case StudentStatusActive, StudentStatusInactive, StudentStatusLocked:
		return true
	}
	return false
}

// Student represents a learner registered in the school.
type Student struct {
	ID            string        `db:"id" json:"id"`
	FullName      string        `db:"full_name" json:"full_name"`
	CPF           *string       `db:"cpf" json:"cpf,omitempty"`
	Email         *string       `db:"email" json:"email,omitempty"`
	Phone         *string       `db:"phone" json:"phone,omitempty"`
	Street        *string       `db:"street" json:"street,omitempty"`
	City          *string       `db:"city" json:"city,omitempty"`
	State         *string       `db:"state" json:"state,omitempty"`
	BirthDate     *time.Time    `db:"birth_date" json:"birth_date,omitempty"`
	EnrolledAt    time.Time     `db:"enrolled_at" json:"enrolled_at"`
	Status        StudentStatus `db:"status" json:"status"`
	LessonCredits int           `db:"lesson_credits" json:"lesson_credits"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search   string
	Status   StudentStatus
	ClassID  string
	Page     int
	PageSize int
}
