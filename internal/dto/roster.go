package dto

import "github.com/noah-isme/escola-backoffice/internal/models"

// StudentRequest creates or updates a student registry entry.
type StudentRequest struct {
	FullName  string  `json:"full_name" validate:"required,max=255"`
	CPF       *string `json:"cpf" validate:"omitempty,cpf"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" validate:"omitempty,max=20"`
	Street    *string `json:"street" validate:"omitempty,max=255"`
	City      *string `json:"city" validate:"omitempty,max=100"`
	State     *string `json:"state" validate:"omitempty,uf"`
	BirthDate *string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
}

// StudentStatusRequest changes the lifecycle status of a student.
type StudentStatusRequest struct {
	Status models.StudentStatus `json:"status" validate:"required,oneof=active inactive locked"`
}

// StudentStatusResponse reports a status change and the enrollments it cascaded to.
type StudentStatusResponse struct {
	Student             models.Student `json:"student"`
	EnrollmentsAffected int            `json:"enrollments_affected"`
}

// EnrollRequest enrolls a student into a class.
type EnrollRequest struct {
	StudentID string                  `json:"student_id" validate:"required"`
	ClassID   string                  `json:"class_id" validate:"required"`
	Status    models.EnrollmentStatus `json:"status" validate:"omitempty,oneof=enrolled trial monitoring"`
}

// EnrollmentStatusRequest changes the status of a single enrollment.
type EnrollmentStatusRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required,oneof=enrolled monitoring trial locked inactive withdrawn"`
}

// ClassRequest creates or updates a class group.
type ClassRequest struct {
	Name  string  `json:"name" validate:"required,max=100"`
	Stage int     `json:"stage" validate:"required,min=1"`
	Notes *string `json:"notes"`
}

// ClassRoster groups a class's enrollments by status.
type ClassRoster struct {
	Class    models.ClassGroup                                     `json:"class"`
	ByStatus map[models.EnrollmentStatus][]models.EnrollmentDetail `json:"by_status"`
	Sessions []models.ClassSession                                 `json:"sessions"`
}

// TeacherRequest registers a teacher.
type TeacherRequest struct {
	FullName string  `json:"full_name" validate:"required,max=255"`
	Phone    *string `json:"phone" validate:"omitempty,max=20"`
}
