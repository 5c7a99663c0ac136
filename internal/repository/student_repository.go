package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/escola-backoffice/internal/models"
)

const studentColumns = `s.id, s.full_name, s.cpf, s.email, s.phone, s.street, s.city, s.state, s.birth_date,
        s.enrolled_at, s.status, s.lesson_credits, s.created_at, s.updated_at`

// StudentRepository handles persistence of students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns students matching the filter along with the total count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students s WHERE 1=1"
	var args []interface{}

	if filter.Status != "" {
		base += fmt.Sprintf(" AND s.status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND (LOWER(s.full_name) LIKE $%d OR s.cpf LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.ClassID != "" {
		base += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM enrollments e WHERE e.student_id = s.id AND e.class_id = $%d)", len(args)+1)
		args = append(args, filter.ClassID)
	}

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY s.full_name ASC LIMIT %d OFFSET %d", studentColumns, base, size, (page-1)*size)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a student by id.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students s WHERE s.id = $1"
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsCPF reports whether another student already holds the CPF.
func (r *StudentRepository) ExistsCPF(ctx context.Context, cpf, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE cpf = $1"
	args := []interface{}{cpf}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check student cpf: %w", err)
	}
	return true, nil
}

// Create persists a new student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	if student.EnrolledAt.IsZero() {
		student.EnrolledAt = now.Truncate(24 * time.Hour)
	}
	if student.Status == "" {
		student.Status = models.StudentStatusActive
	}
	const query = `INSERT INTO students (id, full_name, cpf, email, phone, street, city, state, birth_date, enrolled_at, status, lesson_credits, created_at, updated_at)
        VALUES (:id, :full_name, :cpf, :email, :phone, :street, :city, :state, :birth_date, :enrolled_at, :status, :lesson_credits, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update stores registry fields. Status changes go through UpdateStatus.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET full_name = :full_name, cpf = :cpf, email = :email, phone = :phone, street = :street,
        city = :city, state = :state, birth_date = :birth_date, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return requireAffected(res)
}

// UpdateStatus sets the student lifecycle status.
func (r *StudentRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.StudentStatus) error {
	const query = `UPDATE students SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update student status: %w", err)
	}
	return requireAffected(res)
}

// AddLessonCredits increments the credit balance earned while a contract is locked.
func (r *StudentRepository) AddLessonCredits(ctx context.Context, exec sqlx.ExtContext, id string, credits int) error {
	const query = `UPDATE students SET lesson_credits = lesson_credits + $2, updated_at = $3 WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, id, credits, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add lesson credits: %w", err)
	}
	return requireAffected(res)
}

// requireAffected maps an update that touched nothing to sql.ErrNoRows.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
