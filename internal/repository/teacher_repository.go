package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/escola-backoffice/internal/models"
)

// TeacherRepository manages persistence for teachers.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns teachers ordered by name.
func (r *TeacherRepository) List(ctx context.Context, activeOnly bool) ([]models.Teacher, error) {
	query := `SELECT id, full_name, phone, active, created_at FROM teachers`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY full_name`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// FindByID returns a teacher by id.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	const query = `SELECT id, full_name, phone, active, created_at FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// Create inserts a teacher.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	teacher.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO teachers (id, full_name, phone, active, created_at) VALUES (:id, :full_name, :phone, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}
