package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/escola-backoffice/internal/models"
)

// ClassRepository persists class groups.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns every class group ordered by stage and name.
func (r *ClassRepository) List(ctx context.Context) ([]models.ClassGroup, error) {
	const query = `SELECT id, name, stage, notes, created_at FROM class_groups ORDER BY stage, name`
	var classes []models.ClassGroup
	if err := r.db.SelectContext(ctx, &classes, query); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// FindByID returns a class group by id.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassGroup, error) {
	const query = `SELECT id, name, stage, notes, created_at FROM class_groups WHERE id = $1`
	var class models.ClassGroup
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// Create inserts a class group.
func (r *ClassRepository) Create(ctx context.Context, class *models.ClassGroup) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	class.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO class_groups (id, name, stage, notes, created_at) VALUES (:id, :name, :stage, :notes, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update stores name, stage and notes.
func (r *ClassRepository) Update(ctx context.Context, class *models.ClassGroup) error {
	const query = `UPDATE class_groups SET name = :name, stage = :stage, notes = :notes WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, class)
	if err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return requireAffected(res)
}
