package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/escola-backoffice/internal/models"
)

const alertColumns = `a.id, a.student_id, a.class_id, a.streak_start, a.absence_count, a.status, a.resolution_note, a.resolved_at, a.created_at`

// AbsenceAlertRepository persists absence alerts.
type AbsenceAlertRepository struct {
	db *sqlx.DB
}

// NewAbsenceAlertRepository constructs an AbsenceAlertRepository.
func NewAbsenceAlertRepository(db *sqlx.DB) *AbsenceAlertRepository {
	return &AbsenceAlertRepository{db: db}
}

func (r *AbsenceAlertRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns an alert by id.
func (r *AbsenceAlertRepository) FindByID(ctx context.Context, id string) (*models.AbsenceAlert, error) {
	query := "SELECT " + alertColumns + " FROM absence_alerts a WHERE a.id = $1"
	var alert models.AbsenceAlert
	if err := r.db.GetContext(ctx, &alert, query, id); err != nil {
		return nil, err
	}
	return &alert, nil
}

// FindPendingByStudent returns the student's pending alert.
func (r *AbsenceAlertRepository) FindPendingByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.AbsenceAlert, error) {
	query := "SELECT " + alertColumns + " FROM absence_alerts a WHERE a.student_id = $1 AND a.status = $2 FOR UPDATE"
	var alert models.AbsenceAlert
	if err := sqlx.GetContext(ctx, r.exec(exec), &alert, query, studentID, models.AbsenceAlertPending); err != nil {
		return nil, err
	}
	return &alert, nil
}

// Create inserts a pending alert. It reports false when the student already has one.
func (r *AbsenceAlertRepository) Create(ctx context.Context, exec sqlx.ExtContext, alert *models.AbsenceAlert) (bool, error) {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if alert.Status == "" {
		alert.Status = models.AbsenceAlertPending
	}
	const query = `INSERT INTO absence_alerts (id, student_id, class_id, streak_start, absence_count, status, created_at)
        VALUES (:id, :student_id, :class_id, :streak_start, :absence_count, :status, :created_at)
        ON CONFLICT (student_id) WHERE status = 'pending' DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, alert)
	if err != nil {
		return false, fmt.Errorf("create absence alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create absence alert rows: %w", err)
	}
	return n > 0, nil
}

// UpdateCount stores a longer streak on a pending alert.
func (r *AbsenceAlertRepository) UpdateCount(ctx context.Context, exec sqlx.ExtContext, id string, count int, classID *string) error {
	const query = `UPDATE absence_alerts SET absence_count = $2, class_id = COALESCE($3, class_id) WHERE id = $1 AND status = $4`
	res, err := r.exec(exec).ExecContext(ctx, query, id, count, classID, models.AbsenceAlertPending)
	if err != nil {
		return fmt.Errorf("update absence alert: %w", err)
	}
	return requireAffected(res)
}

// Resolve closes a pending alert.
func (r *AbsenceAlertRepository) Resolve(ctx context.Context, exec sqlx.ExtContext, id, note string, at time.Time) error {
	const query = `UPDATE absence_alerts SET status = $2, resolution_note = $3, resolved_at = $4 WHERE id = $1 AND status = $5`
	res, err := r.exec(exec).ExecContext(ctx, query, id, models.AbsenceAlertResolved, note, at, models.AbsenceAlertPending)
	if err != nil {
		return fmt.Errorf("resolve absence alert: %w", err)
	}
	return requireAffected(res)
}

// ListPending returns pending alerts with display names, longest streak first.
func (r *AbsenceAlertRepository) ListPending(ctx context.Context) ([]models.AbsenceAlertDetail, error) {
	query := "SELECT " + alertColumns + `, s.full_name AS student_name, c.name AS class_name
        FROM absence_alerts a
        JOIN students s ON s.id = a.student_id
        LEFT JOIN class_groups c ON c.id = a.class_id
        WHERE a.status = $1
        ORDER BY a.absence_count DESC, a.streak_start ASC`
	var alerts []models.AbsenceAlertDetail
	if err := r.db.SelectContext(ctx, &alerts, query, models.AbsenceAlertPending); err != nil {
		return nil, fmt.Errorf("list pending absence alerts: %w", err)
	}
	return alerts, nil
}
