package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/escola-backoffice/internal/models"
)

// ReportRepository runs read-only reporting queries.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// StudentsWithOpenCharges lists students owing money, largest balance first.
func (r *ReportRepository) StudentsWithOpenCharges(ctx context.Context) ([]models.OpenChargeStudent, error) {
	const query = `SELECT s.id AS student_id, s.full_name AS student_name, COUNT(ch.id) AS open_charges,
        SUM(ch.amount - ch.amount_paid) AS outstanding, MIN(ch.due_date) AS oldest_due
        FROM charges ch
        JOIN students s ON s.id = ch.student_id
        WHERE ch.status = ANY($1)
        GROUP BY s.id, s.full_name
        ORDER BY outstanding DESC, s.full_name`
	var rows []models.OpenChargeStudent
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(chargeStatusStrings(models.OpenChargeStatuses))); err != nil {
		return nil, fmt.Errorf("students with open charges: %w", err)
	}
	return rows, nil
}

// TeacherWeeklyLessons counts sessions per teacher and ISO week for lesson dates in [from, to].
func (r *ReportRepository) TeacherWeeklyLessons(ctx context.Context, from, to time.Time) ([]models.TeacherWeekLessons, error) {
	const query = `SELECT t.id AS teacher_id, t.full_name AS teacher_name,
        CAST(EXTRACT(ISOYEAR FROM cs.lesson_date) AS INT) AS iso_year,
        CAST(EXTRACT(WEEK FROM cs.lesson_date) AS INT) AS iso_week,
        COUNT(*) AS lessons
        FROM class_sessions cs
        JOIN teachers t ON t.id = cs.teacher_id
        WHERE cs.lesson_date BETWEEN $1 AND $2
        GROUP BY t.id, t.full_name, iso_year, iso_week
        ORDER BY t.full_name, iso_year, iso_week`
	var rows []models.TeacherWeekLessons
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("teacher weekly lessons: %w", err)
	}
	return rows, nil
}
