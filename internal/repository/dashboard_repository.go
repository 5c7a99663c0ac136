package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/escola-backoffice/internal/models"
)

// DashboardRepository runs the aggregate queries behind the admin dashboard.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// ChargeTotals sums the month's charges in the given statuses.
func (r *DashboardRepository) ChargeTotals(ctx context.Context, filter models.DashboardFilter, statuses []models.ChargeStatus) (models.ChargeTotals, error) {
	conditions := []string{"ch.reference_month = $1", "ch.status = ANY($2)"}
	args := []interface{}{filter.Month, pq.Array(chargeStatusStrings(statuses))}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		conditions = append(conditions, fmt.Sprintf("ch.kind = $%d", len(args)))
	}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM enrollments e WHERE e.student_id = ch.student_id AND e.class_id = $%d)", len(args)))
	}
	query := `SELECT COUNT(*) AS count, COALESCE(SUM(ch.amount), 0) AS amount, COALESCE(SUM(ch.amount_paid), 0) AS paid
        FROM charges ch WHERE ` + strings.Join(conditions, " AND ")

	var totals models.ChargeTotals
	if err := r.db.GetContext(ctx, &totals, query, args...); err != nil {
		return models.ChargeTotals{}, fmt.Errorf("dashboard charge totals: %w", err)
	}
	return totals, nil
}

// CountPendingAlerts returns the number of open absence alerts.
func (r *DashboardRepository) CountPendingAlerts(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM absence_alerts WHERE status = $1`, models.AbsenceAlertPending); err != nil {
		return 0, fmt.Errorf("count pending alerts: %w", err)
	}
	return count, nil
}

// CountEnrollments returns how many enrollments hold the status, optionally within one class.
func (r *DashboardRepository) CountEnrollments(ctx context.Context, status models.EnrollmentStatus, classID string) (int, error) {
	query := `SELECT COUNT(*) FROM enrollments WHERE status = $1`
	args := []interface{}{status}
	if classID != "" {
		query += " AND class_id = $2"
		args = append(args, classID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}
