package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/escola-backoffice/internal/models"
)

const chargeColumns = `ch.id, ch.student_id, ch.contract_id, ch.kind, ch.description, ch.amount, ch.amount_paid,
        ch.reference_month, ch.due_date, ch.paid_date, ch.status, ch.created_at, ch.updated_at`

// ChargeRepository persists charges.
type ChargeRepository struct {
	db *sqlx.DB
}

// NewChargeRepository constructs a ChargeRepository.
func NewChargeRepository(db *sqlx.DB) *ChargeRepository {
	return &ChargeRepository{db: db}
}

func (r *ChargeRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns charges matching the filter, oldest due date first.
func (r *ChargeRepository) List(ctx context.Context, filter models.ChargeFilter) ([]models.ChargeDetail, int, error) {
	base, args := chargeFilterClause(filter)
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s, s.full_name AS student_name %s ORDER BY ch.due_date ASC, ch.created_at ASC LIMIT %d OFFSET %d", chargeColumns, base, size, (page-1)*size)

	var charges []models.ChargeDetail
	if err := r.db.SelectContext(ctx, &charges, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list charges: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count charges: %w", err)
	}
	return charges, total, nil
}

// ListAll returns every charge matching the filter without pagination, for exports.
func (r *ChargeRepository) ListAll(ctx context.Context, filter models.ChargeFilter) ([]models.ChargeDetail, error) {
	base, args := chargeFilterClause(filter)
	query := fmt.Sprintf("SELECT %s, s.full_name AS student_name %s ORDER BY ch.reference_month ASC, ch.due_date ASC", chargeColumns, base)
	var charges []models.ChargeDetail
	if err := r.db.SelectContext(ctx, &charges, query, args...); err != nil {
		return nil, fmt.Errorf("list charges for export: %w", err)
	}
	return charges, nil
}

func chargeFilterClause(filter models.ChargeFilter) (string, []interface{}) {
	base := "FROM charges ch JOIN students s ON s.id = ch.student_id"
	var conditions []string
	var args []interface{}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("ch.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ContractID != "" {
		conditions = append(conditions, fmt.Sprintf("ch.contract_id = $%d", len(args)+1))
		args = append(args, filter.ContractID)
	}
	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("ch.kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, fmt.Sprintf("ch.status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(chargeStatusStrings(filter.Statuses)))
	}
	if filter.MonthFrom != nil {
		conditions = append(conditions, fmt.Sprintf("ch.reference_month >= $%d", len(args)+1))
		args = append(args, *filter.MonthFrom)
	}
	if filter.MonthTo != nil {
		conditions = append(conditions, fmt.Sprintf("ch.reference_month <= $%d", len(args)+1))
		args = append(args, *filter.MonthTo)
	}
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}
	return base, args
}

// FindByID returns a charge by id.
func (r *ChargeRepository) FindByID(ctx context.Context, id string) (*models.Charge, error) {
	query := "SELECT " + chargeColumns + " FROM charges ch WHERE ch.id = $1"
	var charge models.Charge
	if err := r.db.GetContext(ctx, &charge, query, id); err != nil {
		return nil, err
	}
	return &charge, nil
}

// LockByID loads a charge holding a row lock for the rest of the transaction.
func (r *ChargeRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Charge, error) {
	query := "SELECT " + chargeColumns + " FROM charges ch WHERE ch.id = $1 FOR UPDATE"
	var charge models.Charge
	if err := sqlx.GetContext(ctx, r.exec(exec), &charge, query, id); err != nil {
		return nil, err
	}
	return &charge, nil
}

// Create inserts a charge. It reports false when a contract charge for the same kind and
// month already exists.
func (r *ChargeRepository) Create(ctx context.Context, exec sqlx.ExtContext, charge *models.Charge) (bool, error) {
	if charge.ID == "" {
		charge.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	charge.CreatedAt = now
	charge.UpdatedAt = now
	const query = `INSERT INTO charges (id, student_id, contract_id, kind, description, amount, amount_paid, reference_month, due_date,
        paid_date, status, created_at, updated_at)
        VALUES (:id, :student_id, :contract_id, :kind, :description, :amount, :amount_paid, :reference_month, :due_date,
        :paid_date, :status, :created_at, :updated_at)
        ON CONFLICT DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, charge)
	if err != nil {
		return false, fmt.Errorf("create charge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create charge rows: %w", err)
	}
	return n > 0, nil
}

// UpdateSettlement stores amount paid, status and paid date.
func (r *ChargeRepository) UpdateSettlement(ctx context.Context, exec sqlx.ExtContext, charge *models.Charge) error {
	charge.UpdatedAt = time.Now().UTC()
	const query = `UPDATE charges SET amount_paid = $2, status = $3, paid_date = $4, updated_at = $5 WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, charge.ID, charge.AmountPaid, charge.Status, charge.PaidDate, charge.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update charge settlement: %w", err)
	}
	return requireAffected(res)
}

// ExistsForMonth reports whether the contract already has a charge of the kind for the month.
func (r *ChargeRepository) ExistsForMonth(ctx context.Context, exec sqlx.ExtContext, contractID string, kind models.ChargeKind, month time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM charges WHERE contract_id = $1 AND kind = $2 AND reference_month = $3)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, contractID, kind, month); err != nil {
		return false, fmt.Errorf("check charge month: %w", err)
	}
	return exists, nil
}

// CountByKind counts the contract charges of a kind.
func (r *ChargeRepository) CountByKind(ctx context.Context, exec sqlx.ExtContext, contractID string, kind models.ChargeKind) (int, error) {
	const query = `SELECT COUNT(*) FROM charges WHERE contract_id = $1 AND kind = $2`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, contractID, kind); err != nil {
		return 0, fmt.Errorf("count charges: %w", err)
	}
	return count, nil
}

// LockOpenByStudent returns the student's open charges, oldest due date first, holding row locks.
func (r *ChargeRepository) LockOpenByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) ([]models.Charge, error) {
	query := "SELECT " + chargeColumns + ` FROM charges ch
        WHERE ch.student_id = $1 AND ch.status = ANY($2)
        ORDER BY ch.due_date ASC, ch.created_at ASC
        FOR UPDATE`
	var charges []models.Charge
	if err := sqlx.SelectContext(ctx, r.exec(exec), &charges, query, studentID, pq.Array(chargeStatusStrings(models.OpenChargeStatuses))); err != nil {
		return nil, fmt.Errorf("list open charges: %w", err)
	}
	return charges, nil
}

// CancelPendingAfter cancels the contract's pending charges due after the date.
func (r *ChargeRepository) CancelPendingAfter(ctx context.Context, exec sqlx.ExtContext, contractID string, after time.Time) (int64, error) {
	const query = `UPDATE charges SET status = $3, updated_at = $4 WHERE contract_id = $1 AND status = $5 AND due_date > $2`
	res, err := r.exec(exec).ExecContext(ctx, query, contractID, after, models.ChargeStatusCancelled, time.Now().UTC(), models.ChargeStatusPending)
	if err != nil {
		return 0, fmt.Errorf("cancel pending charges: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel pending charges rows: %w", err)
	}
	return n, nil
}

// MarkOverdue flags pending charges whose due date has passed.
func (r *ChargeRepository) MarkOverdue(ctx context.Context, today time.Time) (int64, error) {
	const query = `UPDATE charges SET status = $2, updated_at = $3 WHERE status = $4 AND due_date < $1`
	res, err := r.db.ExecContext(ctx, query, today, models.ChargeStatusOverdue, time.Now().UTC(), models.ChargeStatusPending)
	if err != nil {
		return 0, fmt.Errorf("mark overdue charges: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark overdue rows: %w", err)
	}
	return n, nil
}

func chargeStatusStrings(statuses []models.ChargeStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
