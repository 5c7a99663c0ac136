package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/escola-backoffice/internal/models"
)

const contractColumns = `c.id, c.student_id, c.plan, c.start_date, c.end_date, c.monthly_tuition, c.enrollment_fee,
        c.fee_installments, c.active, c.status, c.notes, c.cancelled_at, c.created_at, c.updated_at`

// ContractRepository persists billing contracts.
type ContractRepository struct {
	db *sqlx.DB
}

// NewContractRepository constructs a ContractRepository.
func NewContractRepository(db *sqlx.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

func (r *ContractRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns contracts filtered by student and status.
func (r *ContractRepository) List(ctx context.Context, filter models.ContractFilter) ([]models.ContractDetail, int, error) {
	base := "FROM contracts c JOIN students s ON s.id = c.student_id"
	var conditions []string
	var args []interface{}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("c.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s, s.full_name AS student_name %s ORDER BY c.start_date DESC LIMIT %d OFFSET %d", contractColumns, base, size, (page-1)*size)
	var contracts []models.ContractDetail
	if err := r.db.SelectContext(ctx, &contracts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list contracts: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count contracts: %w", err)
	}
	return contracts, total, nil
}

// FindByID returns a contract by id.
func (r *ContractRepository) FindByID(ctx context.Context, id string) (*models.Contract, error) {
	query := "SELECT " + contractColumns + " FROM contracts c WHERE c.id = $1"
	var contract models.Contract
	if err := r.db.GetContext(ctx, &contract, query, id); err != nil {
		return nil, err
	}
	return &contract, nil
}

// LockByID loads a contract holding a row lock for the rest of the transaction.
func (r *ContractRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Contract, error) {
	query := "SELECT " + contractColumns + " FROM contracts c WHERE c.id = $1 FOR UPDATE"
	var contract models.Contract
	if err := sqlx.GetContext(ctx, r.exec(exec), &contract, query, id); err != nil {
		return nil, err
	}
	return &contract, nil
}

// Create inserts a contract. Callers derive the end date first.
func (r *ContractRepository) Create(ctx context.Context, contract *models.Contract) error {
	if contract.ID == "" {
		contract.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	contract.CreatedAt = now
	contract.UpdatedAt = now
	const query = `INSERT INTO contracts (id, student_id, plan, start_date, end_date, monthly_tuition, enrollment_fee, fee_installments,
        active, status, notes, cancelled_at, created_at, updated_at)
        VALUES (:id, :student_id, :plan, :start_date, :end_date, :monthly_tuition, :enrollment_fee, :fee_installments,
        :active, :status, :notes, :cancelled_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, contract); err != nil {
		return fmt.Errorf("create contract: %w", err)
	}
	return nil
}

// Update stores the editable terms of a contract.
func (r *ContractRepository) Update(ctx context.Context, contract *models.Contract) error {
	contract.UpdatedAt = time.Now().UTC()
	const query = `UPDATE contracts SET plan = :plan, start_date = :start_date, end_date = :end_date, monthly_tuition = :monthly_tuition,
        enrollment_fee = :enrollment_fee, fee_installments = :fee_installments, notes = :notes, updated_at = :updated_at
        WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, contract)
	if err != nil {
		return fmt.Errorf("update contract: %w", err)
	}
	return requireAffected(res)
}

// UpdateState stores a state machine transition.
func (r *ContractRepository) UpdateState(ctx context.Context, exec sqlx.ExtContext, contract *models.Contract) error {
	contract.UpdatedAt = time.Now().UTC()
	const query = `UPDATE contracts SET status = $2, active = $3, cancelled_at = $4, updated_at = $5 WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, contract.ID, contract.Status, contract.Active, contract.CancelledAt, contract.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update contract state: %w", err)
	}
	return requireAffected(res)
}

// ListInForce returns contracts eligible for charge generation on asOf: active ones whose term
// covers the date, plus locked ones that have started.
func (r *ContractRepository) ListInForce(ctx context.Context, asOf time.Time) ([]models.Contract, error) {
	query := "SELECT " + contractColumns + ` FROM contracts c
        WHERE c.start_date <= $1
          AND ((c.active AND c.status = $2 AND (c.end_date IS NULL OR c.end_date >= $1)) OR c.status = $3)
        ORDER BY c.start_date, c.id`
	var contracts []models.Contract
	if err := r.db.SelectContext(ctx, &contracts, query, asOf, models.ContractStatusActive, models.ContractStatusLocked); err != nil {
		return nil, fmt.Errorf("list contracts in force: %w", err)
	}
	return contracts, nil
}

// ListExpiring returns active contracts ending within [from, to].
func (r *ContractRepository) ListExpiring(ctx context.Context, from, to time.Time) ([]models.ContractDetail, error) {
	query := "SELECT " + contractColumns + `, s.full_name AS student_name FROM contracts c
        JOIN students s ON s.id = c.student_id
        WHERE c.active AND c.status = $1 AND c.end_date BETWEEN $2 AND $3
        ORDER BY c.end_date`
	var contracts []models.ContractDetail
	if err := r.db.SelectContext(ctx, &contracts, query, models.ContractStatusActive, from, to); err != nil {
		return nil, fmt.Errorf("list expiring contracts: %w", err)
	}
	return contracts, nil
}
