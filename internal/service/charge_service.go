package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/models"
	"github.com/noah-isme/escola-backoffice/pkg/dates"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
)

type chargeRepository interface {
	List(ctx context.Context, filter models.ChargeFilter) ([]models.ChargeDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Charge, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Charge, error)
	Create(ctx context.Context, exec sqlx.ExtContext, charge *models.Charge) (bool, error)
	UpdateSettlement(ctx context.Context, exec sqlx.ExtContext, charge *models.Charge) error
	LockOpenByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) ([]models.Charge, error)
	MarkOverdue(ctx context.Context, today time.Time) (int64, error)
}

type chargeContractReader interface {
	FindByID(ctx context.Context, id string) (*models.Contract, error)
}

type lessonCreditWriter interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	AddLessonCredits(ctx context.Context, exec sqlx.ExtContext, id string, credits int) error
}

// ChargeServiceParams groups ChargeService dependencies.
type ChargeServiceParams struct {
	Repo      chargeRepository
	Contracts chargeContractReader
	Students  lessonCreditWriter
	Tx        txProvider
	Cache     *CacheService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// ChargeService is the billing ledger: charge creation, settlement and payment application.
type ChargeService struct {
	repo      chargeRepository
	contracts chargeContractReader
	students  lessonCreditWriter
	tx        txProvider
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewChargeService constructs a ChargeService.
func NewChargeService(params ChargeServiceParams) *ChargeService {
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChargeService{
		repo:      params.Repo,
		contracts: params.Contracts,
		students:  params.Students,
		tx:        params.Tx,
		cache:     params.Cache,
		validator: validate,
		logger:    logger,
	}
}

// List returns charges. Students only see their own.
func (s *ChargeService) List(ctx context.Context, actor models.Actor, filter models.ChargeFilter) ([]models.ChargeDetail, *models.Pagination, error) {
	if !actor.Is(models.RoleAdmin) {
		if actor.Role != models.RoleStudent || actor.StudentID == "" {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient role for this operation")
		}
		filter.StudentID = actor.StudentID
	}
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	charges, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list charges")
	}
	return charges, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one charge.
func (s *ChargeService) Get(ctx context.Context, actor models.Actor, id string) (*models.Charge, error) {
	charge, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "charge not found", "failed to load charge")
	}
	if !actor.Is(models.RoleAdmin) && !actor.IsStudent(charge.StudentID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "charge belongs to another student")
	}
	return charge, nil
}

// CreateCharge registers a one-off material or other charge.
func (s *ChargeService) CreateCharge(ctx context.Context, actor models.Actor, req dto.CreateChargeRequest) (*models.Charge, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid charge payload")
	}
	if !req.Amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}
	due, err := dates.Parse(req.DueDate)
	if err != nil {
		return nil, validationError(err, "invalid due date")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		return nil, repoError(err, "student not found", "failed to load student")
	}

	charge := &models.Charge{
		StudentID:      req.StudentID,
		Kind:           req.Kind,
		Description:    req.Description,
		Amount:         req.Amount.Round(2),
		AmountPaid:     decimal.Zero,
		ReferenceMonth: dates.MonthStart(due),
		DueDate:        due,
		Status:         models.ChargeStatusPending,
	}
	if _, err := s.repo.Create(ctx, nil, charge); err != nil {
		return nil, internalError(err, "failed to create charge")
	}
	s.invalidateDashboard(ctx)
	return charge, nil
}

// SellMaterial splits a material sale into monthly installments starting this month.
func (s *ChargeService) SellMaterial(ctx context.Context, actor models.Actor, req dto.SellMaterialRequest, today time.Time) ([]models.Charge, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid material sale payload")
	}
	if !req.Total.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "total must be positive")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		return nil, repoError(err, "student not found", "failed to load student")
	}

	today = dates.Day(today)
	installment := req.Total.Div(decimal.NewFromInt(int64(req.Installments))).Round(2)
	charges := make([]models.Charge, 0, req.Installments)
	err := withinTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		for i := 0; i < req.Installments; i++ {
			month := dates.MonthStart(dates.AddMonths(today, i))
			charge := models.Charge{
				StudentID:      req.StudentID,
				Kind:           models.ChargeKindMaterial,
				Description:    fmt.Sprintf("%s (%d/%d)", req.Description, i+1, req.Installments),
				Amount:         installment,
				AmountPaid:     decimal.Zero,
				ReferenceMonth: month,
				DueDate:        dates.MonthEnd(month),
				Status:         models.ChargeStatusPending,
			}
			if _, err := s.repo.Create(ctx, tx, &charge); err != nil {
				return internalError(err, "failed to create material charge")
			}
			charges = append(charges, charge)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateDashboard(ctx)
	return charges, nil
}

// SettleCharge marks a charge fully paid on today. Paid charges are left untouched and
// cancelled ones cannot be settled.
func (s *ChargeService) SettleCharge(ctx context.Context, actor models.Actor, chargeID string, today time.Time) (*models.Charge, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	today = dates.Day(today)

	var settled *models.Charge
	err := withinTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		charge, err := s.repo.LockByID(ctx, tx, chargeID)
		if err != nil {
			return repoError(err, "charge not found", "failed to load charge")
		}
		if _, err := s.settle(ctx, tx, charge, today); err != nil {
			return err
		}
		settled = charge
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateDashboard(ctx)
	return settled, nil
}

// BulkSettle settles several charges in one transaction. Already-paid charges are skipped.
func (s *ChargeService) BulkSettle(ctx context.Context, actor models.Actor, ids []string, today time.Time) (*dto.BulkSettleResult, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "charge_ids is required")
	}
	today = dates.Day(today)

	result := &dto.BulkSettleResult{Settled: []string{}, Skipped: []string{}}
	err := withinTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		for _, id := range ids {
			charge, err := s.repo.LockByID(ctx, tx, id)
			if err != nil {
				return repoError(err, fmt.Sprintf("charge %s not found", id), "failed to load charge")
			}
			changed, err := s.settle(ctx, tx, charge, today)
			if err != nil {
				return err
			}
			if changed {
				result.Settled = append(result.Settled, id)
			} else {
				result.Skipped = append(result.Skipped, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateDashboard(ctx)
	return result, nil
}

// ApplyPayment spreads amount over the student's open charges, oldest due date first. Each
// charge receives at most its remaining balance; whatever is left is reported as unapplied.
func (s *ChargeService) ApplyPayment(ctx context.Context, actor models.Actor, studentID string, amount decimal.Decimal, today time.Time) (*dto.PaymentResult, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	if !amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		return nil, repoError(err, "student not found", "failed to load student")
	}
	today = dates.Day(today)
	amount = amount.Round(2)

	result := &dto.PaymentResult{StudentID: studentID, Applied: decimal.Zero, Allocations: []dto.PaymentAllocation{}}
	err := withinTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		open, err := s.repo.LockOpenByStudent(ctx, tx, studentID)
		if err != nil {
			return internalError(err, "failed to load open charges")
		}
		left := amount
		for i := range open {
			if !left.IsPositive() {
				break
			}
			charge := &open[i]
			due := charge.Remaining()
			if !due.IsPositive() {
				continue
			}
			share := decimal.Min(left, due)
			charge.AmountPaid = charge.AmountPaid.Add(share)
			if charge.AmountPaid.GreaterThanOrEqual(charge.Amount) {
				charge.MarkPaid(today)
				if err := s.creditLockedTuition(ctx, tx, charge); err != nil {
					return err
				}
			} else {
				charge.Status = models.ChargeStatusPartial
			}
			if err := s.repo.UpdateSettlement(ctx, tx, charge); err != nil {
				return internalError(err, "failed to update charge")
			}
			left = left.Sub(share)
			result.Applied = result.Applied.Add(share)
			result.Allocations = append(result.Allocations, dto.PaymentAllocation{ChargeID: charge.ID, Amount: share, Status: charge.Status})
		}
		result.Unapplied = left
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Unapplied.IsPositive() {
		s.logger.Info("payment exceeded open balance",
			zap.String("student_id", studentID),
			zap.String("unapplied", result.Unapplied.StringFixed(2)))
	}
	s.invalidateDashboard(ctx)
	return result, nil
}

// MarkOverdue flags pending charges past their due date.
func (s *ChargeService) MarkOverdue(ctx context.Context, today time.Time) (int, error) {
	n, err := s.repo.MarkOverdue(ctx, dates.Day(today))
	if err != nil {
		return 0, internalError(err, "failed to mark overdue charges")
	}
	if n > 0 {
		s.invalidateDashboard(ctx)
	}
	return int(n), nil
}

// settle reports whether the charge changed.
func (s *ChargeService) settle(ctx context.Context, tx sqlx.ExtContext, charge *models.Charge, today time.Time) (bool, error) {
	switch charge.Status {
	case models.ChargeStatusPaid:
		return false, nil
	case models.ChargeStatusCancelled:
		return false, appErrors.Clone(appErrors.ErrInvalidTransition, "cancelled charges cannot be settled")
	}
	charge.MarkPaid(today)
	if err := s.repo.UpdateSettlement(ctx, tx, charge); err != nil {
		return false, internalError(err, "failed to settle charge")
	}
	if err := s.creditLockedTuition(ctx, tx, charge); err != nil {
		return false, err
	}
	return true, nil
}

// creditLockedTuition awards one lesson credit when a tuition charge of a locked contract is paid.
func (s *ChargeService) creditLockedTuition(ctx context.Context, tx sqlx.ExtContext, charge *models.Charge) error {
	if charge.Kind != models.ChargeKindTuition || charge.ContractID == nil || s.contracts == nil {
		return nil
	}
	contract, err := s.contracts.FindByID(ctx, *charge.ContractID)
	if err != nil {
		return repoError(err, "contract not found", "failed to load contract")
	}
	if contract.Status != models.ContractStatusLocked {
		return nil
	}
	if err := s.students.AddLessonCredits(ctx, tx, charge.StudentID, 1); err != nil {
		return repoError(err, "student not found", "failed to add lesson credit")
	}
	return nil
}

func (s *ChargeService) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, dashboardCachePattern)
}
