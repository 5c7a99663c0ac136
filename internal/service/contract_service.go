package service

import (
	"context"
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

const (
	defaultCancelPenaltyRate  = 0.5
	defaultExpiringWindowDays = 30
	cancelPenaltyDescription  = "Multa rescisória"
)

type contractRepository interface {
	List(ctx context.Context, filter models.ContractFilter) ([]models.ContractDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Contract, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Contract, error)
	Create(ctx context.Context, contract *models.Contract) error
	Update(ctx context.Context, contract *models.Contract) error
	UpdateState(ctx context.Context, exec sqlx.ExtContext, contract *models.Contract) error
	ListExpiring(ctx context.Context, from, to time.Time) ([]models.ContractDetail, error)
}

type contractStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.StudentStatus) error
}

type contractEnrollmentRepository interface {
	TransitionByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string, from []models.EnrollmentStatus, target models.EnrollmentStatus) (int64, error)
}

type contractChargeRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, charge *models.Charge) (bool, error)
	CancelPendingAfter(ctx context.Context, exec sqlx.ExtContext, contractID string, after time.Time) (int64, error)
}

// ContractServiceConfig tunes cancellation and renewal behaviour.
type ContractServiceConfig struct {
	CancelPenaltyRate  float64
	ExpiringWindowDays int
}

// ContractServiceParams groups ContractService dependencies.
type ContractServiceParams struct {
	Repo        contractRepository
	Students    contractStudentRepository
	Enrollments contractEnrollmentRepository
	Charges     contractChargeRepository
	Tx          txProvider
	Cache       *CacheService
	Validator   *validator.Validate
	Logger      *zap.Logger
	Config      ContractServiceConfig
}

// ContractService runs the contract state machine: active <-> locked -> cancelled.
type ContractService struct {
	repo        contractRepository
	students    contractStudentRepository
	enrollments contractEnrollmentRepository
	charges     contractChargeRepository
	tx          txProvider
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
	penaltyRate decimal.Decimal
	window      int
}

// NewContractService constructs a ContractService.
func NewContractService(params ContractServiceParams) *ContractService {
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rate := params.Config.CancelPenaltyRate
	if rate <= 0 {
		rate = defaultCancelPenaltyRate
	}
	window := params.Config.ExpiringWindowDays
	if window <= 0 {
		window = defaultExpiringWindowDays
	}
	return &ContractService{
		repo:        params.Repo,
		students:    params.Students,
		enrollments: params.Enrollments,
		charges:     params.Charges,
		tx:          params.Tx,
		cache:       params.Cache,
		validator:   validate,
		logger:      logger,
		penaltyRate: decimal.NewFromFloat(rate),
		window:      window,
	}
}

// List returns contracts.
func (s *ContractService) List(ctx context.Context, actor models.Actor, filter models.ContractFilter) ([]models.ContractDetail, *models.Pagination, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, nil, err
	}
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	contracts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list contracts")
	}
	return contracts, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a contract by id.
func (s *ContractService) Get(ctx context.Context, actor models.Actor, id string) (*models.Contract, error) {
	contract, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "contract not found", "failed to load contract")
	}
	if !actor.Is(models.RoleAdmin) && !actor.IsStudent(contract.StudentID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "contract belongs to another student")
	}
	return contract, nil
}

// Create registers a new active contract.
func (s *ContractService) Create(ctx context.Context, actor models.Actor, req dto.ContractRequest) (*models.Contract, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	contract := &models.Contract{Active: true, Status: models.ContractStatusActive}
	if err := s.applyRequest(contract, req); err != nil {
		return nil, err
	}
	if _, err := s.students.FindByID(ctx, contract.StudentID); err != nil {
		return nil, repoError(err, "student not found", "failed to load student")
	}
	contract.DeriveEndDate()
	if err := s.repo.Create(ctx, contract); err != nil {
		return nil, internalError(err, "failed to create contract")
	}
	s.invalidateDashboard(ctx)
	return contract, nil
}

// Update edits the terms of a contract that is not cancelled. The end date is always re-derived.
func (s *ContractService) Update(ctx context.Context, actor models.Actor, id string, req dto.ContractRequest) (*models.Contract, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	contract, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "contract not found", "failed to load contract")
	}
	if contract.Status == models.ContractStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cancelled contracts cannot be edited")
	}
	if req.StudentID != contract.StudentID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "contracts cannot move between students")
	}
	if err := s.applyRequest(contract, req); err != nil {
		return nil, err
	}
	contract.DeriveEndDate()
	if err := s.repo.Update(ctx, contract); err != nil {
		return nil, repoError(err, "contract not found", "failed to update contract")
	}
	s.invalidateDashboard(ctx)
	return contract, nil
}

// Lock suspends an active contract together with the student and their attending enrollments.
func (s *ContractService) Lock(ctx context.Context, actor models.Actor, id string) (*models.Contract, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	var locked *models.Contract
	err := withinTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		contract, err := s.repo.LockByID(ctx, tx, id)
		if err != nil {
			return repoError(err, "contract not found", "failed to load contract")
		}
		if contract.Status != models.ContractStatusActive {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "only active contracts can be locked")
		}
		contract.Status = models.ContractStatusLocked
		if err := s.repo.UpdateState(ctx, tx, contract); err != nil {
			return internalError(err, "failed to lock contract")
		}
		if err := s.students.UpdateStatus(ctx, tx, contract.StudentID, models.StudentStatusLocked); err != nil {
			return repoError(err, "student not found", "failed to lock student")
		}
		from := []models.EnrollmentStatus{models.EnrollmentStatusEnrolled, models.EnrollmentStatusMonitoring}
		if _, err := s.enrollments.TransitionByStudent(ctx, tx, contract.StudentID, from, models.EnrollmentStatusLocked); err != nil {
			return internalError(err, "failed to lock enrollments")
		}
		locked = contract
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("contract locked", zap.String("contract_id", id), zap.String("actor", actor.UserID))
	s.invalidateDashboard(ctx)
	return locked, nil
}

// Unlock reverses Lock.
func (s *ContractService) Unlock(ctx context.Context, actor models.Actor, id string) (*models.Contract, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	var unlocked *models.Contract
	err := withinTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		contract, err := s.repo.LockByID(ctx, tx, id)
		if err != nil {
			return repoError(err, "contract not found", "failed to load contract")
		}
		if contract.Status != models.ContractStatusLocked {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "only locked contracts can be unlocked")
		}
		contract.Status = models.ContractStatusActive
		contract.Active = true
		if err := s.repo.UpdateState(ctx, tx, contract); err != nil {
			return internalError(err, "failed to unlock contract")
		}
		if err := s.students.UpdateStatus(ctx, tx, contract.StudentID, models.StudentStatusActive); err != nil {
			return repoError(err, "student not found", "failed to unlock student")
		}
		from := []models.EnrollmentStatus{models.EnrollmentStatusLocked}
		if _, err := s.enrollments.TransitionByStudent(ctx, tx, contract.StudentID, from, models.EnrollmentStatusEnrolled); err != nil {
			return internalError(err, "failed to unlock enrollments")
		}
		unlocked = contract
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("contract unlocked", zap.String("contract_id", id), zap.String("actor", actor.UserID))
	s.invalidateDashboard(ctx)
	return unlocked, nil
}

// Cancel terminates a contract, charging the early-exit penalty and cancelling future pending
// charges. It returns the penalty amount.
func (s *ContractService) Cancel(ctx context.Context, actor models.Actor, id string, today time.Time) (decimal.Decimal, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return decimal.Zero, err
	}
	today = dates.Day(today)

	penalty := decimal.Zero
	err := withinTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		contract, err := s.repo.LockByID(ctx, tx, id)
		if err != nil {
			return repoError(err, "contract not found", "failed to load contract")
		}
		if contract.Status == models.ContractStatusCancelled {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "contract is already cancelled")
		}

		penalty = s.Penalty(contract, today)
		if penalty.IsPositive() {
			contractID := contract.ID
			charge := &models.Charge{
				StudentID:      contract.StudentID,
				ContractID:     &contractID,
				Kind:           models.ChargeKindOther,
				Description:    cancelPenaltyDescription,
				Amount:         penalty,
				AmountPaid:     decimal.Zero,
				ReferenceMonth: dates.MonthStart(today),
				DueDate:        today,
				Status:         models.ChargeStatusPending,
			}
			if _, err := s.charges.Create(ctx, tx, charge); err != nil {
				return internalError(err, "failed to create penalty charge")
			}
		}

		cancelled, err := s.charges.CancelPendingAfter(ctx, tx, contract.ID, today)
		if err != nil {
			return internalError(err, "failed to cancel future charges")
		}

		contract.Status = models.ContractStatusCancelled
		contract.Active = false
		contract.CancelledAt = &today
		if err := s.repo.UpdateState(ctx, tx, contract); err != nil {
			return internalError(err, "failed to cancel contract")
		}
		s.logger.Info("contract cancelled",
			zap.String("contract_id", contract.ID),
			zap.String("penalty", penalty.StringFixed(2)),
			zap.Int64("cancelled_charges", cancelled))
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	s.invalidateDashboard(ctx)
	return penalty, nil
}

// Penalty computes rate x whole months remaining x monthly tuition, rounded to cents.
func (s *ContractService) Penalty(contract *models.Contract, today time.Time) decimal.Decimal {
	if contract.EndDate == nil {
		return decimal.Zero
	}
	months := dates.WholeMonthsBetween(today, *contract.EndDate)
	if months <= 0 {
		return decimal.Zero
	}
	return s.penaltyRate.Mul(decimal.NewFromInt(int64(months))).Mul(contract.MonthlyTuition).Round(2)
}

// ListExpiring returns active contracts ending within the renewal window.
func (s *ContractService) ListExpiring(ctx context.Context, actor models.Actor, today time.Time, withinDays int) ([]models.ContractDetail, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if withinDays <= 0 {
		withinDays = s.window
	}
	today = dates.Day(today)
	contracts, err := s.repo.ListExpiring(ctx, today, today.AddDate(0, 0, withinDays))
	if err != nil {
		return nil, internalError(err, "failed to list expiring contracts")
	}
	return contracts, nil
}

func (s *ContractService) applyRequest(contract *models.Contract, req dto.ContractRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid contract payload")
	}
	start, err := dates.Parse(req.StartDate)
	if err != nil {
		return validationError(err, "invalid start date")
	}
	if req.MonthlyTuition.IsNegative() || req.EnrollmentFee.IsNegative() {
		return appErrors.Clone(appErrors.ErrValidation, "amounts cannot be negative")
	}
	installments := req.FeeInstallments
	if installments == 0 {
		installments = 1
	}
	contract.StudentID = req.StudentID
	contract.Plan = req.Plan
	contract.StartDate = start
	contract.MonthlyTuition = req.MonthlyTuition.Round(2)
	contract.EnrollmentFee = req.EnrollmentFee.Round(2)
	contract.FeeInstallments = installments
	contract.Notes = req.Notes
	return nil
}

func (s *ContractService) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, dashboardCachePattern)
}
