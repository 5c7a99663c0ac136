package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-backoffice/internal/models"
	"github.com/noah-isme/escola-backoffice/pkg/dates"
)

type invoiceContractRepository interface {
	ListInForce(ctx context.Context, asOf time.Time) ([]models.Contract, error)
}

type invoiceChargeRepository interface {
	ExistsForMonth(ctx context.Context, exec sqlx.ExtContext, contractID string, kind models.ChargeKind, month time.Time) (bool, error)
	CountByKind(ctx context.Context, exec sqlx.ExtContext, contractID string, kind models.ChargeKind) (int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, charge *models.Charge) (bool, error)
}

// InvoiceServiceConfig tunes charge generation.
type InvoiceServiceConfig struct {
	// PaidCutover marks generated months before its month as already paid. Zero disables it.
	PaidCutover time.Time
}

// ChargeGenerationResult summarises one generation run.
type ChargeGenerationResult struct {
	AsOf      time.Time       `json:"as_of"`
	Contracts int             `json:"contracts"`
	Created   []models.Charge `json:"created"`
	Failed    []string        `json:"failed,omitempty"`
}

// CreatedCount returns how many charges the run inserted.
func (r *ChargeGenerationResult) CreatedCount() int {
	if r == nil {
		return 0
	}
	return len(r.Created)
}

// InvoiceService generates monthly tuition and enrollment-fee charges for contracts in force.
type InvoiceService struct {
	contracts invoiceContractRepository
	charges   invoiceChargeRepository
	tx        txProvider
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	cutover   time.Time
}

// NewInvoiceService constructs an InvoiceService.
func NewInvoiceService(contracts invoiceContractRepository, charges invoiceChargeRepository, tx txProvider, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg InvoiceServiceConfig) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	cutover := cfg.PaidCutover
	if !cutover.IsZero() {
		cutover = dates.MonthStart(cutover)
	}
	return &InvoiceService{
		contracts: contracts,
		charges:   charges,
		tx:        tx,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		cutover:   cutover,
	}
}

// ResolveChargeStatus decides the initial status of a generated charge from dates alone.
func ResolveChargeStatus(ref, asOf, cutover time.Time) models.ChargeStatus {
	refIdx := dates.MonthIndex(ref)
	if !cutover.IsZero() && refIdx < dates.MonthIndex(cutover) {
		return models.ChargeStatusPaid
	}
	if refIdx < dates.MonthIndex(asOf) {
		return models.ChargeStatusOverdue
	}
	return models.ChargeStatusPending
}

// GenerateCharges creates the missing charges of every contract in force on asOf. Re-running it
// with the same date creates nothing new. Each contract is processed in its own transaction; a
// failing contract does not stop the others and is reported in the returned error.
func (s *InvoiceService) GenerateCharges(ctx context.Context, asOf time.Time) (*ChargeGenerationResult, error) {
	asOf = dates.Day(asOf)
	start := time.Now()

	contracts, err := s.contracts.ListInForce(ctx, asOf)
	if err != nil {
		return nil, internalError(err, "failed to list contracts in force")
	}

	result := &ChargeGenerationResult{AsOf: asOf, Contracts: len(contracts), Created: []models.Charge{}}
	var failures []error
	for i := range contracts {
		contract := &contracts[i]
		if !contract.InForce(asOf) {
			continue
		}
		var created []models.Charge
		err := withinTx(ctx, s.tx, func(tx *sqlx.Tx) error {
			var genErr error
			created, genErr = s.generateForContract(ctx, tx, contract, asOf)
			return genErr
		})
		if err != nil {
			s.logger.Error("charge generation failed", zap.String("contract_id", contract.ID), zap.Error(err))
			result.Failed = append(result.Failed, contract.ID)
			failures = append(failures, fmt.Errorf("contract %s: %w", contract.ID, err))
			continue
		}
		if len(created) > 0 {
			s.logger.Info("charges generated",
				zap.String("contract_id", contract.ID),
				zap.String("student_id", contract.StudentID),
				zap.Int("count", len(created)))
		}
		result.Created = append(result.Created, created...)
	}

	s.metrics.AddChargesGenerated(result.CreatedCount())
	if result.CreatedCount() > 0 && s.cache != nil {
		_ = s.cache.Invalidate(ctx, dashboardCachePattern)
	}

	var runErr error
	if len(failures) > 0 {
		runErr = internalError(errors.Join(failures...), fmt.Sprintf("charge generation failed for %d contracts", len(failures)))
	}
	s.metrics.ObserveJob("generate_charges", time.Since(start), runErr)
	return result, runErr
}

func (s *InvoiceService) generateForContract(ctx context.Context, tx sqlx.ExtContext, contract *models.Contract, asOf time.Time) ([]models.Charge, error) {
	first := dates.MonthIndex(contract.StartDate)
	last := dates.MonthIndex(asOf)
	if contract.EndDate != nil && dates.MonthIndex(*contract.EndDate) < last {
		last = dates.MonthIndex(*contract.EndDate)
	}

	feeInstallments := 0
	feeAmount := decimal.Zero
	if contract.EnrollmentFee.IsPositive() && contract.FeeInstallments > 0 {
		feeInstallments = contract.FeeInstallments
		feeAmount = contract.EnrollmentFee.Div(decimal.NewFromInt(int64(feeInstallments))).Round(2)
	}
	feeCount := 0
	if feeInstallments > 0 {
		count, err := s.charges.CountByKind(ctx, tx, contract.ID, models.ChargeKindEnrollmentFee)
		if err != nil {
			return nil, err
		}
		feeCount = count
	}

	var created []models.Charge
	for idx := first; idx <= last; idx++ {
		ref := dates.FromMonthIndex(idx)
		status := ResolveChargeStatus(ref, asOf, s.cutover)

		if contract.MonthlyTuition.IsPositive() {
			exists, err := s.charges.ExistsForMonth(ctx, tx, contract.ID, models.ChargeKindTuition, ref)
			if err != nil {
				return nil, err
			}
			if !exists {
				charge := newGeneratedCharge(contract, models.ChargeKindTuition, "Mensalidade "+dates.MonthLabel(ref), contract.MonthlyTuition, ref, status)
				ok, err := s.charges.Create(ctx, tx, charge)
				if err != nil {
					return nil, err
				}
				if ok {
					created = append(created, *charge)
				}
			}
		}

		if feeCount < feeInstallments {
			exists, err := s.charges.ExistsForMonth(ctx, tx, contract.ID, models.ChargeKindEnrollmentFee, ref)
			if err != nil {
				return nil, err
			}
			if !exists {
				description := fmt.Sprintf("Parcela %d/%d Matrícula", feeCount+1, feeInstallments)
				charge := newGeneratedCharge(contract, models.ChargeKindEnrollmentFee, description, feeAmount, ref, status)
				ok, err := s.charges.Create(ctx, tx, charge)
				if err != nil {
					return nil, err
				}
				if ok {
					created = append(created, *charge)
					feeCount++
				}
			}
		}
	}
	return created, nil
}

func newGeneratedCharge(contract *models.Contract, kind models.ChargeKind, description string, amount decimal.Decimal, ref time.Time, status models.ChargeStatus) *models.Charge {
	contractID := contract.ID
	due := dates.MonthEnd(ref)
	charge := &models.Charge{
		StudentID:      contract.StudentID,
		ContractID:     &contractID,
		Kind:           kind,
		Description:    description,
		Amount:         amount,
		AmountPaid:     decimal.Zero,
		ReferenceMonth: ref,
		DueDate:        due,
		Status:         status,
	}
	if status == models.ChargeStatusPaid {
		charge.AmountPaid = amount
		charge.PaidDate = &due
	}
	return charge
}
