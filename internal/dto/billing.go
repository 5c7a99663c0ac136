package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/escola-backoffice/internal/models"
)

// CreateChargeRequest registers a one-off charge for a student.
type CreateChargeRequest struct {
	StudentID   string            `json:"student_id" validate:"required"`
	Kind        models.ChargeKind `json:"kind" validate:"required,oneof=material other"`
	Description string            `json:"description" validate:"required,max=200"`
	Amount      decimal.Decimal   `json:"amount"`
	DueDate     string            `json:"due_date" validate:"required,datetime=2006-01-02"`
}

// SellMaterialRequest splits a material sale into monthly installments.
type SellMaterialRequest struct {
	StudentID    string          `json:"student_id" validate:"required"`
	Description  string          `json:"description" validate:"required,max=200"`
	Total        decimal.Decimal `json:"total"`
	Installments int             `json:"installments" validate:"required,min=1,max=24"`
}

// ApplyPaymentRequest records money received from a student.
type ApplyPaymentRequest struct {
	StudentID string          `json:"student_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Date      string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// SettleChargeRequest optionally backdates a settlement.
type SettleChargeRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// BulkSettleRequest settles several charges at once.
type BulkSettleRequest struct {
	ChargeIDs []string `json:"charge_ids" validate:"required,min=1,dive,required"`
	Date      string   `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// PaymentAllocation is the share of a payment applied to one charge.
type PaymentAllocation struct {
	ChargeID string              `json:"charge_id"`
	Amount   decimal.Decimal     `json:"amount"`
	Status   models.ChargeStatus `json:"status"`
}

// PaymentResult describes how a payment was spread over open charges.
type PaymentResult struct {
	StudentID   string              `json:"student_id"`
	Applied     decimal.Decimal     `json:"applied"`
	Unapplied   decimal.Decimal     `json:"unapplied"`
	Allocations []PaymentAllocation `json:"allocations"`
}

// BulkSettleResult reports a bulk settlement.
type BulkSettleResult struct {
	Settled []string `json:"settled"`
	Skipped []string `json:"skipped"`
}

// ContractRequest creates or edits a contract. End dates are derived from the plan.
type ContractRequest struct {
	StudentID       string              `json:"student_id" validate:"required"`
	Plan            models.ContractPlan `json:"plan" validate:"required,oneof=annual semestral flexible"`
	StartDate       string              `json:"start_date" validate:"required,datetime=2006-01-02"`
	MonthlyTuition  decimal.Decimal     `json:"monthly_tuition"`
	EnrollmentFee   decimal.Decimal     `json:"enrollment_fee"`
	FeeInstallments int                 `json:"fee_installments" validate:"omitempty,min=1,max=12"`
	Notes           *string             `json:"notes" validate:"omitempty,max=500"`
}

// CancelContractResponse returns the penalty charged on cancellation.
type CancelContractResponse struct {
	ContractID  string          `json:"contract_id"`
	Penalty     decimal.Decimal `json:"penalty"`
	CancelledAt time.Time       `json:"cancelled_at"`
}
