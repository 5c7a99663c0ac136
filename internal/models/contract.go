package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/escola-backoffice/pkg/dates"
)

// ContractPlan defines the contract duration.
type ContractPlan string

const (
	ContractPlanAnnual    ContractPlan = "annual"
	ContractPlanSemestral ContractPlan = "semestral"
	ContractPlanFlexible  ContractPlan = "flexible"
)

// Months returns the plan term length; flexible plans are open-ended and return 0.
func (p ContractPlan) Months() int {
	switch p {
	case ContractPlanAnnual:
		return 12
	case ContractPlanSemestral:
		return 6
	}
	return 0
}

// Valid reports whether the plan is known.
func (p ContractPlan) Valid() bool {
	return p == ContractPlanAnnual || p == ContractPlanSemestral || p == ContractPlanFlexible
}

// ContractStatus is the contract state machine: active <-> locked -> cancelled.
type ContractStatus string

const (
	ContractStatusActive    ContractStatus = "active"
	ContractStatusLocked    ContractStatus = "locked"
	ContractStatusCancelled ContractStatus = "cancelled"
)

// Contract is a billing agreement between the school and a student.
type Contract struct {
	ID              string          `db:"id" json:"id"`
	StudentID       string          `db:"student_id" json:"student_id"`
	Plan            ContractPlan    `db:"plan" json:"plan"`
	StartDate       time.Time       `db:"start_date" json:"start_date"`
	EndDate         *time.Time      `db:"end_date" json:"end_date,omitempty"`
	MonthlyTuition  decimal.Decimal `db:"monthly_tuition" json:"monthly_tuition"`
	EnrollmentFee   decimal.Decimal `db:"enrollment_fee" json:"enrollment_fee"`
	FeeInstallments int             `db:"fee_installments" json:"fee_installments"`
	Active          bool            `db:"active" json:"active"`
	Status          ContractStatus  `db:"status" json:"status"`
	Notes           *string         `db:"notes" json:"notes,omitempty"`
	CancelledAt     *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// DeriveEndDate recomputes the end date from plan and start. It must run before every save.
func (c *Contract) DeriveEndDate() {
	months := c.Plan.Months()
	if months == 0 {
		c.EndDate = nil
		return
	}
	end := dates.AddMonths(c.StartDate, months)
	c.EndDate = &end
}

// InForce reports whether the contract qualifies for charge generation on asOf.
func (c *Contract) InForce(asOf time.Time) bool {
	asOf = dates.Day(asOf)
	if dates.Day(c.StartDate).After(asOf) {
		return false
	}
	if c.Status == ContractStatusLocked {
		return true
	}
	if !c.Active || c.Status == ContractStatusCancelled {
		return false
	}
	return c.EndDate == nil || !dates.Day(*c.EndDate).Before(asOf)
}

// ContractFilter narrows contract listings.
type ContractFilter struct {
	StudentID string
	Status    ContractStatus
	Page      int
	PageSize  int
}

// ContractDetail adds the student name for listings.
type ContractDetail struct {
	Contract
	StudentName string `db:"student_name" json:"student_name"`
}
