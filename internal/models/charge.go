package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChargeKind classifies a billable item.
type ChargeKind string

const (
	ChargeKindTuition       ChargeKind = "tuition"
	ChargeKindEnrollmentFee ChargeKind = "enrollment_fee"
	ChargeKindMaterial      ChargeKind = "material"
	ChargeKindOther         ChargeKind = "other"
)

// Valid reports whether the kind is known.
func (k ChargeKind) Valid() bool {
	switch k {
	case ChargeKindTuition, ChargeKindEnrollmentFee, ChargeKindMaterial, ChargeKindOther:
		return true
	}
	return false
}

// ChargeStatus is the settlement lifecycle of a charge.
type ChargeStatus string

const (
	ChargeStatusPending   ChargeStatus = "pending"
	ChargeStatusPaid      ChargeStatus = "paid"
	ChargeStatusPartial   ChargeStatus = "partial"
	ChargeStatusOverdue   ChargeStatus = "overdue"
	ChargeStatusCancelled ChargeStatus = "cancelled"
)

// Open reports whether the charge still expects money.
func (s ChargeStatus) Open() bool {
	return s == ChargeStatusPending || s == ChargeStatusPartial || s == ChargeStatusOverdue
}

// OpenChargeStatuses lists the statuses that still expect money.
var OpenChargeStatuses = []ChargeStatus{ChargeStatusPending, ChargeStatusPartial, ChargeStatusOverdue}

// Charge is one billable line item.
type Charge struct {
	ID             string          `db:"id" json:"id"`
	StudentID      string          `db:"student_id" json:"student_id"`
	ContractID     *string         `db:"contract_id" json:"contract_id,omitempty"`
	Kind           ChargeKind      `db:"kind" json:"kind"`
	Description    string          `db:"description" json:"description"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	AmountPaid     decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	ReferenceMonth time.Time       `db:"reference_month" json:"reference_month"`
	DueDate        time.Time       `db:"due_date" json:"due_date"`
	PaidDate       *time.Time      `db:"paid_date" json:"paid_date,omitempty"`
	Status         ChargeStatus    `db:"status" json:"status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// Remaining is the amount still owed.
func (c *Charge) Remaining() decimal.Decimal {
	rest := c.Amount.Sub(c.AmountPaid)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// MarkPaid settles the whole charge on the given day.
func (c *Charge) MarkPaid(day time.Time) {
	c.AmountPaid = c.Amount
	c.Status = ChargeStatusPaid
	c.PaidDate = &day
}

// ChargeFilter narrows charge listings.
type ChargeFilter struct {
	StudentID  string
	ContractID string
	Kind       ChargeKind
	Statuses   []ChargeStatus
	MonthFrom  *time.Time
	MonthTo    *time.Time
	Page       int
	PageSize   int
}

// ChargeDetail adds the student name for listings and exports.
type ChargeDetail struct {
	Charge
	StudentName string `db:"student_name" json:"student_name"`
}
