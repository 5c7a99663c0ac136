package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DashboardFilter narrows the admin dashboard to a reference month.
type DashboardFilter struct {
	Month   time.Time
	ClassID string
	Kind    ChargeKind
}

// ChargeTotals aggregates a set of charges.
type ChargeTotals struct {
	Count  int             `db:"count" json:"count"`
	Amount decimal.Decimal `db:"amount" json:"amount"`
	Paid   decimal.Decimal `db:"paid" json:"paid"`
}

// OpenChargeStudent lists a student carrying unpaid charges.
type OpenChargeStudent struct {
	StudentID   string          `db:"student_id" json:"student_id"`
	StudentName string          `db:"student_name" json:"student_name"`
	OpenCharges int             `db:"open_charges" json:"open_charges"`
	Outstanding decimal.Decimal `db:"outstanding" json:"outstanding"`
	OldestDue   time.Time       `db:"oldest_due" json:"oldest_due"`
}

// TeacherWeekLessons counts the sessions a teacher gave in one ISO week.
type TeacherWeekLessons struct {
	TeacherID   string `db:"teacher_id" json:"teacher_id"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	Year        int    `db:"iso_year" json:"year"`
	Week        int    `db:"iso_week" json:"week"`
	Lessons     int    `db:"lessons" json:"lessons"`
}
