package dto

import "github.com/noah-isme/escola-backoffice/internal/models"

// AdminDashboardResponse is the monthly back-office overview.
type AdminDashboardResponse struct {
	Month             string                  `json:"month"`
	ClassID           string                  `json:"class_id,omitempty"`
	Kind              models.ChargeKind       `json:"kind,omitempty"`
	OpenCharges       models.ChargeTotals     `json:"open_charges"`
	PaidCharges       models.ChargeTotals     `json:"paid_charges"`
	ExpiringContracts []models.ContractDetail `json:"expiring_contracts"`
	PendingAlerts     int                     `json:"pending_alerts"`
	TrialEnrollments  int                     `json:"trial_enrollments"`
}
