package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/models"
	"github.com/noah-isme/escola-backoffice/pkg/dates"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
)

// dashboardCachePattern matches every cached dashboard payload. Writes that move money, alerts or
// enrollments invalidate it.
const dashboardCachePattern = "dash:*"

type dashboardRepository interface {
	ChargeTotals(ctx context.Context, filter models.DashboardFilter, statuses []models.ChargeStatus) (models.ChargeTotals, error)
	CountPendingAlerts(ctx context.Context) (int, error)
	CountEnrollments(ctx context.Context, status models.EnrollmentStatus, classID string) (int, error)
}

type expiringContractLister interface {
	ListExpiring(ctx context.Context, from, to time.Time) ([]models.ContractDetail, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL           time.Duration
	ExpiringWindowDays int
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Repo      dashboardRepository
	Contracts expiringContractLister
	Cache     *CacheService
	Logger    *zap.Logger
	Config    DashboardServiceConfig
}

// DashboardService composes the admin overview.
type DashboardService struct {
	repo      dashboardRepository
	contracts expiringContractLister
	cache     *CacheService
	logger    *zap.Logger
	now       func() time.Time
	cfg       DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.ExpiringWindowDays <= 0 {
		cfg.ExpiringWindowDays = 30
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		repo:      params.Repo,
		contracts: params.Contracts,
		cache:     params.Cache,
		logger:    logger,
		now:       time.Now,
		cfg:       cfg,
	}
}

// Admin returns the overview of a month and whether it came from cache.
func (s *DashboardService) Admin(ctx context.Context, actor models.Actor, filter models.DashboardFilter) (*dto.AdminDashboardResponse, bool, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, false, err
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "invalid charge kind")
	}
	if filter.Month.IsZero() {
		filter.Month = s.now()
	}
	filter.Month = dates.MonthStart(filter.Month)
	today := dates.Day(s.now())

	cacheKey := fmt.Sprintf("dash:admin:%s:%s:%s:%s", filter.Month.Format("2006-01"), filter.ClassID, filter.Kind, today.Format(dates.Layout))
	if s.cache != nil {
		var cached dto.AdminDashboardResponse
		if s.cache.Get(ctx, cacheKey, &cached) {
			return &cached, true, nil
		}
	}

	summary, err := s.composeAdmin(ctx, filter, today)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL)
	}
	return summary, false, nil
}

func (s *DashboardService) composeAdmin(ctx context.Context, filter models.DashboardFilter, today time.Time) (*dto.AdminDashboardResponse, error) {
	open, err := s.repo.ChargeTotals(ctx, filter, models.OpenChargeStatuses)
	if err != nil {
		return nil, internalError(err, "failed to total open charges")
	}
	paid, err := s.repo.ChargeTotals(ctx, filter, []models.ChargeStatus{models.ChargeStatusPaid})
	if err != nil {
		return nil, internalError(err, "failed to total paid charges")
	}
	expiring, err := s.contracts.ListExpiring(ctx, today, today.AddDate(0, 0, s.cfg.ExpiringWindowDays))
	if err != nil {
		return nil, internalError(err, "failed to list expiring contracts")
	}
	alerts, err := s.repo.CountPendingAlerts(ctx)
	if err != nil {
		return nil, internalError(err, "failed to count alerts")
	}
	trials, err := s.repo.CountEnrollments(ctx, models.EnrollmentStatusTrial, filter.ClassID)
	if err != nil {
		return nil, internalError(err, "failed to count trial enrollments")
	}
	return &dto.AdminDashboardResponse{
		Month:             filter.Month.Format("2006-01"),
		ClassID:           filter.ClassID,
		Kind:              filter.Kind,
		OpenCharges:       open,
		PaidCharges:       paid,
		ExpiringContracts: expiring,
		PendingAlerts:     alerts,
		TrialEnrollments:  trials,
	}, nil
}
