// Package app assembles repositories and services shared by the API server
// and the batch scheduler.
package app

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/repository"
	"github.com/noah-isme/escola-backoffice/internal/service"
	"github.com/noah-isme/escola-backoffice/pkg/config"
	"github.com/noah-isme/escola-backoffice/pkg/export"
	"github.com/noah-isme/escola-backoffice/pkg/jobs"
)

const cachePrefix = "escola"

// Services holds every wired service plus the absence detection queue.
type Services struct {
	Auth        *service.AuthService
	Users       *service.UserService
	Students    *service.StudentService
	Teachers    *service.TeacherService
	Classes     *service.ClassService
	Enrollments *service.EnrollmentService
	Contracts   *service.ContractService
	Charges     *service.ChargeService
	Invoices    *service.InvoiceService
	Attendance  *service.AttendanceService
	Alerts      *service.AbsenceAlertService
	Exams       *service.ExamService
	Dashboard   *service.DashboardService
	Reports     *service.ReportService
	Cache       *service.CacheService
	Metrics     *service.MetricsService

	AbsenceQueue *jobs.Queue
}

// New wires the service graph. redisClient may be nil, in which case caching is disabled.
func New(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logger *zap.Logger) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := dto.NewValidator()
	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, cachePrefix, logger)
	}
	cache := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logger, cacheRepo != nil)

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	contractRepo := repository.NewContractRepository(db)
	chargeRepo := repository.NewChargeRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	alertRepo := repository.NewAbsenceAlertRepository(db)
	examRepo := repository.NewExamRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	reportRepo := repository.NewReportRepository(db)

	s := &Services{Cache: cache, Metrics: metrics}

	s.Auth = service.NewAuthService(userRepo, validate, logger, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	s.Users = service.NewUserService(userRepo, validate, logger)
	s.Teachers = service.NewTeacherService(teacherRepo, validate, logger)
	s.Enrollments = service.NewEnrollmentService(enrollmentRepo, studentRepo, classRepo, cache, validate, logger)
	s.Students = service.NewStudentService(studentRepo, s.Enrollments, db, validate, logger)
	s.Classes = service.NewClassService(classRepo, enrollmentRepo, sessionRepo, validate, logger)

	s.Contracts = service.NewContractService(service.ContractServiceParams{
		Repo:        contractRepo,
		Students:    studentRepo,
		Enrollments: enrollmentRepo,
		Charges:     chargeRepo,
		Tx:          db,
		Cache:       cache,
		Validator:   validate,
		Logger:      logger,
		Config: service.ContractServiceConfig{
			CancelPenaltyRate:  cfg.Billing.CancelPenaltyRate,
			ExpiringWindowDays: cfg.Billing.ExpiringWindowDays,
		},
	})
	s.Charges = service.NewChargeService(service.ChargeServiceParams{
		Repo:      chargeRepo,
		Contracts: contractRepo,
		Students:  studentRepo,
		Tx:        db,
		Cache:     cache,
		Validator: validate,
		Logger:    logger,
	})
	s.Invoices = service.NewInvoiceService(contractRepo, chargeRepo, db, cache, metrics, logger, service.InvoiceServiceConfig{
		PaidCutover: cfg.Billing.PaidCutover,
	})

	s.Alerts = service.NewAbsenceAlertService(service.AbsenceAlertServiceParams{
		Alerts:      alertRepo,
		History:     sessionRepo,
		Enrollments: enrollmentRepo,
		Tx:          db,
		Cache:       cache,
		Metrics:     metrics,
		Logger:      logger,
		Config: service.AbsenceAlertConfig{
			LookbackDays: cfg.Attendance.LookbackDays,
			Threshold:    cfg.Attendance.AbsenceThreshold,
		},
	})
	s.AbsenceQueue = jobs.NewQueue("absence-detector", s.Alerts.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Attendance.DetectorWorkers,
		BufferSize: 256,
		MaxRetries: cfg.Attendance.DetectorRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logger,
	})
	s.Attendance = service.NewAttendanceService(service.AttendanceServiceParams{
		Sessions:    sessionRepo,
		Enrollments: enrollmentRepo,
		Classes:     classRepo,
		Detector:    s.AbsenceQueue,
		Tx:          db,
		Validator:   validate,
		Logger:      logger,
	})

	s.Exams = service.NewExamService(examRepo, studentRepo, db, validate, logger)
	s.Dashboard = service.NewDashboardService(service.DashboardServiceParams{
		Repo:      dashboardRepo,
		Contracts: contractRepo,
		Cache:     cache,
		Logger:    logger,
		Config: service.DashboardServiceConfig{
			CacheTTL:           cfg.Dashboard.CacheTTL,
			ExpiringWindowDays: cfg.Billing.ExpiringWindowDays,
		},
	})
	s.Reports = service.NewReportService(reportRepo, chargeRepo, studentRepo, export.NewCSVExporter(), export.NewPDFExporter(), validate, logger)

	return s
}

// Start launches background workers until ctx is cancelled.
func (s *Services) Start(ctx context.Context) {
	s.AbsenceQueue.Start(ctx)
}

// Stop drains background workers.
func (s *Services) Stop() {
	s.AbsenceQueue.Stop()
}
