package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/models"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
	SyncStudentStatus(ctx context.Context, exec sqlx.ExtContext, studentID string, status models.EnrollmentStatus) (int64, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// EnrollmentService orchestrates enrollment workflows.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentReader
	classes   classReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, classes classReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, classes: classes, cache: cache, validator: validate, logger: logger}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, actor models.Actor, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, nil, err
	}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list enrollments")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Enroll registers a student in a class. Status defaults to enrolled; trial covers prospective students.
func (s *EnrollmentService) Enroll(ctx context.Context, actor models.Actor, req dto.EnrollRequest) (*models.Enrollment, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		return nil, repoError(err, "student not found", "failed to load student")
	}
	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		return nil, repoError(err, "class not found", "failed to load class")
	}
	existing, _, err := s.repo.List(ctx, models.EnrollmentFilter{StudentID: req.StudentID, ClassID: req.ClassID, PageSize: 100})
	if err != nil {
		return nil, internalError(err, "failed to validate enrollment")
	}
	for _, e := range existing {
		if e.Status != models.EnrollmentStatusWithdrawn {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in class")
		}
	}

	status := req.Status
	if status == "" {
		status = models.EnrollmentStatusEnrolled
	}
	enrollment := &models.Enrollment{StudentID: req.StudentID, ClassID: req.ClassID, Status: status}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, internalError(err, "failed to create enrollment")
	}
	s.invalidateDashboard(ctx)
	return enrollment, nil
}

// UpdateStatus changes one enrollment. Withdrawn enrollments are final.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, actor models.Actor, id string, status models.EnrollmentStatus) (*models.Enrollment, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid enrollment status")
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "enrollment not found", "failed to load enrollment")
	}
	if enrollment.Status == status {
		return enrollment, nil
	}
	if enrollment.Status == models.EnrollmentStatusWithdrawn {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "enrollment withdrawn")
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, repoError(err, "enrollment not found", "failed to update enrollment status")
	}
	enrollment.Status = status
	s.invalidateDashboard(ctx)
	return enrollment, nil
}

// SyncEnrollmentStatus re-applies the stored student status to the student's enrollments.
func (s *EnrollmentService) SyncEnrollmentStatus(ctx context.Context, studentID string) (int, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return 0, repoError(err, "student not found", "failed to load student")
	}
	affected, err := s.CascadeStudentStatus(ctx, nil, studentID, student.Status)
	if err != nil {
		return 0, err
	}
	s.EnrollmentsSynced(ctx, studentID, affected)
	return affected, nil
}

// CascadeStudentStatus copies an inactive or locked student status onto every enrollment of the
// student that is neither withdrawn nor already in that status. Other statuses change nothing.
// Callers running it inside a transaction report the result through EnrollmentsSynced after commit.
func (s *EnrollmentService) CascadeStudentStatus(ctx context.Context, exec sqlx.ExtContext, studentID string, status models.StudentStatus) (int, error) {
	var target models.EnrollmentStatus
	switch status {
	case models.StudentStatusInactive:
		target = models.EnrollmentStatusInactive
	case models.StudentStatusLocked:
		target = models.EnrollmentStatusLocked
	default:
		return 0, nil
	}
	affected, err := s.repo.SyncStudentStatus(ctx, exec, studentID, target)
	if err != nil {
		return 0, internalError(err, "failed to sync enrollments")
	}
	return int(affected), nil
}

// EnrollmentsSynced logs a committed cascade and drops the cached dashboard.
func (s *EnrollmentService) EnrollmentsSynced(ctx context.Context, studentID string, affected int) {
	if affected == 0 {
		return
	}
	s.logger.Info("enrollments synced", zap.String("student_id", studentID), zap.Int("affected", affected))
	s.invalidateDashboard(ctx)
}

func (s *EnrollmentService) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, dashboardCachePattern)
}
