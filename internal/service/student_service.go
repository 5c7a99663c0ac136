package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/models"
	"github.com/noah-isme/escola-backoffice/pkg/dates"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsCPF(ctx context.Context, cpf, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.StudentStatus) error
}

type enrollmentSyncer interface {
	CascadeStudentStatus(ctx context.Context, exec sqlx.ExtContext, studentID string, status models.StudentStatus) (int, error)
	EnrollmentsSynced(ctx context.Context, studentID string, affected int)
}

// StudentService handles the student registry.
type StudentService struct {
	repo      studentRepository
	sync      enrollmentSyncer
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service. The registry rules are registered on validate.
func NewStudentService(repo studentRepository, sync enrollmentSyncer, tx txProvider, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	dto.RegisterValidations(validate)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, sync: sync, tx: tx, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, actor models.Actor, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, nil, err
	}
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list students")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a student. Students may only read themselves.
func (s *StudentService) Get(ctx context.Context, actor models.Actor, id string) (*models.Student, error) {
	if !actor.Is(models.RoleAdmin, models.RoleTeacher) && !actor.IsStudent(id) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient role for this operation")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "student not found", "failed to load student")
	}
	return student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, actor models.Actor, req dto.StudentRequest) (*models.Student, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	student := &models.Student{Status: models.StudentStatusActive}
	if err := s.apply(ctx, student, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, internalError(err, "failed to create student")
	}
	return student, nil
}

// Update modifies the registry fields of a student.
func (s *StudentService) Update(ctx context.Context, actor models.Actor, id string, req dto.StudentRequest) (*models.Student, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "student not found", "failed to load student")
	}
	if err := s.apply(ctx, student, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, repoError(err, "student not found", "failed to update student")
	}
	return student, nil
}

// ChangeStatus persists the student status and cascades it to the enrollments in one transaction.
func (s *StudentService) ChangeStatus(ctx context.Context, actor models.Actor, id string, status models.StudentStatus) (*dto.StudentStatusResponse, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid student status")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "student not found", "failed to load student")
	}
	var affected int
	err = withinTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if student.Status != status {
			if err := s.repo.UpdateStatus(ctx, tx, id, status); err != nil {
				return repoError(err, "student not found", "failed to update student status")
			}
		}
		n, err := s.sync.CascadeStudentStatus(ctx, tx, id, status)
		if err != nil {
			return err
		}
		affected = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	student.Status = status
	s.sync.EnrollmentsSynced(ctx, id, affected)
	return &dto.StudentStatusResponse{Student: *student, EnrollmentsAffected: affected}, nil
}

func (s *StudentService) apply(ctx context.Context, student *models.Student, req dto.StudentRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid student payload")
	}
	student.FullName = strings.TrimSpace(req.FullName)
	student.Email = req.Email
	student.Phone = req.Phone
	student.Street = req.Street
	student.City = req.City
	student.CPF = nil
	student.State = nil
	student.BirthDate = nil
	if req.CPF != nil && strings.TrimSpace(*req.CPF) != "" {
		cpf := dto.FormatCPF(*req.CPF)
		exists, err := s.repo.ExistsCPF(ctx, cpf, student.ID)
		if err != nil {
			return internalError(err, "failed to validate cpf")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrConflict, "cpf already registered")
		}
		student.CPF = &cpf
	}
	if req.State != nil {
		state := strings.ToUpper(strings.TrimSpace(*req.State))
		student.State = &state
	}
	if req.BirthDate != nil {
		birth, err := dates.Parse(*req.BirthDate)
		if err != nil {
			return validationError(err, "invalid birth date")
		}
		student.BirthDate = &birth
	}
	return nil
}
