package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/models"
)

type teacherRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.Teacher, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	Create(ctx context.Context, teacher *models.Teacher) error
}

// TeacherService manages teaching staff.
type TeacherService struct {
	repo      teacherRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs TeacherService.
func NewTeacherService(repo teacherRepository, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, validator: validate, logger: logger}
}

// List returns teachers, optionally only active ones.
func (s *TeacherService) List(ctx context.Context, actor models.Actor, activeOnly bool) ([]models.Teacher, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, err
	}
	teachers, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, internalError(err, "failed to list teachers")
	}
	return teachers, nil
}

// Get returns a teacher by id.
func (s *TeacherService) Get(ctx context.Context, actor models.Actor, id string) (*models.Teacher, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, err
	}
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "teacher not found", "failed to load teacher")
	}
	return teacher, nil
}

// Create registers an active teacher.
func (s *TeacherService) Create(ctx context.Context, actor models.Actor, req dto.TeacherRequest) (*models.Teacher, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid teacher payload")
	}
	teacher := &models.Teacher{FullName: strings.TrimSpace(req.FullName), Phone: req.Phone, Active: true}
	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, internalError(err, "failed to create teacher")
	}
	return teacher, nil
}
