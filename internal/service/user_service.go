package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/escola-backoffice/internal/models"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
)

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	Email     string          `json:"email" validate:"required,email"`
	FullName  string          `json:"full_name" validate:"required"`
	Role      models.UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER STUDENT"`
	Password  string          `json:"password" validate:"required,min=6"`
	StudentID *string         `json:"student_id"`
	TeacherID *string         `json:"teacher_id"`
}

// UserService manages login accounts.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates a new user service.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// Create registers an account. Student and teacher accounts must link to their registry entry.
func (s *UserService) Create(ctx context.Context, actor models.Actor, req CreateUserRequest) (*models.User, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	switch {
	case req.Role == models.RoleStudent && (req.StudentID == nil || *req.StudentID == ""):
		return nil, appErrors.Clone(appErrors.ErrValidation, "student accounts require student_id")
	case req.Role == models.RoleTeacher && (req.TeacherID == nil || *req.TeacherID == ""):
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher accounts require teacher_id")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		StudentID:    req.StudentID,
		TeacherID:    req.TeacherID,
		Active:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}
