package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/models"
	"github.com/noah-isme/escola-backoffice/pkg/dates"
)

type classRepository interface {
	List(ctx context.Context) ([]models.ClassGroup, error)
	FindByID(ctx context.Context, id string) (*models.ClassGroup, error)
	Create(ctx context.Context, class *models.ClassGroup) error
	Update(ctx context.Context, class *models.ClassGroup) error
}

type rosterEnrollmentReader interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type sessionLister interface {
	List(ctx context.Context, filter models.ClassSessionFilter) ([]models.ClassSession, error)
}

// ClassService coordinates class groups and their rosters.
type ClassService struct {
	repo        classRepository
	enrollments rosterEnrollmentReader
	sessions    sessionLister
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, enrollments rosterEnrollmentReader, sessions sessionLister, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, enrollments: enrollments, sessions: sessions, validator: validate, logger: logger}
}

// List returns every class group.
func (s *ClassService) List(ctx context.Context, actor models.Actor) ([]models.ClassGroup, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, err
	}
	classes, err := s.repo.List(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list classes")
	}
	return classes, nil
}

// Create registers a class group.
func (s *ClassService) Create(ctx context.Context, actor models.Actor, req dto.ClassRequest) (*models.ClassGroup, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	class := &models.ClassGroup{Name: strings.TrimSpace(req.Name), Stage: req.Stage, Notes: req.Notes}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, internalError(err, "failed to create class")
	}
	return class, nil
}

// Update edits name, stage and notes of a class.
func (s *ClassService) Update(ctx context.Context, actor models.Actor, id string, req dto.ClassRequest) (*models.ClassGroup, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "class not found", "failed to load class")
	}
	class.Name = strings.TrimSpace(req.Name)
	class.Stage = req.Stage
	class.Notes = req.Notes
	if err := s.repo.Update(ctx, class); err != nil {
		return nil, repoError(err, "class not found", "failed to update class")
	}
	return class, nil
}

// Roster returns the class with its enrollments grouped by status and the sessions of month.
func (s *ClassService) Roster(ctx context.Context, actor models.Actor, id string, month time.Time) (*dto.ClassRoster, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, err
	}
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "class not found", "failed to load class")
	}

	roster := &dto.ClassRoster{Class: *class, ByStatus: make(map[models.EnrollmentStatus][]models.EnrollmentDetail)}
	for page := 1; ; page++ {
		enrollments, total, err := s.enrollments.List(ctx, models.EnrollmentFilter{ClassID: id, Page: page, PageSize: 100})
		if err != nil {
			return nil, internalError(err, "failed to load roster")
		}
		for _, e := range enrollments {
			roster.ByStatus[e.Status] = append(roster.ByStatus[e.Status], e)
		}
		if len(enrollments) == 0 || page*100 >= total {
			break
		}
	}

	from, to := dates.MonthStart(month), dates.MonthEnd(month)
	sessions, err := s.sessions.List(ctx, models.ClassSessionFilter{ClassID: id, From: &from, To: &to})
	if err != nil {
		return nil, internalError(err, "failed to load sessions")
	}
	roster.Sessions = sessions
	return roster, nil
}
