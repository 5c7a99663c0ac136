package service

import (
	"context"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/models"
	"github.com/noah-isme/escola-backoffice/pkg/dates"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
	"github.com/noah-isme/escola-backoffice/pkg/jobs"
)

type sessionRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, session *models.ClassSession) error
	Update(ctx context.Context, session *models.ClassSession) error
	FindByID(ctx context.Context, id string) (*models.ClassSession, error)
	List(ctx context.Context, filter models.ClassSessionFilter) ([]models.ClassSession, error)
	UpsertAttendance(ctx context.Context, exec sqlx.ExtContext, rows []models.Attendance) error
	ListAttendance(ctx context.Context, sessionID string) ([]models.Attendance, error)
	StudentStats(ctx context.Context, studentID string) (*models.AttendanceStats, error)
	StudentMonthly(ctx context.Context, studentID string, since time.Time) ([]models.MonthlyAttendance, error)
}

type rosterRepository interface {
	ListByClass(ctx context.Context, exec sqlx.ExtContext, classID string, statuses []models.EnrollmentStatus) ([]models.Enrollment, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassGroup, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// AttendanceServiceParams groups AttendanceService dependencies.
type AttendanceServiceParams struct {
	Sessions    sessionRepository
	Enrollments rosterRepository
	Classes     classReader
	Detector    jobEnqueuer
	Tx          txProvider
	Validator   *validator.Validate
	Logger      *zap.Logger
	Now         func() time.Time
}

// AttendanceService records lessons and their attendance rolls.
type AttendanceService struct {
	sessions    sessionRepository
	enrollments rosterRepository
	classes     classReader
	detector    jobEnqueuer
	tx          txProvider
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

var attendingStatuses = []models.EnrollmentStatus{
	models.EnrollmentStatusEnrolled,
	models.EnrollmentStatusTrial,
	models.EnrollmentStatusMonitoring,
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(params AttendanceServiceParams) *AttendanceService {
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &AttendanceService{
		sessions:    params.Sessions,
		enrollments: params.Enrollments,
		classes:     params.Classes,
		detector:    params.Detector,
		tx:          params.Tx,
		validator:   validate,
		logger:      logger,
		now:         now,
	}
}

// RecordSession stores a lesson and one attendance row per attending enrollment of the class.
// Students listed in Present are marked present; everyone else absent. Absence detection is
// queued for every enrolled student once the roll is committed.
func (s *AttendanceService) RecordSession(ctx context.Context, actor models.Actor, req dto.RecordSessionRequest) (*dto.SessionResponse, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid session payload")
	}
	lessonDate, err := dates.Parse(req.LessonDate)
	if err != nil {
		return nil, validationError(err, "invalid lesson date")
	}
	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		return nil, repoError(err, "class not found", "failed to load class")
	}

	session := &models.ClassSession{ClassID: req.ClassID, TeacherID: req.TeacherID, LessonDate: lessonDate}
	if session.TeacherID == nil && actor.TeacherID != "" {
		teacherID := actor.TeacherID
		session.TeacherID = &teacherID
	}
	applyMarkers(session, req.LessonMarkers)

	present := make(map[string]struct{}, len(req.Present))
	for _, id := range req.Present {
		present[id] = struct{}{}
	}

	var rows []models.Attendance
	var enrolled []string
	err = withinTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		roster, err := s.enrollments.ListByClass(ctx, tx, req.ClassID, attendingStatuses)
		if err != nil {
			return internalError(err, "failed to load class roster")
		}
		if err := s.sessions.Create(ctx, tx, session); err != nil {
			return internalError(err, "failed to create session")
		}
		seen := make(map[string]struct{}, len(roster))
		for _, enrollment := range roster {
			if _, dup := seen[enrollment.StudentID]; dup {
				continue
			}
			seen[enrollment.StudentID] = struct{}{}
			_, isPresent := present[enrollment.StudentID]
			rows = append(rows, models.Attendance{SessionID: session.ID, StudentID: enrollment.StudentID, Present: isPresent})
			if enrollment.Status == models.EnrollmentStatusEnrolled {
				enrolled = append(enrolled, enrollment.StudentID)
			}
		}
		if err := s.sessions.UpsertAttendance(ctx, tx, rows); err != nil {
			return internalError(err, "failed to record attendance")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.queueDetection(enrolled, lessonDate)
	return &dto.SessionResponse{Session: *session, Attendance: rows}, nil
}

// UpdateSession edits the lesson markers and, when given, the attendance roll.
func (s *AttendanceService) UpdateSession(ctx context.Context, actor models.Actor, id string, req dto.UpdateSessionRequest) (*dto.SessionResponse, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid session payload")
	}
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "session not found", "failed to load session")
	}
	applyMarkers(session, req.LessonMarkers)
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, repoError(err, "session not found", "failed to update session")
	}

	rows, err := s.sessions.ListAttendance(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to load attendance")
	}
	if req.Present != nil {
		present := make(map[string]struct{}, len(req.Present))
		for _, studentID := range req.Present {
			present[studentID] = struct{}{}
		}
		var enrolled []string
		for i := range rows {
			_, rows[i].Present = present[rows[i].StudentID]
			enrolled = append(enrolled, rows[i].StudentID)
		}
		if err := s.sessions.UpsertAttendance(ctx, nil, rows); err != nil {
			return nil, internalError(err, "failed to update attendance")
		}
		s.queueDetection(enrolled, session.LessonDate)
	}
	return &dto.SessionResponse{Session: *session, Attendance: rows}, nil
}

// GetSession returns a session with its roll.
func (s *AttendanceService) GetSession(ctx context.Context, actor models.Actor, id string) (*dto.SessionResponse, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, err
	}
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "session not found", "failed to load session")
	}
	rows, err := s.sessions.ListAttendance(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to load attendance")
	}
	return &dto.SessionResponse{Session: *session, Attendance: rows}, nil
}

// ListSessions returns the sessions matching the filter.
func (s *AttendanceService) ListSessions(ctx context.Context, actor models.Actor, filter models.ClassSessionFilter) ([]models.ClassSession, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list sessions")
	}
	return sessions, nil
}

// StudentSummary returns totals and the attendance percentage of a student.
func (s *AttendanceService) StudentSummary(ctx context.Context, actor models.Actor, studentID string) (*models.AttendanceStats, error) {
	if !actor.Is(models.RoleAdmin, models.RoleTeacher) && !actor.IsStudent(studentID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient role for this operation")
	}
	stats, err := s.sessions.StudentStats(ctx, studentID)
	if err != nil {
		return nil, internalError(err, "failed to load attendance summary")
	}
	stats.Percentage = percentage(stats.Present, stats.Total)
	return stats, nil
}

// MonthlyFrequency returns per-month attendance percentages for the last months, oldest first.
func (s *AttendanceService) MonthlyFrequency(ctx context.Context, actor models.Actor, studentID string, today time.Time, months int) ([]models.MonthlyAttendance, error) {
	if !actor.Is(models.RoleAdmin, models.RoleTeacher) && !actor.IsStudent(studentID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient role for this operation")
	}
	if months <= 0 {
		months = 6
	}
	since := dates.MonthStart(dates.AddMonths(today, -(months - 1)))
	monthly, err := s.sessions.StudentMonthly(ctx, studentID, since)
	if err != nil {
		return nil, internalError(err, "failed to load monthly attendance")
	}
	for i := range monthly {
		monthly[i].Percentage = percentage(monthly[i].Present, monthly[i].Total)
	}
	return monthly, nil
}

// queueDetection evaluates the roll as of today, or the lesson date when it lies ahead, so a
// back-dated lesson never hides newer attendance from the detector.
func (s *AttendanceService) queueDetection(studentIDs []string, lessonDate time.Time) {
	if s.detector == nil {
		return
	}
	asOf := dates.Day(s.now())
	if lessonDate.After(asOf) {
		asOf = dates.Day(lessonDate)
	}
	for _, studentID := range studentIDs {
		job := jobs.Job{
			ID:      uuid.NewString(),
			Type:    AbsenceDetectionJobType,
			Key:     "absence:" + studentID,
			Payload: AbsenceDetectionPayload{StudentID: studentID, AsOf: asOf},
		}
		if err := s.detector.Enqueue(job); err != nil {
			s.logger.Warn("absence detection not queued", zap.String("student_id", studentID), zap.Error(err))
		}
	}
}

func applyMarkers(session *models.ClassSession, markers dto.LessonMarkers) {
	session.LastParagraph = markers.LastParagraph
	session.LastWord = markers.LastWord
	session.NewDictation = markers.NewDictation
	session.OldDictation = markers.OldDictation
	session.NewReading = markers.NewReading
	session.OldReading = markers.OldReading
	session.LessonCheck = markers.LessonCheck
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 100
}
