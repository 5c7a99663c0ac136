package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-backoffice/internal/models"
	"github.com/noah-isme/escola-backoffice/pkg/dates"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
	"github.com/noah-isme/escola-backoffice/pkg/jobs"
)

// AbsenceDetectionJobType identifies queued per-student detection jobs.
const AbsenceDetectionJobType = "absence_detection"

// AbsenceDetectionPayload is carried by queued detection jobs.
type AbsenceDetectionPayload struct {
	StudentID string
	AsOf      time.Time
}

// DetectionOutcome names what a detection pass did to a student's alert.
type DetectionOutcome string

const (
	DetectionNone     DetectionOutcome = "none"
	DetectionCreated  DetectionOutcome = "created"
	DetectionUpdated  DetectionOutcome = "updated"
	DetectionResolved DetectionOutcome = "resolved"
)

// DetectionSummary counts the outcomes of a full detection run.
type DetectionSummary struct {
	AsOf     time.Time `json:"as_of"`
	Students int       `json:"students"`
	Created  int       `json:"created"`
	Updated  int       `json:"updated"`
	Resolved int       `json:"resolved"`
	Failed   []string  `json:"failed,omitempty"`
}

// Total is the number of alerts created or updated.
func (s *DetectionSummary) Total() int {
	if s == nil {
		return 0
	}
	return s.Created + s.Updated
}

type alertRepository interface {
	FindByID(ctx context.Context, id string) (*models.AbsenceAlert, error)
	FindPendingByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.AbsenceAlert, error)
	Create(ctx context.Context, exec sqlx.ExtContext, alert *models.AbsenceAlert) (bool, error)
	UpdateCount(ctx context.Context, exec sqlx.ExtContext, id string, count int, classID *string) error
	Resolve(ctx context.Context, exec sqlx.ExtContext, id, note string, at time.Time) error
	ListPending(ctx context.Context) ([]models.AbsenceAlertDetail, error)
}

type attendanceHistoryReader interface {
	ListStudentHistory(ctx context.Context, studentID string, classIDs []string, since time.Time) ([]models.AttendanceEntry, error)
}

type enrolledClassReader interface {
	ClassIDsByStudent(ctx context.Context, studentID string, status models.EnrollmentStatus) ([]string, error)
	StudentIDsByStatus(ctx context.Context, status models.EnrollmentStatus) ([]string, error)
}

// AbsenceAlertConfig tunes the detector.
type AbsenceAlertConfig struct {
	LookbackDays int
	Threshold    int
}

// AbsenceAlertServiceParams groups AbsenceAlertService dependencies.
type AbsenceAlertServiceParams struct {
	Alerts      alertRepository
	History     attendanceHistoryReader
	Enrollments enrolledClassReader
	Tx          txProvider
	Cache       *CacheService
	Metrics     *MetricsService
	Logger      *zap.Logger
	Config      AbsenceAlertConfig
	Now         func() time.Time
}

// AbsenceAlertService keeps one pending alert per student with a run of consecutive absences.
type AbsenceAlertService struct {
	alerts      alertRepository
	history     attendanceHistoryReader
	enrollments enrolledClassReader
	tx          txProvider
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	cfg         AbsenceAlertConfig
	now         func() time.Time
}

// NewAbsenceAlertService constructs an AbsenceAlertService.
func NewAbsenceAlertService(params AbsenceAlertServiceParams) *AbsenceAlertService {
	cfg := params.Config
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 30
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &AbsenceAlertService{
		alerts:      params.Alerts,
		history:     params.History,
		enrollments: params.Enrollments,
		tx:          params.Tx,
		cache:       params.Cache,
		metrics:     params.Metrics,
		logger:      logger,
		cfg:         cfg,
		now:         now,
	}
}

// absenceStreak is the run of absences ending at the most recent lesson.
type absenceStreak struct {
	count   int
	start   time.Time
	classID string
}

// streakFrom scans entries ordered most recent first.
func streakFrom(entries []models.AttendanceEntry) absenceStreak {
	var streak absenceStreak
	for _, entry := range entries {
		if entry.Present {
			break
		}
		if streak.count == 0 {
			streak.classID = entry.ClassID
		}
		streak.count++
		streak.start = entry.LessonDate
	}
	return streak
}

// DetectForStudent reconciles the student's pending alert with their attendance up to asOf.
func (s *AbsenceAlertService) DetectForStudent(ctx context.Context, studentID string, asOf time.Time) (DetectionOutcome, error) {
	asOf = dates.Day(asOf)
	classIDs, err := s.enrollments.ClassIDsByStudent(ctx, studentID, models.EnrollmentStatusEnrolled)
	if err != nil {
		return DetectionNone, internalError(err, "failed to load enrolled classes")
	}
	since := asOf.AddDate(0, 0, -s.cfg.LookbackDays)
	history, err := s.history.ListStudentHistory(ctx, studentID, classIDs, since)
	if err != nil {
		return DetectionNone, internalError(err, "failed to load attendance history")
	}
	entries := history[:0:0]
	for _, entry := range history {
		if !entry.LessonDate.After(asOf) {
			entries = append(entries, entry)
		}
	}

	outcome := DetectionNone
	err = withinTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		pending, err := s.alerts.FindPendingByStudent(ctx, tx, studentID)
		if err != nil && !isNotFound(err) {
			return internalError(err, "failed to load pending alert")
		}

		if pending != nil && len(entries) > 0 && entries[0].Present {
			note := fmt.Sprintf("Resolvido automaticamente: presença em %s", entries[0].LessonDate.Format("02/01/2006"))
			if err := s.alerts.Resolve(ctx, tx, pending.ID, note, s.now().UTC()); err != nil {
				return internalError(err, "failed to resolve alert")
			}
			outcome = DetectionResolved
			return nil
		}

		streak := streakFrom(entries)
		if streak.count < s.cfg.Threshold {
			return nil
		}
		classID := streak.classID
		if pending != nil {
			if streak.count > pending.AbsenceCount {
				if err := s.alerts.UpdateCount(ctx, tx, pending.ID, streak.count, &classID); err != nil {
					return internalError(err, "failed to update alert")
				}
				outcome = DetectionUpdated
			}
			return nil
		}
		created, err := s.alerts.Create(ctx, tx, &models.AbsenceAlert{
			StudentID:    studentID,
			ClassID:      &classID,
			StreakStart:  streak.start,
			AbsenceCount: streak.count,
			Status:       models.AbsenceAlertPending,
		})
		if err != nil {
			return internalError(err, "failed to create alert")
		}
		if created {
			outcome = DetectionCreated
		}
		return nil
	})
	if err != nil {
		return DetectionNone, err
	}

	switch outcome {
	case DetectionCreated:
		s.metrics.RecordAbsenceAlert(AlertOutcomeCreated)
	case DetectionUpdated:
		s.metrics.RecordAbsenceAlert(AlertOutcomeUpdated)
	case DetectionResolved:
		s.metrics.RecordAbsenceAlert(AlertOutcomeResolved)
	}
	if outcome != DetectionNone {
		s.logger.Info("absence alert reconciled", zap.String("student_id", studentID), zap.String("outcome", string(outcome)))
		s.invalidateDashboard(ctx)
	}
	return outcome, nil
}

// DetectAll runs detection for every student with an enrolled enrollment. A failing student is
// logged and skipped; the aggregated error is returned with the summary.
func (s *AbsenceAlertService) DetectAll(ctx context.Context, asOf time.Time) (*DetectionSummary, error) {
	start := time.Now()
	asOf = dates.Day(asOf)
	summary := &DetectionSummary{AsOf: asOf}

	studentIDs, err := s.enrollments.StudentIDsByStatus(ctx, models.EnrollmentStatusEnrolled)
	if err != nil {
		err = internalError(err, "failed to load roster")
		s.metrics.ObserveJob("detect_absences", time.Since(start), err)
		return nil, err
	}
	summary.Students = len(studentIDs)

	for _, studentID := range studentIDs {
		if err := ctx.Err(); err != nil {
			s.metrics.ObserveJob("detect_absences", time.Since(start), err)
			return summary, err
		}
		outcome, err := s.DetectForStudent(ctx, studentID, asOf)
		if err != nil {
			s.logger.Error("absence detection failed", zap.String("student_id", studentID), zap.Error(err))
			summary.Failed = append(summary.Failed, studentID)
			continue
		}
		switch outcome {
		case DetectionCreated:
			summary.Created++
		case DetectionUpdated:
			summary.Updated++
		case DetectionResolved:
			summary.Resolved++
		}
	}

	var runErr error
	if len(summary.Failed) > 0 {
		runErr = appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("absence detection failed for %s", strings.Join(summary.Failed, ", ")))
	}
	s.metrics.ObserveJob("detect_absences", time.Since(start), runErr)
	s.logger.Info("absence detection finished",
		zap.Time("as_of", asOf),
		zap.Int("students", summary.Students),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("resolved", summary.Resolved),
	)
	return summary, runErr
}

// HandleJob consumes queued detection jobs. The evaluation date is never earlier than today.
func (s *AbsenceAlertService) HandleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(AbsenceDetectionPayload)
	if !ok {
		s.logger.Error("unexpected absence job payload", zap.String("job_id", job.ID))
		return nil
	}
	asOf := payload.AsOf
	if today := dates.Day(s.now()); today.After(asOf) {
		asOf = today
	}
	_, err := s.DetectForStudent(ctx, payload.StudentID, asOf)
	return err
}

// Resolve closes a pending alert manually.
func (s *AbsenceAlertService) Resolve(ctx context.Context, actor models.Actor, alertID, note string) (*models.AbsenceAlert, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "resolution note is required")
	}
	alert, err := s.alerts.FindByID(ctx, alertID)
	if err != nil {
		return nil, repoError(err, "alert not found", "failed to load alert")
	}
	if alert.Status != models.AbsenceAlertPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "alert already resolved")
	}
	at := s.now().UTC()
	if err := s.alerts.Resolve(ctx, nil, alertID, note, at); err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "alert already resolved")
		}
		return nil, internalError(err, "failed to resolve alert")
	}
	alert.Status = models.AbsenceAlertResolved
	alert.ResolutionNote = &note
	alert.ResolvedAt = &at
	s.metrics.RecordAbsenceAlert(AlertOutcomeResolved)
	s.invalidateDashboard(ctx)
	return alert, nil
}

// ListPending returns the open alerts.
func (s *AbsenceAlertService) ListPending(ctx context.Context, actor models.Actor) ([]models.AbsenceAlertDetail, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, err
	}
	alerts, err := s.alerts.ListPending(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list alerts")
	}
	return alerts, nil
}

func (s *AbsenceAlertService) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCachePattern); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}
