package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/escola-backoffice/internal/models"
	"github.com/noah-isme/escola-backoffice/pkg/jobs"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
)

type alertRepoStub struct {
	alerts []*models.AbsenceAlert
}

func (r *alertRepoStub) FindByID(ctx context.Context, id string) (*models.AbsenceAlert, error) {
	for _, a := range r.alerts {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *alertRepoStub) FindPendingByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.AbsenceAlert, error) {
	for _, a := range r.alerts {
		if a.StudentID == studentID && a.Status == models.AbsenceAlertPending {
			cp := *a
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *alertRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, alert *models.AbsenceAlert) (bool, error) {
	if _, err := r.FindPendingByStudent(ctx, exec, alert.StudentID); err == nil {
		return false, nil
	}
	alert.ID = "alert-" + alert.StudentID
	cp := *alert
	r.alerts = append(r.alerts, &cp)
	return true, nil
}

func (r *alertRepoStub) UpdateCount(ctx context.Context, exec sqlx.ExtContext, id string, count int, classID *string) error {
	for _, a := range r.alerts {
		if a.ID == id && a.Status == models.AbsenceAlertPending {
			a.AbsenceCount = count
			a.ClassID = classID
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *alertRepoStub) Resolve(ctx context.Context, exec sqlx.ExtContext, id, note string, at time.Time) error {
	for _, a := range r.alerts {
		if a.ID == id && a.Status == models.AbsenceAlertPending {
			a.Status = models.AbsenceAlertResolved
			a.ResolutionNote = &note
			a.ResolvedAt = &at
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *alertRepoStub) ListPending(ctx context.Context) ([]models.AbsenceAlertDetail, error) {
	var out []models.AbsenceAlertDetail
	for _, a := range r.alerts {
		if a.Status == models.AbsenceAlertPending {
			out = append(out, models.AbsenceAlertDetail{AbsenceAlert: *a})
		}
	}
	return out, nil
}

func (r *alertRepoStub) pending(studentID string) []*models.AbsenceAlert {
	var out []*models.AbsenceAlert
	for _, a := range r.alerts {
		if a.StudentID == studentID && a.Status == models.AbsenceAlertPending {
			out = append(out, a)
		}
	}
	return out
}

type historyStub struct {
	entries map[string][]models.AttendanceEntry
}

func (h *historyStub) record(studentID, classID string, lesson time.Time, present bool) {
	if h.entries == nil {
		h.entries = map[string][]models.AttendanceEntry{}
	}
	h.entries[studentID] = append(h.entries[studentID], models.AttendanceEntry{
		StudentID:  studentID,
		ClassID:    classID,
		LessonDate: lesson,
		Present:    present,
	})
}

func (h *historyStub) ListStudentHistory(ctx context.Context, studentID string, classIDs []string, since time.Time) ([]models.AttendanceEntry, error) {
	allowed := map[string]bool{}
	for _, id := range classIDs {
		allowed[id] = true
	}
	var out []models.AttendanceEntry
	for _, e := range h.entries[studentID] {
		if allowed[e.ClassID] && !e.LessonDate.Before(since) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LessonDate.After(out[j].LessonDate) })
	return out, nil
}

type enrolledClassesStub struct {
	classes map[string][]string
}

func (s *enrolledClassesStub) ClassIDsByStudent(ctx context.Context, studentID string, status models.EnrollmentStatus) ([]string, error) {
	return s.classes[studentID], nil
}

func (s *enrolledClassesStub) StudentIDsByStatus(ctx context.Context, status models.EnrollmentStatus) ([]string, error) {
	ids := make([]string, 0, len(s.classes))
	for id := range s.classes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

type alertFixture struct {
	svc     *AbsenceAlertService
	alerts  *alertRepoStub
	history *historyStub
	commits func(n int)
}

func newAlertFixture(t *testing.T, classes map[string][]string) *alertFixture {
	provider, mock := newTestTx(t)
	f := &alertFixture{
		alerts:  &alertRepoStub{},
		history: &historyStub{},
		commits: func(n int) { expectCommits(mock, n) },
	}
	f.svc = NewAbsenceAlertService(AbsenceAlertServiceParams{
		Alerts:      f.alerts,
		History:     f.history,
		Enrollments: &enrolledClassesStub{classes: classes},
		Tx:          provider,
		Config:      AbsenceAlertConfig{LookbackDays: 30, Threshold: 3},
		Now:         func() time.Time { return time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC) },
	})
	return f
}

func TestAbsenceAlertLifecycle(t *testing.T) {
	f := newAlertFixture(t, map[string][]string{"s1": {"class-a"}})
	ctx := context.Background()
	f.history.record("s1", "class-a", day(2025, 5, 2), true)
	f.history.record("s1", "class-a", day(2025, 5, 5), false)
	f.history.record("s1", "class-a", day(2025, 5, 7), false)
	f.history.record("s1", "class-a", day(2025, 5, 9), false)
	f.commits(5)

	outcome, err := f.svc.DetectForStudent(ctx, "s1", day(2025, 5, 9))
	require.NoError(t, err)
	assert.Equal(t, DetectionCreated, outcome)
	pending := f.alerts.pending("s1")
	require.Len(t, pending, 1)
	assert.Equal(t, 3, pending[0].AbsenceCount)
	assert.Equal(t, day(2025, 5, 5), pending[0].StreakStart)
	require.NotNil(t, pending[0].ClassID)
	assert.Equal(t, "class-a", *pending[0].ClassID)

	outcome, err = f.svc.DetectForStudent(ctx, "s1", day(2025, 5, 9))
	require.NoError(t, err)
	assert.Equal(t, DetectionNone, outcome)
	assert.Len(t, f.alerts.alerts, 1)

	f.history.record("s1", "class-a", day(2025, 5, 12), false)
	outcome, err = f.svc.DetectForStudent(ctx, "s1", day(2025, 5, 12))
	require.NoError(t, err)
	assert.Equal(t, DetectionUpdated, outcome)
	assert.Equal(t, 4, f.alerts.pending("s1")[0].AbsenceCount)
	assert.Len(t, f.alerts.alerts, 1)

	f.history.record("s1", "class-a", day(2025, 5, 14), true)
	outcome, err = f.svc.DetectForStudent(ctx, "s1", day(2025, 5, 14))
	require.NoError(t, err)
	assert.Equal(t, DetectionResolved, outcome)
	assert.Empty(t, f.alerts.pending("s1"))
	require.NotNil(t, f.alerts.alerts[0].ResolutionNote)
	assert.Equal(t, "Resolvido automaticamente: presença em 14/05/2025", *f.alerts.alerts[0].ResolutionNote)

	outcome, err = f.svc.DetectForStudent(ctx, "s1", day(2025, 5, 14))
	require.NoError(t, err)
	assert.Equal(t, DetectionNone, outcome)
}

func TestAbsenceAlertBelowThreshold(t *testing.T) {
	f := newAlertFixture(t, map[string][]string{"s1": {"class-a"}})
	f.history.record("s1", "class-a", day(2025, 5, 5), false)
	f.history.record("s1", "class-a", day(2025, 5, 7), false)
	f.commits(1)

	outcome, err := f.svc.DetectForStudent(context.Background(), "s1", day(2025, 5, 9))
	require.NoError(t, err)
	assert.Equal(t, DetectionNone, outcome)
	assert.Empty(t, f.alerts.alerts)
}

func TestAbsenceAlertIgnoresLessonsAfterAsOf(t *testing.T) {
	f := newAlertFixture(t, map[string][]string{"s1": {"class-a"}})
	f.history.record("s1", "class-a", day(2025, 5, 5), false)
	f.history.record("s1", "class-a", day(2025, 5, 7), false)
	f.history.record("s1", "class-a", day(2025, 5, 9), false)
	f.history.record("s1", "class-a", day(2025, 5, 12), false)
	f.commits(1)

	outcome, err := f.svc.DetectForStudent(context.Background(), "s1", day(2025, 5, 9))
	require.NoError(t, err)
	assert.Equal(t, DetectionCreated, outcome)
	assert.Equal(t, 3, f.alerts.pending("s1")[0].AbsenceCount)
}

func TestAbsenceAlertSpansEnrolledClasses(t *testing.T) {
	f := newAlertFixture(t, map[string][]string{"s1": {"class-a", "class-b"}})
	f.history.record("s1", "class-a", day(2025, 5, 5), false)
	f.history.record("s1", "class-b", day(2025, 5, 6), false)
	f.history.record("s1", "class-a", day(2025, 5, 7), false)
	f.history.record("s1", "class-c", day(2025, 5, 8), true)
	f.commits(1)

	outcome, err := f.svc.DetectForStudent(context.Background(), "s1", day(2025, 5, 9))
	require.NoError(t, err)
	assert.Equal(t, DetectionCreated, outcome)
	assert.Equal(t, "class-a", *f.alerts.pending("s1")[0].ClassID)
}

func TestAbsenceAlertDetectAll(t *testing.T) {
	f := newAlertFixture(t, map[string][]string{"s1": {"class-a"}, "s2": {"class-a"}})
	for _, d := range []int{5, 7, 9} {
		f.history.record("s1", "class-a", day(2025, 5, d), false)
		f.history.record("s2", "class-a", day(2025, 5, d), d != 9)
	}
	f.commits(2)

	summary, err := f.svc.DetectAll(context.Background(), day(2025, 5, 9))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Students)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Total())
}

func TestAbsenceAlertHandleJob(t *testing.T) {
	f := newAlertFixture(t, map[string][]string{"s1": {"class-a"}})
	for _, d := range []int{5, 7, 9} {
		f.history.record("s1", "class-a", day(2025, 5, d), false)
	}
	f.commits(1)

	err := f.svc.HandleJob(context.Background(), jobs.Job{
		ID:      "j1",
		Type:    AbsenceDetectionJobType,
		Payload: AbsenceDetectionPayload{StudentID: "s1", AsOf: day(2025, 5, 9)},
	})
	require.NoError(t, err)
	assert.Len(t, f.alerts.pending("s1"), 1)

	assert.NoError(t, f.svc.HandleJob(context.Background(), jobs.Job{ID: "j2", Payload: "garbage"}))
}

func TestAbsenceAlertJobForOldLessonKeepsAlertWhileStillAbsent(t *testing.T) {
	f := newAlertFixture(t, map[string][]string{"s1": {"class-a"}})
	f.history.record("s1", "class-a", day(2025, 5, 2), true)
	for _, d := range []int{5, 7, 9} {
		f.history.record("s1", "class-a", day(2025, 5, d), false)
	}
	f.commits(2)
	ctx := context.Background()

	outcome, err := f.svc.DetectForStudent(ctx, "s1", day(2025, 5, 9))
	require.NoError(t, err)
	require.Equal(t, DetectionCreated, outcome)

	err = f.svc.HandleJob(ctx, jobs.Job{ID: "edit", Type: AbsenceDetectionJobType, Payload: AbsenceDetectionPayload{StudentID: "s1", AsOf: day(2025, 5, 2)}})
	require.NoError(t, err)
	require.Len(t, f.alerts.pending("s1"), 1)
	assert.Equal(t, 3, f.alerts.pending("s1")[0].AbsenceCount)
}

func TestAbsenceAlertJobForLateLessonFollowsNewestRecord(t *testing.T) {
	f := newAlertFixture(t, map[string][]string{"s1": {"class-a"}})
	for _, d := range []int{5, 7, 9} {
		f.history.record("s1", "class-a", day(2025, 5, d), false)
	}
	f.history.record("s1", "class-a", day(2025, 5, 12), true)
	f.commits(1)

	err := f.svc.HandleJob(context.Background(), jobs.Job{ID: "late", Type: AbsenceDetectionJobType, Payload: AbsenceDetectionPayload{StudentID: "s1", AsOf: day(2025, 5, 9)}})
	require.NoError(t, err)
	assert.Empty(t, f.alerts.pending("s1"))
}

func TestAbsenceAlertManualResolve(t *testing.T) {
	f := newAlertFixture(t, nil)
	f.alerts.alerts = []*models.AbsenceAlert{{ID: "a1", StudentID: "s1", AbsenceCount: 3, Status: models.AbsenceAlertPending}}

	_, err := f.svc.Resolve(context.Background(), teacherActor, "a1", "  ")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	alert, err := f.svc.Resolve(context.Background(), teacherActor, "a1", "Família contatada")
	require.NoError(t, err)
	assert.Equal(t, models.AbsenceAlertResolved, alert.Status)
	assert.Equal(t, time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC), *alert.ResolvedAt)

	_, err = f.svc.Resolve(context.Background(), teacherActor, "a1", "de novo")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))

	_, err = f.svc.Resolve(context.Background(), studentActor("s1"), "a1", "x")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
