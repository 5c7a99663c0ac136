package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/models"
	"github.com/noah-isme/escola-backoffice/pkg/jobs"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
)

type sessionRepoStub struct {
	sessions   map[string]*models.ClassSession
	attendance map[string][]models.Attendance
	stats      *models.AttendanceStats
	monthly    []models.MonthlyAttendance
}

func newSessionRepoStub() *sessionRepoStub {
	return &sessionRepoStub{sessions: map[string]*models.ClassSession{}, attendance: map[string][]models.Attendance{}}
}

func (r *sessionRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, session *models.ClassSession) error {
	session.ID = "sess-1"
	cp := *session
	r.sessions[session.ID] = &cp
	return nil
}

func (r *sessionRepoStub) Update(ctx context.Context, session *models.ClassSession) error {
	if _, ok := r.sessions[session.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *session
	r.sessions[session.ID] = &cp
	return nil
}

func (r *sessionRepoStub) FindByID(ctx context.Context, id string) (*models.ClassSession, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (r *sessionRepoStub) List(ctx context.Context, filter models.ClassSessionFilter) ([]models.ClassSession, error) {
	var out []models.ClassSession
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	return out, nil
}

func (r *sessionRepoStub) UpsertAttendance(ctx context.Context, exec sqlx.ExtContext, rows []models.Attendance) error {
	for _, row := range rows {
		list := r.attendance[row.SessionID]
		replaced := false
		for i := range list {
			if list[i].StudentID == row.StudentID {
				list[i] = row
				replaced = true
			}
		}
		if !replaced {
			list = append(list, row)
		}
		r.attendance[row.SessionID] = list
	}
	return nil
}

func (r *sessionRepoStub) ListAttendance(ctx context.Context, sessionID string) ([]models.Attendance, error) {
	return append([]models.Attendance(nil), r.attendance[sessionID]...), nil
}

func (r *sessionRepoStub) StudentStats(ctx context.Context, studentID string) (*models.AttendanceStats, error) {
	if r.stats == nil {
		return &models.AttendanceStats{}, nil
	}
	cp := *r.stats
	return &cp, nil
}

func (r *sessionRepoStub) StudentMonthly(ctx context.Context, studentID string, since time.Time) ([]models.MonthlyAttendance, error) {
	return r.monthly, nil
}

type rosterStub struct {
	enrollments []models.Enrollment
}

func (r *rosterStub) ListByClass(ctx context.Context, exec sqlx.ExtContext, classID string, statuses []models.EnrollmentStatus) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, e := range r.enrollments {
		if e.ClassID != classID {
			continue
		}
		for _, s := range statuses {
			if e.Status == s {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

type enqueuerStub struct {
	jobs []jobs.Job
	err  error
}

func (e *enqueuerStub) Enqueue(job jobs.Job) error {
	if e.err != nil {
		return e.err
	}
	e.jobs = append(e.jobs, job)
	return nil
}

func newAttendanceServiceForTest(t *testing.T, sessions *sessionRepoStub, roster *rosterStub, detector *enqueuerStub) (*AttendanceService, func(n int)) {
	provider, mock := newTestTx(t)
	svc := NewAttendanceService(AttendanceServiceParams{
		Sessions:    sessions,
		Enrollments: roster,
		Classes:     classReaderStub{"class-a": {ID: "class-a", Name: "Turma A"}},
		Detector:    detector,
		Tx:          provider,
		Now:         func() time.Time { return time.Date(2025, 5, 20, 18, 30, 0, 0, time.UTC) },
	})
	return svc, func(n int) { expectCommits(mock, n) }
}

func classRoster() *rosterStub {
	return &rosterStub{enrollments: []models.Enrollment{
		{ID: "e1", StudentID: "s1", ClassID: "class-a", Status: models.EnrollmentStatusEnrolled},
		{ID: "e2", StudentID: "s2", ClassID: "class-a", Status: models.EnrollmentStatusTrial},
		{ID: "e3", StudentID: "s3", ClassID: "class-a", Status: models.EnrollmentStatusWithdrawn},
		{ID: "e4", StudentID: "s4", ClassID: "class-a", Status: models.EnrollmentStatusEnrolled},
	}}
}

func TestAttendanceServiceRecordSession(t *testing.T) {
	sessions := newSessionRepoStub()
	detector := &enqueuerStub{}
	svc, commits := newAttendanceServiceForTest(t, sessions, classRoster(), detector)
	commits(1)

	paragraph := 12
	resp, err := svc.RecordSession(context.Background(), teacherActor, dto.RecordSessionRequest{
		ClassID:       "class-a",
		LessonDate:    "2025-05-09",
		Present:       []string{"s1", "s3", "outsider"},
		LessonMarkers: dto.LessonMarkers{LastParagraph: &paragraph},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Session.TeacherID)
	assert.Equal(t, "teacher-1", *resp.Session.TeacherID)
	assert.Equal(t, 12, *resp.Session.LastParagraph)
	assert.Equal(t, day(2025, 5, 9), resp.Session.LessonDate)

	roll := map[string]bool{}
	for _, row := range resp.Attendance {
		roll[row.StudentID] = row.Present
	}
	assert.Equal(t, map[string]bool{"s1": true, "s2": false, "s4": false}, roll)

	require.Len(t, detector.jobs, 2)
	assert.Equal(t, "absence:s1", detector.jobs[0].Key)
	assert.Equal(t, AbsenceDetectionPayload{StudentID: "s4", AsOf: day(2025, 5, 20)}, detector.jobs[1].Payload)
}

func TestAttendanceServiceBackdatedLessonDetectsAsOfToday(t *testing.T) {
	sessions := newSessionRepoStub()
	detector := &enqueuerStub{}
	svc, commits := newAttendanceServiceForTest(t, sessions, classRoster(), detector)
	commits(1)
	ctx := context.Background()

	_, err := svc.RecordSession(ctx, adminActor, dto.RecordSessionRequest{ClassID: "class-a", LessonDate: "2025-05-02", Present: []string{"s1"}})
	require.NoError(t, err)
	require.NotEmpty(t, detector.jobs)
	for _, job := range detector.jobs {
		assert.Equal(t, day(2025, 5, 20), job.Payload.(AbsenceDetectionPayload).AsOf)
	}

	detector.jobs = nil
	_, err = svc.UpdateSession(ctx, adminActor, "sess-1", dto.UpdateSessionRequest{Present: []string{"s4"}})
	require.NoError(t, err)
	require.NotEmpty(t, detector.jobs)
	for _, job := range detector.jobs {
		assert.Equal(t, day(2025, 5, 20), job.Payload.(AbsenceDetectionPayload).AsOf)
	}
}

func TestAttendanceServiceFutureLessonDetectsAsOfLessonDate(t *testing.T) {
	detector := &enqueuerStub{}
	svc, commits := newAttendanceServiceForTest(t, newSessionRepoStub(), classRoster(), detector)
	commits(1)

	_, err := svc.RecordSession(context.Background(), adminActor, dto.RecordSessionRequest{ClassID: "class-a", LessonDate: "2025-05-23"})
	require.NoError(t, err)
	require.NotEmpty(t, detector.jobs)
	assert.Equal(t, day(2025, 5, 23), detector.jobs[0].Payload.(AbsenceDetectionPayload).AsOf)
}

func TestAttendanceServiceRecordSessionSurvivesQueueFailure(t *testing.T) {
	svc, commits := newAttendanceServiceForTest(t, newSessionRepoStub(), classRoster(), &enqueuerStub{err: errors.New("queue full")})
	commits(1)

	_, err := svc.RecordSession(context.Background(), adminActor, dto.RecordSessionRequest{ClassID: "class-a", LessonDate: "2025-05-09"})
	require.NoError(t, err)
}

func TestAttendanceServiceRecordSessionRequiresStaff(t *testing.T) {
	svc, _ := newAttendanceServiceForTest(t, newSessionRepoStub(), classRoster(), &enqueuerStub{})
	_, err := svc.RecordSession(context.Background(), studentActor("s1"), dto.RecordSessionRequest{ClassID: "class-a", LessonDate: "2025-05-09"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.RecordSession(context.Background(), adminActor, dto.RecordSessionRequest{ClassID: "missing", LessonDate: "2025-05-09"})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestAttendanceServiceUpdateSessionRewritesRoll(t *testing.T) {
	sessions := newSessionRepoStub()
	detector := &enqueuerStub{}
	svc, commits := newAttendanceServiceForTest(t, sessions, classRoster(), detector)
	commits(1)
	ctx := context.Background()

	_, err := svc.RecordSession(ctx, adminActor, dto.RecordSessionRequest{ClassID: "class-a", LessonDate: "2025-05-09", Present: []string{"s1"}})
	require.NoError(t, err)

	word := "casa"
	resp, err := svc.UpdateSession(ctx, adminActor, "sess-1", dto.UpdateSessionRequest{LessonMarkers: dto.LessonMarkers{LastWord: &word}})
	require.NoError(t, err)
	assert.Equal(t, "casa", *resp.Session.LastWord)
	assert.True(t, resp.Attendance[0].Present)

	resp, err = svc.UpdateSession(ctx, adminActor, "sess-1", dto.UpdateSessionRequest{Present: []string{"s2"}})
	require.NoError(t, err)
	for _, row := range sessions.attendance["sess-1"] {
		assert.Equal(t, row.StudentID == "s2", row.Present, row.StudentID)
	}
	assert.Len(t, detector.jobs, 2+3)
}

func TestAttendanceServiceStudentSummary(t *testing.T) {
	sessions := newSessionRepoStub()
	sessions.stats = &models.AttendanceStats{Total: 3, Present: 2, Absent: 1}
	sessions.monthly = []models.MonthlyAttendance{{Month: day(2025, 4, 1), Total: 8, Present: 7}, {Month: day(2025, 5, 1)}}
	svc, _ := newAttendanceServiceForTest(t, sessions, classRoster(), nil)

	stats, err := svc.StudentSummary(context.Background(), studentActor("s1"), "s1")
	require.NoError(t, err)
	assert.InDelta(t, 66.67, stats.Percentage, 0.001)

	monthly, err := svc.MonthlyFrequency(context.Background(), teacherActor, "s1", day(2025, 5, 20), 0)
	require.NoError(t, err)
	assert.InDelta(t, 87.5, monthly[0].Percentage, 0.001)
	assert.Zero(t, monthly[1].Percentage)

	_, err = svc.StudentSummary(context.Background(), studentActor("s2"), "s1")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
