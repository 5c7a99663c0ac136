package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/models"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
)

type enrollmentRepoStub struct {
	enrollments []*models.Enrollment
	syncErr     error
	syncExec    sqlx.ExtContext
}

func (r *enrollmentRepoStub) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var out []models.EnrollmentDetail
	for _, e := range r.enrollments {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.ClassID != "" && e.ClassID != filter.ClassID {
			continue
		}
		out = append(out, models.EnrollmentDetail{Enrollment: *e})
	}
	return out, len(out), nil
}

func (r *enrollmentRepoStub) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	for _, e := range r.enrollments {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *enrollmentRepoStub) Create(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = "e-new"
	cp := *enrollment
	r.enrollments = append(r.enrollments, &cp)
	return nil
}

func (r *enrollmentRepoStub) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	for _, e := range r.enrollments {
		if e.ID == id {
			e.Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *enrollmentRepoStub) SyncStudentStatus(ctx context.Context, exec sqlx.ExtContext, studentID string, status models.EnrollmentStatus) (int64, error) {
	r.syncExec = exec
	if r.syncErr != nil {
		return 0, r.syncErr
	}
	var n int64
	for _, e := range r.enrollments {
		if e.StudentID == studentID && e.Status != models.EnrollmentStatusWithdrawn && e.Status != status {
			e.Status = status
			n++
		}
	}
	return n, nil
}

type studentRepoStub struct {
	students   map[string]*models.Student
	statusExec sqlx.ExtContext
}

func (r *studentRepoStub) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	return nil, 0, nil
}

func (r *studentRepoStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	st, ok := r.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *st
	return &cp, nil
}

func (r *studentRepoStub) ExistsCPF(ctx context.Context, cpf, excludeID string) (bool, error) {
	for id, st := range r.students {
		if id != excludeID && st.CPF != nil && *st.CPF == cpf {
			return true, nil
		}
	}
	return false, nil
}

func (r *studentRepoStub) Create(ctx context.Context, student *models.Student) error {
	student.ID = "s-new"
	cp := *student
	r.students[student.ID] = &cp
	return nil
}

func (r *studentRepoStub) Update(ctx context.Context, student *models.Student) error {
	cp := *student
	r.students[student.ID] = &cp
	return nil
}

func (r *studentRepoStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.StudentStatus) error {
	r.statusExec = exec
	st, ok := r.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	st.Status = status
	return nil
}

type classReaderStub map[string]*models.ClassGroup

func (s classReaderStub) FindByID(ctx context.Context, id string) (*models.ClassGroup, error) {
	c, ok := s[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func newRosterServices(t *testing.T, students *studentRepoStub, enrollments *enrollmentRepoStub) (*StudentService, *EnrollmentService, sqlmock.Sqlmock) {
	t.Helper()
	provider, mock := newTestTx(t)
	validate := dto.NewValidator()
	classes := classReaderStub{"class-a": {ID: "class-a", Name: "Turma A"}}
	enrollmentSvc := NewEnrollmentService(enrollments, students, classes, nil, validate, nil)
	return NewStudentService(students, enrollmentSvc, provider, validate, nil), enrollmentSvc, mock
}

func TestStudentStatusCascadesToEnrollments(t *testing.T) {
	students := &studentRepoStub{students: map[string]*models.Student{"s1": {ID: "s1", Status: models.StudentStatusActive}}}
	enrollments := &enrollmentRepoStub{enrollments: []*models.Enrollment{
		{ID: "e1", StudentID: "s1", ClassID: "class-a", Status: models.EnrollmentStatusEnrolled},
		{ID: "e2", StudentID: "s1", ClassID: "class-b", Status: models.EnrollmentStatusWithdrawn},
		{ID: "e3", StudentID: "s1", ClassID: "class-c", Status: models.EnrollmentStatusTrial},
	}}
	studentSvc, _, mock := newRosterServices(t, students, enrollments)
	expectCommits(mock, 2)

	resp, err := studentSvc.ChangeStatus(context.Background(), adminActor, "s1", models.StudentStatusInactive)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.EnrollmentsAffected)
	assert.Equal(t, models.StudentStatusInactive, resp.Student.Status)
	assert.Equal(t, models.EnrollmentStatusInactive, enrollments.enrollments[0].Status)
	assert.Equal(t, models.EnrollmentStatusWithdrawn, enrollments.enrollments[1].Status)
	assert.Equal(t, models.EnrollmentStatusInactive, enrollments.enrollments[2].Status)

	resp, err = studentSvc.ChangeStatus(context.Background(), adminActor, "s1", models.StudentStatusActive)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.EnrollmentsAffected)
	assert.Equal(t, models.EnrollmentStatusInactive, enrollments.enrollments[0].Status)
}

func TestStudentStatusRollsBackWhenEnrollmentSyncFails(t *testing.T) {
	students := &studentRepoStub{students: map[string]*models.Student{"s1": {ID: "s1", Status: models.StudentStatusActive}}}
	enrollments := &enrollmentRepoStub{
		enrollments: []*models.Enrollment{{ID: "e1", StudentID: "s1", ClassID: "class-a", Status: models.EnrollmentStatusEnrolled}},
		syncErr:     errors.New("connection reset"),
	}
	studentSvc, _, mock := newRosterServices(t, students, enrollments)
	expectRollback(mock)

	resp, err := studentSvc.ChangeStatus(context.Background(), adminActor, "s1", models.StudentStatusLocked)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))

	tx, ok := students.statusExec.(*sqlx.Tx)
	require.True(t, ok, "student status must be written inside the transaction")
	assert.Same(t, tx, enrollments.syncExec)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollments.enrollments[0].Status)
}

func TestEnrollmentServiceSyncIsIdempotent(t *testing.T) {
	students := &studentRepoStub{students: map[string]*models.Student{"s1": {ID: "s1", Status: models.StudentStatusLocked}}}
	enrollments := &enrollmentRepoStub{enrollments: []*models.Enrollment{
		{ID: "e1", StudentID: "s1", Status: models.EnrollmentStatusMonitoring},
	}}
	_, svc, _ := newRosterServices(t, students, enrollments)

	n, err := svc.SyncEnrollmentStatus(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = svc.SyncEnrollmentStatus(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	students := &studentRepoStub{students: map[string]*models.Student{"s1": {ID: "s1"}}}
	enrollments := &enrollmentRepoStub{}
	_, svc, _ := newRosterServices(t, students, enrollments)
	ctx := context.Background()

	enrollment, err := svc.Enroll(ctx, adminActor, dto.EnrollRequest{StudentID: "s1", ClassID: "class-a"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)

	_, err = svc.Enroll(ctx, adminActor, dto.EnrollRequest{StudentID: "s1", ClassID: "class-a", Status: models.EnrollmentStatusTrial})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = svc.Enroll(ctx, adminActor, dto.EnrollRequest{StudentID: "s1", ClassID: "missing"})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Enroll(ctx, teacherActor, dto.EnrollRequest{StudentID: "s1", ClassID: "class-a"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestEnrollmentServiceWithdrawnIsFinal(t *testing.T) {
	enrollments := &enrollmentRepoStub{enrollments: []*models.Enrollment{
		{ID: "e1", StudentID: "s1", ClassID: "class-a", Status: models.EnrollmentStatusWithdrawn},
	}}
	_, svc, _ := newRosterServices(t, &studentRepoStub{students: map[string]*models.Student{}}, enrollments)

	_, err := svc.UpdateStatus(context.Background(), adminActor, "e1", models.EnrollmentStatusEnrolled)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestStudentServiceRegistryRules(t *testing.T) {
	existing := "123.456.789-09"
	students := &studentRepoStub{students: map[string]*models.Student{"s1": {ID: "s1", FullName: "Ana", CPF: &existing}}}
	svc, _, _ := newRosterServices(t, students, &enrollmentRepoStub{})
	ctx := context.Background()

	cpf := "98765432100"
	state := "sp"
	birth := "2010-03-04"
	student, err := svc.Create(ctx, adminActor, dto.StudentRequest{FullName: " Bruno ", CPF: &cpf, State: &state, BirthDate: &birth})
	require.NoError(t, err)
	assert.Equal(t, "Bruno", student.FullName)
	assert.Equal(t, "987.654.321-00", *student.CPF)
	assert.Equal(t, "SP", *student.State)
	assert.Equal(t, day(2010, 3, 4), *student.BirthDate)

	dup := "12345678909"
	_, err = svc.Create(ctx, adminActor, dto.StudentRequest{FullName: "Carla", CPF: &dup})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = svc.Update(ctx, adminActor, "s1", dto.StudentRequest{FullName: "Ana", CPF: &dup})
	assert.NoError(t, err)

	badState := "XX"
	_, err = svc.Create(ctx, adminActor, dto.StudentRequest{FullName: "Davi", State: &badState})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	badCPF := "123.456"
	_, err = svc.Create(ctx, adminActor, dto.StudentRequest{FullName: "Eva", CPF: &badCPF})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestStudentServiceGetScopesStudents(t *testing.T) {
	students := &studentRepoStub{students: map[string]*models.Student{"s1": {ID: "s1"}, "s2": {ID: "s2"}}}
	svc, _, _ := newRosterServices(t, students, &enrollmentRepoStub{})

	_, err := svc.Get(context.Background(), studentActor("s1"), "s1")
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), studentActor("s1"), "s2")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
