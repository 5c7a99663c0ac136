package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/models"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
)

type examRepoStub struct {
	templates map[string]*models.ExamTemplate
	exams     map[string]*models.StudentExam
	answers   map[string]map[string]*models.StudentAnswer
	seq       int
}

func newExamRepoStub() *examRepoStub {
	return &examRepoStub{
		templates: map[string]*models.ExamTemplate{},
		exams:     map[string]*models.StudentExam{},
		answers:   map[string]map[string]*models.StudentAnswer{},
	}
}

func (r *examRepoStub) nextID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

func (r *examRepoStub) CreateTemplate(ctx context.Context, exec sqlx.ExtContext, template *models.ExamTemplate) error {
	template.ID = r.nextID("tpl")
	r.templates[template.ID] = &models.ExamTemplate{ID: template.ID, Title: template.Title, Sections: template.Sections}
	return nil
}

func (r *examRepoStub) CreateQuestion(ctx context.Context, exec sqlx.ExtContext, question *models.Question) error {
	question.ID = r.nextID("q")
	tpl := r.templates[question.TemplateID]
	tpl.Questions = append(tpl.Questions, *question)
	return nil
}

func (r *examRepoStub) UpdateQuestion(ctx context.Context, question *models.Question) error {
	tpl := r.templates[question.TemplateID]
	for i := range tpl.Questions {
		if tpl.Questions[i].ID == question.ID {
			tpl.Questions[i] = *question
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *examRepoStub) ListTemplates(ctx context.Context) ([]models.ExamTemplate, error) {
	var out []models.ExamTemplate
	for _, tpl := range r.templates {
		out = append(out, models.ExamTemplate{ID: tpl.ID, Title: tpl.Title, Sections: tpl.Sections})
	}
	return out, nil
}

func (r *examRepoStub) FindTemplate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ExamTemplate, error) {
	tpl, ok := r.templates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *tpl
	cp.Questions = append([]models.Question(nil), tpl.Questions...)
	return &cp, nil
}

func (r *examRepoStub) TotalPoints(ctx context.Context, exec sqlx.ExtContext, templateID string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, q := range r.templates[templateID].Questions {
		total = total.Add(q.Points)
	}
	return total, nil
}

func (r *examRepoStub) CreateStudentExam(ctx context.Context, exam *models.StudentExam) error {
	exam.ID = r.nextID("exam")
	cp := *exam
	r.exams[exam.ID] = &cp
	return nil
}

func (r *examRepoStub) LockStudentExam(ctx context.Context, exec sqlx.ExtContext, id string) (*models.StudentExam, error) {
	return r.FindStudentExam(ctx, id)
}

func (r *examRepoStub) FindStudentExam(ctx context.Context, id string) (*models.StudentExam, error) {
	exam, ok := r.exams[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *exam
	return &cp, nil
}

func (r *examRepoStub) ListStudentExams(ctx context.Context, studentID string) ([]models.StudentExam, error) {
	var out []models.StudentExam
	for _, exam := range r.exams {
		if exam.StudentID == studentID {
			out = append(out, *exam)
		}
	}
	return out, nil
}

func (r *examRepoStub) UpdateStudentExam(ctx context.Context, exec sqlx.ExtContext, exam *models.StudentExam) error {
	cp := *exam
	r.exams[exam.ID] = &cp
	return nil
}

func (r *examRepoStub) UpsertAnswer(ctx context.Context, exec sqlx.ExtContext, answer *models.StudentAnswer) error {
	if r.answers[answer.StudentExamID] == nil {
		r.answers[answer.StudentExamID] = map[string]*models.StudentAnswer{}
	}
	cp := *answer
	r.answers[answer.StudentExamID][answer.QuestionID] = &cp
	return nil
}

func (r *examRepoStub) ListAnswers(ctx context.Context, exec sqlx.ExtContext, examID string) ([]models.StudentAnswer, error) {
	var out []models.StudentAnswer
	for _, a := range r.answers[examID] {
		out = append(out, *a)
	}
	return out, nil
}

func (r *examRepoStub) SetAwardedPoints(ctx context.Context, exec sqlx.ExtContext, examID, questionID string, points decimal.Decimal) error {
	a, ok := r.answers[examID][questionID]
	if !ok {
		a = &models.StudentAnswer{StudentExamID: examID, QuestionID: questionID}
		r.UpsertAnswer(ctx, exec, a)
		a = r.answers[examID][questionID]
	}
	p := points
	a.AwardedPoints = &p
	return nil
}

type examFixture struct {
	svc      *ExamService
	repo     *examRepoStub
	commits  func(n int)
	rollback func()
}

func newExamFixture(t *testing.T) *examFixture {
	provider, mock := newTestTx(t)
	repo := newExamRepoStub()
	students := &studentRepoStub{students: map[string]*models.Student{"s1": {ID: "s1"}, "s2": {ID: "s2"}}}
	svc := NewExamService(repo, students, provider, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC) }
	return &examFixture{
		svc:      svc,
		repo:     repo,
		commits:  func(n int) { expectCommits(mock, n) },
		rollback: func() { expectRollback(mock) },
	}
}

func (f *examFixture) template(t *testing.T) *models.ExamTemplate {
	f.commits(1)
	tpl, err := f.svc.CreateTemplate(context.Background(), teacherActor, dto.ExamTemplateRequest{
		Title:    "Prova bimestral",
		Sections: []models.QuestionType{models.QuestionTypeMultipleChoice, models.QuestionTypeEssay},
		Questions: []dto.QuestionRequest{
			{QuestionType: models.QuestionTypeMultipleChoice, Prompt: "2+2?", Options: []string{"3", "4"}, Points: dec("2")},
			{QuestionType: models.QuestionTypeMultipleChoice, Prompt: "3+3?", Options: []string{"6", "7"}, Points: dec("2")},
			{QuestionType: models.QuestionTypeEssay, Prompt: "Descreva suas férias", Points: dec("6")},
		},
	})
	require.NoError(t, err)
	return tpl
}

func TestExamServiceCreateTemplateRejectsOrphanQuestion(t *testing.T) {
	f := newExamFixture(t)
	_, err := f.svc.CreateTemplate(context.Background(), teacherActor, dto.ExamTemplateRequest{
		Title:     "Prova",
		Sections:  []models.QuestionType{models.QuestionTypeEssay},
		Questions: []dto.QuestionRequest{{QuestionType: models.QuestionTypeDictation, Prompt: "Ditado", Points: dec("1")}},
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.CreateTemplate(context.Background(), studentActor("s1"), dto.ExamTemplateRequest{})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestExamServiceFullFlowSnapshotsMaxScore(t *testing.T) {
	f := newExamFixture(t)
	ctx := context.Background()
	tpl := f.template(t)
	mc1, mc2, essay := tpl.Questions[0].ID, tpl.Questions[1].ID, tpl.Questions[2].ID

	exam, err := f.svc.ReleaseExam(ctx, teacherActor, "s1", tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StudentExamNotStarted, exam.Status)

	student := studentActor("s1")
	f.rollback()
	_, err = f.svc.OpenSection(ctx, student, exam.ID, 1)
	assert.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))

	f.commits(1)
	section, err := f.svc.OpenSection(ctx, student, exam.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.QuestionTypeMultipleChoice, section.Type)
	assert.Len(t, section.Questions, 2)
	assert.Equal(t, models.StudentExamInProgress, section.Exam.Status)

	f.commits(1)
	updated, err := f.svc.SubmitSectionAnswers(ctx, student, exam.ID, 0, map[string]string{mc1: "4", mc2: "6"})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.NextSection)

	f.rollback()
	_, err = f.svc.SubmitSectionAnswers(ctx, student, exam.ID, 1, map[string]string{mc1: "3"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	f.commits(1)
	updated, err = f.svc.SubmitSectionAnswers(ctx, student, exam.ID, 1, map[string]string{essay: "Fui à praia"})
	require.NoError(t, err)
	assert.Equal(t, models.StudentExamAwaitingGrading, updated.Status)
	require.NotNil(t, updated.SubmittedAt)

	f.commits(1)
	again, err := f.svc.SubmitSectionAnswers(ctx, student, exam.ID, 1, map[string]string{essay: "Mudei de ideia"})
	require.NoError(t, err)
	assert.Equal(t, models.StudentExamAwaitingGrading, again.Status)
	assert.Equal(t, "Fui à praia", f.repo.answers[exam.ID][essay].Answer)

	f.rollback()
	_, err = f.svc.GradeExam(ctx, teacherActor, exam.ID, map[string]decimal.Decimal{essay: dec("7")})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	f.commits(1)
	graded, err := f.svc.GradeExam(ctx, teacherActor, exam.ID, map[string]decimal.Decimal{mc1: dec("2"), mc2: dec("0"), essay: dec("4.5")})
	require.NoError(t, err)
	assert.Equal(t, models.StudentExamFinalized, graded.Status)
	assert.True(t, graded.Score.Equal(dec("6.5")))
	assert.True(t, graded.MaxScore.Equal(dec("10")))

	_, err = f.svc.UpdateQuestion(ctx, teacherActor, tpl.ID, essay, dto.UpdateQuestionRequest{Prompt: "Descreva suas férias", Points: dec("10")})
	require.NoError(t, err)
	stored, err := f.svc.GetExam(ctx, student, exam.ID)
	require.NoError(t, err)
	assert.True(t, stored.Exam.MaxScore.Equal(dec("10")))

	f.rollback()
	_, err = f.svc.GradeExam(ctx, teacherActor, exam.ID, map[string]decimal.Decimal{essay: dec("1")})
	assert.True(t, appErrors.Is(err, appErrors.ErrFinalized))
	assert.True(t, f.repo.exams[exam.ID].Score.Equal(dec("6.5")))
}

func TestExamServiceGradeBeforeSubmissionIsInvalidTransition(t *testing.T) {
	f := newExamFixture(t)
	tpl := f.template(t)
	exam, err := f.svc.ReleaseExam(context.Background(), adminActor, "s1", tpl.ID)
	require.NoError(t, err)

	f.rollback()
	_, err = f.svc.GradeExam(context.Background(), teacherActor, exam.ID, map[string]decimal.Decimal{})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
	assert.False(t, appErrors.Is(err, appErrors.ErrFinalized))
}

func TestExamServiceOtherStudentCannotTakeExam(t *testing.T) {
	f := newExamFixture(t)
	tpl := f.template(t)
	exam, err := f.svc.ReleaseExam(context.Background(), adminActor, "s1", tpl.ID)
	require.NoError(t, err)

	f.rollback()
	_, err = f.svc.OpenSection(context.Background(), studentActor("s2"), exam.ID, 0)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestExamServiceCloneTemplate(t *testing.T) {
	f := newExamFixture(t)
	tpl := f.template(t)

	f.commits(1)
	clone, err := f.svc.CloneTemplate(context.Background(), teacherActor, tpl.ID, "Recuperação")
	require.NoError(t, err)
	assert.NotEqual(t, tpl.ID, clone.ID)
	assert.Equal(t, []string(tpl.Sections), []string(clone.Sections))
	require.Len(t, clone.Questions, 3)
	assert.NotEqual(t, tpl.Questions[0].ID, clone.Questions[0].ID)
	assert.Equal(t, clone.ID, clone.Questions[0].TemplateID)
}
