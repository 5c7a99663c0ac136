package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/models"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
)

type examRepository interface {
	CreateTemplate(ctx context.Context, exec sqlx.ExtContext, template *models.ExamTemplate) error
	CreateQuestion(ctx context.Context, exec sqlx.ExtContext, question *models.Question) error
	UpdateQuestion(ctx context.Context, question *models.Question) error
	ListTemplates(ctx context.Context) ([]models.ExamTemplate, error)
	FindTemplate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ExamTemplate, error)
	TotalPoints(ctx context.Context, exec sqlx.ExtContext, templateID string) (decimal.Decimal, error)
	CreateStudentExam(ctx context.Context, exam *models.StudentExam) error
	LockStudentExam(ctx context.Context, exec sqlx.ExtContext, id string) (*models.StudentExam, error)
	FindStudentExam(ctx context.Context, id string) (*models.StudentExam, error)
	ListStudentExams(ctx context.Context, studentID string) ([]models.StudentExam, error)
	UpdateStudentExam(ctx context.Context, exec sqlx.ExtContext, exam *models.StudentExam) error
	UpsertAnswer(ctx context.Context, exec sqlx.ExtContext, answer *models.StudentAnswer) error
	ListAnswers(ctx context.Context, exec sqlx.ExtContext, examID string) ([]models.StudentAnswer, error)
	SetAwardedPoints(ctx context.Context, exec sqlx.ExtContext, examID, questionID string, points decimal.Decimal) error
}

// ExamService authors templates and walks students through section-ordered exams.
type ExamService struct {
	repo      examRepository
	students  studentReader
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewExamService constructs ExamService.
func NewExamService(repo examRepository, students studentReader, tx txProvider, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{repo: repo, students: students, tx: tx, validator: validate, logger: logger, now: time.Now}
}

// CreateTemplate stores a template and its questions. Every question must belong to one of the sections.
func (s *ExamService) CreateTemplate(ctx context.Context, actor models.Actor, req dto.ExamTemplateRequest) (*models.ExamTemplate, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid template payload")
	}
	sections := make(map[models.QuestionType]struct{}, len(req.Sections))
	template := &models.ExamTemplate{Title: strings.TrimSpace(req.Title)}
	for _, section := range req.Sections {
		if _, dup := sections[section]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("section %s listed twice", section))
		}
		sections[section] = struct{}{}
		template.Sections = append(template.Sections, string(section))
	}
	for i, q := range req.Questions {
		if _, ok := sections[q.QuestionType]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d has no matching section", i+1))
		}
		if q.Points.IsNegative() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "question points must not be negative")
		}
		template.Questions = append(template.Questions, models.Question{
			QuestionType: q.QuestionType,
			Prompt:       q.Prompt,
			Options:      q.Options,
			Points:       q.Points.Round(2),
			Position:     i,
		})
	}

	err := withinTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		return s.persistTemplate(ctx, tx, template)
	})
	if err != nil {
		return nil, err
	}
	return template, nil
}

// CloneTemplate copies a template with fresh question rows.
func (s *ExamService) CloneTemplate(ctx context.Context, actor models.Actor, id, title string) (*models.ExamTemplate, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	var clone *models.ExamTemplate
	err := withinTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		source, err := s.repo.FindTemplate(ctx, tx, id)
		if err != nil {
			return repoError(err, "template not found", "failed to load template")
		}
		clone = &models.ExamTemplate{Title: title, Sections: append([]string(nil), source.Sections...)}
		for _, q := range source.Questions {
			q.ID = ""
			q.TemplateID = ""
			q.Options = append([]string(nil), q.Options...)
			clone.Questions = append(clone.Questions, q)
		}
		return s.persistTemplate(ctx, tx, clone)
	})
	if err != nil {
		return nil, err
	}
	return clone, nil
}

func (s *ExamService) persistTemplate(ctx context.Context, tx sqlx.ExtContext, template *models.ExamTemplate) error {
	if err := s.repo.CreateTemplate(ctx, tx, template); err != nil {
		return internalError(err, "failed to create template")
	}
	for i := range template.Questions {
		template.Questions[i].TemplateID = template.ID
		if err := s.repo.CreateQuestion(ctx, tx, &template.Questions[i]); err != nil {
			return internalError(err, "failed to create question")
		}
	}
	return nil
}

// UpdateQuestion edits a question. Finalized exams keep the max score captured when graded.
func (s *ExamService) UpdateQuestion(ctx context.Context, actor models.Actor, templateID, questionID string, req dto.UpdateQuestionRequest) (*models.Question, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid question payload")
	}
	if req.Points.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "question points must not be negative")
	}
	template, err := s.repo.FindTemplate(ctx, nil, templateID)
	if err != nil {
		return nil, repoError(err, "template not found", "failed to load template")
	}
	for i := range template.Questions {
		q := &template.Questions[i]
		if q.ID != questionID {
			continue
		}
		q.Prompt = req.Prompt
		q.Options = req.Options
		q.Points = req.Points.Round(2)
		if err := s.repo.UpdateQuestion(ctx, q); err != nil {
			return nil, repoError(err, "question not found", "failed to update question")
		}
		return q, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
}

// ListTemplates returns every template without questions.
func (s *ExamService) ListTemplates(ctx context.Context, actor models.Actor) ([]models.ExamTemplate, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, err
	}
	templates, err := s.repo.ListTemplates(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list templates")
	}
	return templates, nil
}

// GetTemplate returns a template with its questions.
func (s *ExamService) GetTemplate(ctx context.Context, actor models.Actor, id string) (*models.ExamTemplate, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, err
	}
	template, err := s.repo.FindTemplate(ctx, nil, id)
	if err != nil {
		return nil, repoError(err, "template not found", "failed to load template")
	}
	return template, nil
}

// ReleaseExam hands a template to a student as a not-started exam.
func (s *ExamService) ReleaseExam(ctx context.Context, actor models.Actor, studentID, templateID string) (*models.StudentExam, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, err
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		return nil, repoError(err, "student not found", "failed to load student")
	}
	template, err := s.repo.FindTemplate(ctx, nil, templateID)
	if err != nil {
		return nil, repoError(err, "template not found", "failed to load template")
	}
	if len(template.Sections) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "template has no sections")
	}
	exam := &models.StudentExam{StudentID: studentID, TemplateID: templateID, Status: models.StudentExamNotStarted}
	if err := s.repo.CreateStudentExam(ctx, exam); err != nil {
		return nil, internalError(err, "failed to release exam")
	}
	return exam, nil
}

// ListStudentExams returns the exams released to a student.
func (s *ExamService) ListStudentExams(ctx context.Context, actor models.Actor, studentID string) ([]models.StudentExam, error) {
	if !actor.Is(models.RoleAdmin, models.RoleTeacher) && !actor.IsStudent(studentID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient role for this operation")
	}
	exams, err := s.repo.ListStudentExams(ctx, studentID)
	if err != nil {
		return nil, internalError(err, "failed to list exams")
	}
	return exams, nil
}

// GetExam returns an exam and its answers.
func (s *ExamService) GetExam(ctx context.Context, actor models.Actor, examID string) (*dto.ExamDetail, error) {
	exam, err := s.repo.FindStudentExam(ctx, examID)
	if err != nil {
		return nil, repoError(err, "exam not found", "failed to load exam")
	}
	if err := canTakeExam(actor, exam); err != nil {
		return nil, err
	}
	answers, err := s.repo.ListAnswers(ctx, nil, examID)
	if err != nil {
		return nil, internalError(err, "failed to load answers")
	}
	return &dto.ExamDetail{Exam: *exam, Answers: answers}, nil
}

// OpenSection returns the questions of a section. The first access starts the exam.
// Sections cannot be skipped: index may not exceed the next section to answer.
func (s *ExamService) OpenSection(ctx context.Context, actor models.Actor, examID string, index int) (*dto.ExamSection, error) {
	var section *dto.ExamSection
	err := withinTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		exam, template, err := s.loadForDelivery(ctx, tx, actor, examID)
		if err != nil {
			return err
		}
		sectionType, questions, err := sectionQuestions(template, exam, index)
		if err != nil {
			return err
		}
		if exam.Status == models.StudentExamNotStarted {
			s.start(exam)
			if err := s.repo.UpdateStudentExam(ctx, tx, exam); err != nil {
				return internalError(err, "failed to start exam")
			}
		}
		section = &dto.ExamSection{Exam: *exam, Index: index, Type: sectionType, Questions: questions}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return section, nil
}

// SubmitSectionAnswers upserts answers of one section. Completing the last section closes the exam
// for grading. Submissions to a closed exam change nothing.
func (s *ExamService) SubmitSectionAnswers(ctx context.Context, actor models.Actor, examID string, index int, answers map[string]string) (*models.StudentExam, error) {
	var result *models.StudentExam
	err := withinTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		exam, template, err := s.loadForDelivery(ctx, tx, actor, examID)
		if err != nil {
			return err
		}
		result = exam
		if exam.Status.Closed() {
			return nil
		}
		_, questions, err := sectionQuestions(template, exam, index)
		if err != nil {
			return err
		}
		allowed := make(map[string]struct{}, len(questions))
		for _, q := range questions {
			allowed[q.ID] = struct{}{}
		}
		for questionID := range answers {
			if _, ok := allowed[questionID]; !ok {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %s is not part of section %d", questionID, index))
			}
		}
		for _, q := range questions {
			answer, ok := answers[q.ID]
			if !ok {
				continue
			}
			if err := s.repo.UpsertAnswer(ctx, tx, &models.StudentAnswer{StudentExamID: exam.ID, QuestionID: q.ID, Answer: answer}); err != nil {
				return internalError(err, "failed to store answer")
			}
		}

		if exam.Status == models.StudentExamNotStarted {
			s.start(exam)
		}
		if index == exam.NextSection {
			exam.NextSection++
		}
		if exam.NextSection >= len(template.Sections) {
			submitted := s.now().UTC()
			exam.Status = models.StudentExamAwaitingGrading
			exam.SubmittedAt = &submitted
		}
		if err := s.repo.UpdateStudentExam(ctx, tx, exam); err != nil {
			return internalError(err, "failed to update exam")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GradeExam stores awarded points, sums them into the score and snapshots the template's current
// maximum. The exam becomes finalized and a second grading is rejected with ErrFinalized.
func (s *ExamService) GradeExam(ctx context.Context, actor models.Actor, examID string, points map[string]decimal.Decimal) (*models.StudentExam, error) {
	if err := requireRole(actor, models.RoleAdmin, models.RoleTeacher); err != nil {
		return nil, err
	}
	var result *models.StudentExam
	err := withinTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		exam, err := s.repo.LockStudentExam(ctx, tx, examID)
		if err != nil {
			return repoError(err, "exam not found", "failed to load exam")
		}
		if exam.Status == models.StudentExamFinalized {
			return appErrors.Clone(appErrors.ErrFinalized, "exam already graded")
		}
		if exam.Status != models.StudentExamAwaitingGrading {
			return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot grade exam in status %s", exam.Status))
		}
		template, err := s.repo.FindTemplate(ctx, tx, exam.TemplateID)
		if err != nil {
			return repoError(err, "template not found", "failed to load template")
		}
		maxPoints := make(map[string]decimal.Decimal, len(template.Questions))
		for _, q := range template.Questions {
			maxPoints[q.ID] = q.Points
		}

		score := decimal.Zero
		for questionID, awarded := range points {
			limit, ok := maxPoints[questionID]
			if !ok {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %s is not part of the exam", questionID))
			}
			if awarded.IsNegative() || awarded.GreaterThan(limit) {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("points for question %s must be between 0 and %s", questionID, limit.StringFixed(2)))
			}
			if err := s.repo.SetAwardedPoints(ctx, tx, exam.ID, questionID, awarded); err != nil {
				return internalError(err, "failed to store points")
			}
			score = score.Add(awarded)
		}

		total, err := s.repo.TotalPoints(ctx, tx, exam.TemplateID)
		if err != nil {
			return internalError(err, "failed to sum template points")
		}
		graded := s.now().UTC()
		score = score.Round(2)
		total = total.Round(2)
		exam.Score = &score
		exam.MaxScore = &total
		exam.GradedAt = &graded
		exam.Status = models.StudentExamFinalized
		if err := s.repo.UpdateStudentExam(ctx, tx, exam); err != nil {
			return internalError(err, "failed to finalize exam")
		}
		result = exam
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("exam graded", zap.String("exam_id", examID), zap.String("score", result.Score.StringFixed(2)))
	return result, nil
}

func (s *ExamService) start(exam *models.StudentExam) {
	started := s.now().UTC()
	exam.Status = models.StudentExamInProgress
	exam.StartedAt = &started
}

func (s *ExamService) loadForDelivery(ctx context.Context, tx sqlx.ExtContext, actor models.Actor, examID string) (*models.StudentExam, *models.ExamTemplate, error) {
	exam, err := s.repo.LockStudentExam(ctx, tx, examID)
	if err != nil {
		return nil, nil, repoError(err, "exam not found", "failed to load exam")
	}
	if err := canTakeExam(actor, exam); err != nil {
		return nil, nil, err
	}
	template, err := s.repo.FindTemplate(ctx, tx, exam.TemplateID)
	if err != nil {
		return nil, nil, repoError(err, "template not found", "failed to load template")
	}
	return exam, template, nil
}

func canTakeExam(actor models.Actor, exam *models.StudentExam) error {
	if actor.Is(models.RoleAdmin, models.RoleTeacher) || actor.IsStudent(exam.StudentID) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "exam belongs to another student")
}

func sectionQuestions(template *models.ExamTemplate, exam *models.StudentExam, index int) (models.QuestionType, []models.Question, error) {
	sectionType, ok := template.SectionType(index)
	if !ok {
		return "", nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("section %d does not exist", index))
	}
	if index > exam.NextSection {
		return "", nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("section %d is not open yet", index))
	}
	var questions []models.Question
	for _, q := range template.Questions {
		if q.QuestionType == sectionType {
			questions = append(questions, q)
		}
	}
	return sectionType, questions, nil
}
