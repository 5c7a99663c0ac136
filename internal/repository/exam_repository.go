package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/escola-backoffice/internal/models"
)

const studentExamColumns = `id, student_id, template_id, status, next_section, score, max_score, started_at, submitted_at, graded_at, created_at`

// ExamRepository persists exam templates, questions, student exams and answers.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs an ExamRepository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

func (r *ExamRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateTemplate inserts a template row.
func (r *ExamRepository) CreateTemplate(ctx context.Context, exec sqlx.ExtContext, template *models.ExamTemplate) error {
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	if template.CreatedAt.IsZero() {
		template.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO exam_templates (id, title, sections, created_at) VALUES (:id, :title, :sections, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, template); err != nil {
		return fmt.Errorf("create exam template: %w", err)
	}
	return nil
}

// CreateQuestion inserts a question row.
func (r *ExamRepository) CreateQuestion(ctx context.Context, exec sqlx.ExtContext, question *models.Question) error {
	if question.ID == "" {
		question.ID = uuid.NewString()
	}
	const query = `INSERT INTO exam_questions (id, template_id, question_type, prompt, options, points, position)
        VALUES (:id, :template_id, :question_type, :prompt, :options, :points, :position)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, question); err != nil {
		return fmt.Errorf("create exam question: %w", err)
	}
	return nil
}

// UpdateQuestion stores prompt, options and points of a question.
func (r *ExamRepository) UpdateQuestion(ctx context.Context, question *models.Question) error {
	const query = `UPDATE exam_questions SET prompt = :prompt, options = :options, points = :points WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, question)
	if err != nil {
		return fmt.Errorf("update exam question: %w", err)
	}
	return requireAffected(res)
}

// ListTemplates returns templates without questions.
func (r *ExamRepository) ListTemplates(ctx context.Context) ([]models.ExamTemplate, error) {
	const query = `SELECT id, title, sections, created_at FROM exam_templates ORDER BY created_at DESC`
	var templates []models.ExamTemplate
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("list exam templates: %w", err)
	}
	return templates, nil
}

// FindTemplate returns a template with its questions ordered by section type and position.
func (r *ExamRepository) FindTemplate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ExamTemplate, error) {
	const query = `SELECT id, title, sections, created_at FROM exam_templates WHERE id = $1`
	var template models.ExamTemplate
	if err := sqlx.GetContext(ctx, r.exec(exec), &template, query, id); err != nil {
		return nil, err
	}
	const questionsQuery = `SELECT id, template_id, question_type, prompt, options, points, position
        FROM exam_questions WHERE template_id = $1 ORDER BY position, id`
	if err := sqlx.SelectContext(ctx, r.exec(exec), &template.Questions, questionsQuery, id); err != nil {
		return nil, fmt.Errorf("list exam questions: %w", err)
	}
	return &template, nil
}

// TotalPoints sums the points of every question currently in the template.
func (r *ExamRepository) TotalPoints(ctx context.Context, exec sqlx.ExtContext, templateID string) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(points), 0) FROM exam_questions WHERE template_id = $1`
	var total decimal.Decimal
	if err := sqlx.GetContext(ctx, r.exec(exec), &total, query, templateID); err != nil {
		return decimal.Zero, fmt.Errorf("sum exam points: %w", err)
	}
	return total, nil
}

// CreateStudentExam inserts a released exam.
func (r *ExamRepository) CreateStudentExam(ctx context.Context, exam *models.StudentExam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO student_exams (id, student_id, template_id, status, next_section, created_at)
        VALUES (:id, :student_id, :template_id, :status, :next_section, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create student exam: %w", err)
	}
	return nil
}

// LockStudentExam loads a student exam holding a row lock.
func (r *ExamRepository) LockStudentExam(ctx context.Context, exec sqlx.ExtContext, id string) (*models.StudentExam, error) {
	query := "SELECT " + studentExamColumns + " FROM student_exams WHERE id = $1 FOR UPDATE"
	var exam models.StudentExam
	if err := sqlx.GetContext(ctx, r.exec(exec), &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// FindStudentExam returns a student exam by id.
func (r *ExamRepository) FindStudentExam(ctx context.Context, id string) (*models.StudentExam, error) {
	query := "SELECT " + studentExamColumns + " FROM student_exams WHERE id = $1"
	var exam models.StudentExam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// ListStudentExams returns a student's exams, newest first.
func (r *ExamRepository) ListStudentExams(ctx context.Context, studentID string) ([]models.StudentExam, error) {
	query := "SELECT " + studentExamColumns + " FROM student_exams WHERE student_id = $1 ORDER BY created_at DESC"
	var exams []models.StudentExam
	if err := r.db.SelectContext(ctx, &exams, query, studentID); err != nil {
		return nil, fmt.Errorf("list student exams: %w", err)
	}
	return exams, nil
}

// UpdateStudentExam stores progress, status and score fields.
func (r *ExamRepository) UpdateStudentExam(ctx context.Context, exec sqlx.ExtContext, exam *models.StudentExam) error {
	const query = `UPDATE student_exams SET status = :status, next_section = :next_section, score = :score, max_score = :max_score,
        started_at = :started_at, submitted_at = :submitted_at, graded_at = :graded_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, exam)
	if err != nil {
		return fmt.Errorf("update student exam: %w", err)
	}
	return requireAffected(res)
}

// UpsertAnswer writes one answer per (exam, question).
func (r *ExamRepository) UpsertAnswer(ctx context.Context, exec sqlx.ExtContext, answer *models.StudentAnswer) error {
	if answer.ID == "" {
		answer.ID = uuid.NewString()
	}
	answer.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO student_answers (id, student_exam_id, question_id, answer, updated_at)
        VALUES (:id, :student_exam_id, :question_id, :answer, :updated_at)
        ON CONFLICT (student_exam_id, question_id) DO UPDATE SET answer = EXCLUDED.answer, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, answer); err != nil {
		return fmt.Errorf("upsert student answer: %w", err)
	}
	return nil
}

// ListAnswers returns the answers of a student exam.
func (r *ExamRepository) ListAnswers(ctx context.Context, exec sqlx.ExtContext, examID string) ([]models.StudentAnswer, error) {
	const query = `SELECT id, student_exam_id, question_id, answer, awarded_points, updated_at FROM student_answers WHERE student_exam_id = $1`
	var answers []models.StudentAnswer
	if err := sqlx.SelectContext(ctx, r.exec(exec), &answers, query, examID); err != nil {
		return nil, fmt.Errorf("list student answers: %w", err)
	}
	return answers, nil
}

// SetAwardedPoints stores the grade of one question, creating a blank answer when none exists.
func (r *ExamRepository) SetAwardedPoints(ctx context.Context, exec sqlx.ExtContext, examID, questionID string, points decimal.Decimal) error {
	const query = `INSERT INTO student_answers (id, student_exam_id, question_id, answer, awarded_points, updated_at)
        VALUES ($1, $2, $3, '', $4, $5)
        ON CONFLICT (student_exam_id, question_id) DO UPDATE SET awarded_points = EXCLUDED.awarded_points, updated_at = EXCLUDED.updated_at`
	if _, err := r.exec(exec).ExecContext(ctx, query, uuid.NewString(), examID, questionID, points, time.Now().UTC()); err != nil {
		return fmt.Errorf("set awarded points: %w", err)
	}
	return nil
}
