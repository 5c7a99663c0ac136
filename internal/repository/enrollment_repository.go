package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/escola-backoffice/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
JOIN students s ON s.id = e.student_id
JOIN class_groups c ON c.id = e.class_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.class_id, e.status, e.created_at, s.full_name AS student_name, c.name AS class_name
        %s ORDER BY c.name ASC, s.full_name ASC LIMIT %d OFFSET %d`, base+clause, size, (page-1)*size)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, status, created_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusEnrolled
	}
	const query = `INSERT INTO enrollments (id, student_id, class_id, status, created_at)
        VALUES (:id, :student_id, :class_id, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus updates status for a single enrollment.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return requireAffected(res)
}

// ListByClass returns the class enrollments whose status is one of statuses.
func (r *EnrollmentRepository) ListByClass(ctx context.Context, exec sqlx.ExtContext, classID string, statuses []models.EnrollmentStatus) ([]models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, status, created_at FROM enrollments
        WHERE class_id = $1 AND status = ANY($2) ORDER BY created_at`
	var enrollments []models.Enrollment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &enrollments, query, classID, pq.Array(enrollmentStatusStrings(statuses))); err != nil {
		return nil, fmt.Errorf("list class enrollments: %w", err)
	}
	return enrollments, nil
}

// ClassIDsByStudent returns the classes in which the student holds an enrollment with the status.
func (r *EnrollmentRepository) ClassIDsByStudent(ctx context.Context, studentID string, status models.EnrollmentStatus) ([]string, error) {
	const query = `SELECT DISTINCT class_id FROM enrollments WHERE student_id = $1 AND status = $2`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, studentID, status); err != nil {
		return nil, fmt.Errorf("list student classes: %w", err)
	}
	return ids, nil
}

// StudentIDsByStatus returns the distinct students holding at least one enrollment with the status.
func (r *EnrollmentRepository) StudentIDsByStatus(ctx context.Context, status models.EnrollmentStatus) ([]string, error) {
	const query = `SELECT DISTINCT student_id FROM enrollments WHERE status = $1 ORDER BY student_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, status); err != nil {
		return nil, fmt.Errorf("list roster students: %w", err)
	}
	return ids, nil
}

// SyncStudentStatus copies the student status onto every enrollment that is neither already
// at that status nor withdrawn. It returns the number of rows changed.
func (r *EnrollmentRepository) SyncStudentStatus(ctx context.Context, exec sqlx.ExtContext, studentID string, status models.EnrollmentStatus) (int64, error) {
	const query = `UPDATE enrollments SET status = $2 WHERE student_id = $1 AND status <> $2 AND status <> $3`
	res, err := r.exec(exec).ExecContext(ctx, query, studentID, status, models.EnrollmentStatusWithdrawn)
	if err != nil {
		return 0, fmt.Errorf("sync enrollment status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sync enrollment status rows: %w", err)
	}
	return n, nil
}

// TransitionByStudent moves the student's enrollments from any of the given statuses to target.
func (r *EnrollmentRepository) TransitionByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string, from []models.EnrollmentStatus, target models.EnrollmentStatus) (int64, error) {
	const query = `UPDATE enrollments SET status = $3 WHERE student_id = $1 AND status = ANY($2)`
	res, err := r.exec(exec).ExecContext(ctx, query, studentID, pq.Array(enrollmentStatusStrings(from)), target)
	if err != nil {
		return 0, fmt.Errorf("transition enrollments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("transition enrollments rows: %w", err)
	}
	return n, nil
}

func enrollmentStatusStrings(statuses []models.EnrollmentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
