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

const sessionColumns = `id, class_id, teacher_id, lesson_date, last_paragraph, last_word, new_dictation, old_dictation,
        new_reading, old_reading, lesson_check, created_at`

// SessionRepository persists class sessions and their attendance rows.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a class session.
func (r *SessionRepository) Create(ctx context.Context, exec sqlx.ExtContext, session *models.ClassSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO class_sessions (id, class_id, teacher_id, lesson_date, last_paragraph, last_word, new_dictation,
        old_dictation, new_reading, old_reading, lesson_check, created_at)
        VALUES (:id, :class_id, :teacher_id, :lesson_date, :last_paragraph, :last_word, :new_dictation,
        :old_dictation, :new_reading, :old_reading, :lesson_check, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, session); err != nil {
		return fmt.Errorf("create class session: %w", err)
	}
	return nil
}

// Update stores the lesson bookmarks of a session.
func (r *SessionRepository) Update(ctx context.Context, session *models.ClassSession) error {
	const query = `UPDATE class_sessions SET teacher_id = :teacher_id, lesson_date = :lesson_date, last_paragraph = :last_paragraph,
        last_word = :last_word, new_dictation = :new_dictation, old_dictation = :old_dictation, new_reading = :new_reading,
        old_reading = :old_reading, lesson_check = :lesson_check WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, session)
	if err != nil {
		return fmt.Errorf("update class session: %w", err)
	}
	return requireAffected(res)
}

// FindByID returns a session by id.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.ClassSession, error) {
	query := "SELECT " + sessionColumns + " FROM class_sessions WHERE id = $1"
	var session models.ClassSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns sessions matching the filter, most recent first.
func (r *SessionRepository) List(ctx context.Context, filter models.ClassSessionFilter) ([]models.ClassSession, error) {
	var conditions []string
	var args []interface{}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("lesson_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("lesson_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	query := "SELECT " + sessionColumns + " FROM class_sessions"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY lesson_date DESC, created_at DESC"

	var sessions []models.ClassSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list class sessions: %w", err)
	}
	return sessions, nil
}

// UpsertAttendance writes the attendance rows of a session.
func (r *SessionRepository) UpsertAttendance(ctx context.Context, exec sqlx.ExtContext, rows []models.Attendance) error {
	if len(rows) == 0 {
		return nil
	}
	const query = `INSERT INTO attendances (id, session_id, student_id, present) VALUES (:id, :session_id, :student_id, :present)
        ON CONFLICT (session_id, student_id) DO UPDATE SET present = EXCLUDED.present`
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
		if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, rows[i]); err != nil {
			return fmt.Errorf("upsert attendance: %w", err)
		}
	}
	return nil
}

// ListAttendance returns the attendance rows of a session.
func (r *SessionRepository) ListAttendance(ctx context.Context, sessionID string) ([]models.Attendance, error) {
	const query = `SELECT id, session_id, student_id, present FROM attendances WHERE session_id = $1`
	var rows []models.Attendance
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session attendance: %w", err)
	}
	return rows, nil
}

// ListStudentHistory returns the student's attendance in the given classes since the date,
// most recent lesson first.
func (r *SessionRepository) ListStudentHistory(ctx context.Context, studentID string, classIDs []string, since time.Time) ([]models.AttendanceEntry, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT a.id AS attendance_id, a.session_id, cs.class_id, a.student_id, cs.lesson_date,
        cs.created_at AS session_created_at, a.present
        FROM attendances a
        JOIN class_sessions cs ON cs.id = a.session_id
        WHERE a.student_id = $1 AND cs.class_id = ANY($2) AND cs.lesson_date >= $3
        ORDER BY cs.lesson_date DESC, cs.created_at DESC`
	var entries []models.AttendanceEntry
	if err := r.db.SelectContext(ctx, &entries, query, studentID, pq.Array(classIDs), since); err != nil {
		return nil, fmt.Errorf("list student attendance: %w", err)
	}
	return entries, nil
}

// StudentStats aggregates the student's attendance over all sessions.
func (r *SessionRepository) StudentStats(ctx context.Context, studentID string) (*models.AttendanceStats, error) {
	const query = `SELECT COUNT(*) AS total,
        COUNT(*) FILTER (WHERE present) AS present,
        COUNT(*) FILTER (WHERE NOT present) AS absent
        FROM attendances WHERE student_id = $1`
	var stats models.AttendanceStats
	if err := r.db.GetContext(ctx, &stats, query, studentID); err != nil {
		return nil, fmt.Errorf("student attendance stats: %w", err)
	}
	return &stats, nil
}

// StudentMonthly aggregates the student's attendance per month since the date.
func (r *SessionRepository) StudentMonthly(ctx context.Context, studentID string, since time.Time) ([]models.MonthlyAttendance, error) {
	const query = `SELECT date_trunc('month', cs.lesson_date)::date AS month,
        COUNT(*) AS total,
        COUNT(*) FILTER (WHERE a.present) AS present
        FROM attendances a
        JOIN class_sessions cs ON cs.id = a.session_id
        WHERE a.student_id = $1 AND cs.lesson_date >= $2
        GROUP BY 1 ORDER BY 1`
	var months []models.MonthlyAttendance
	if err := r.db.SelectContext(ctx, &months, query, studentID, since); err != nil {
		return nil, fmt.Errorf("student monthly attendance: %w", err)
	}
	return months, nil
}
