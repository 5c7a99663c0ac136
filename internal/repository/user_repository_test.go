package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/escola-backoffice/internal/models"
)

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "student_id", "teacher_id", "active", "last_login", "created_at", "updated_at"}).
		AddRow("u-1", "ana@escola.test", "hash", "Ana Souza", "STUDENT", "s-1", nil, true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("ana@escola.test").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "ana@escola.test")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	require.NotNil(t, user.StudentID)
	assert.Equal(t, "s-1", *user.StudentID)
	assert.Nil(t, user.TeacherID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByEmailMissing(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("nobody@escola.test").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "nobody@escola.test")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdatePassword(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewUserRepository(db)
	ts := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1 AND active")).
		WithArgs("u-1", "new-hash", ts).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash = $2")).
		WithArgs("u-2", "new-hash", ts).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdatePassword(context.Background(), "u-1", "new-hash", ts))
	assert.ErrorIs(t, repo.UpdatePassword(context.Background(), "u-2", "new-hash", ts), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
