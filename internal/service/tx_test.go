package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/escola-backoffice/internal/models"
)

var (
	adminActor   = models.Actor{UserID: "admin-1", Role: models.RoleAdmin}
	teacherActor = models.Actor{UserID: "teacher-user", Role: models.RoleTeacher, TeacherID: "teacher-1"}
)

func studentActor(studentID string) models.Actor {
	return models.Actor{UserID: "user-" + studentID, Role: models.RoleStudent, StudentID: studentID}
}

type sqlmockTxProvider struct {
	db *sqlx.DB
}

func (p *sqlmockTxProvider) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return p.db.BeginTxx(ctx, opts)
}

// newTestTx returns a provider whose transactions are tracked by sqlmock. Callers register one
// ExpectBegin plus ExpectCommit or ExpectRollback per transaction the code under test opens.
func newTestTx(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return &sqlmockTxProvider{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func expectCommits(mock sqlmock.Sqlmock, n int) {
	for i := 0; i < n; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
}

func expectRollback(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectRollback()
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	provider, mock := newTestTx(t)
	expectRollback(mock)

	err := withinTx(context.Background(), provider, func(tx *sqlx.Tx) error {
		return sql.ErrNoRows
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestWithinTxRequiresProvider(t *testing.T) {
	err := withinTx(context.Background(), nil, func(tx *sqlx.Tx) error { return nil })
	require.Error(t, err)
}

func TestRequireRoleSystemActor(t *testing.T) {
	require.NoError(t, requireRole(models.SystemActor, models.RoleAdmin))
	require.Error(t, requireRole(teacherActor, models.RoleAdmin))
}
