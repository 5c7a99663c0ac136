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

func TestAbsenceAlertRepositoryCreateSkipsSecondPending(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAbsenceAlertRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id) WHERE status = 'pending' DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.Create(context.Background(), nil, &models.AbsenceAlert{
		StudentID:    "s-1",
		StreakStart:  time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		AbsenceCount: 3,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAbsenceAlertRepositoryResolveAlreadyResolved(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewAbsenceAlertRepository(db)

	at := time.Date(2025, 3, 20, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE absence_alerts SET status = $2, resolution_note = $3, resolved_at = $4 WHERE id = $1 AND status = $5")).
		WithArgs("a-1", models.AbsenceAlertResolved, "contato feito", at, models.AbsenceAlertPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Resolve(context.Background(), nil, "a-1", "contato feito", at)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
