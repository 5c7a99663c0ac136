package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/escola-backoffice/internal/models"
)

var contractTestColumns = []string{"id", "student_id", "plan", "start_date", "end_date", "monthly_tuition", "enrollment_fee",
	"fee_installments", "active", "status", "notes", "cancelled_at", "created_at", "updated_at"}

func TestContractRepositoryListInForce(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewContractRepository(db)

	asOf := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(contractTestColumns).
		AddRow("c-1", "s-1", "annual", start, end, "500.00", "300.00", 3, true, "active", "", nil, start, start).
		AddRow("c-2", "s-2", "flexible", start, nil, "450.00", "0", 1, false, "locked", "", nil, start, start)
	mock.ExpectQuery(regexp.QuoteMeta("OR c.status = $3")).
		WithArgs(asOf, models.ContractStatusActive, models.ContractStatusLocked).
		WillReturnRows(rows)

	contracts, err := repo.ListInForce(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, contracts, 2)
	assert.Equal(t, models.ContractPlanAnnual, contracts[0].Plan)
	assert.Nil(t, contracts[1].EndDate)
	assert.Equal(t, "500", contracts[0].MonthlyTuition.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepositoryUpdateState(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewContractRepository(db)

	cancelledAt := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	contract := &models.Contract{ID: "c-1", Status: models.ContractStatusCancelled, CancelledAt: &cancelledAt}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE contracts SET status = $2, active = $3, cancelled_at = $4")).
		WithArgs("c-1", models.ContractStatusCancelled, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateState(context.Background(), nil, contract))
	assert.NoError(t, mock.ExpectationsWereMet())
}
