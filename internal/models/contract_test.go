package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/escola-backoffice/pkg/dates"
)

func TestContractDeriveEndDate(t *testing.T) {
	start := dates.Date(2024, time.January, 15)

	annual := &Contract{Plan: ContractPlanAnnual, StartDate: start}
	annual.DeriveEndDate()
	require.NotNil(t, annual.EndDate)
	assert.Equal(t, dates.Date(2025, time.January, 15), *annual.EndDate)

	semestral := &Contract{Plan: ContractPlanSemestral, StartDate: start}
	semestral.DeriveEndDate()
	require.NotNil(t, semestral.EndDate)
	assert.Equal(t, dates.Date(2024, time.July, 15), *semestral.EndDate)

	supplied := dates.Date(2030, time.May, 1)
	flexible := &Contract{Plan: ContractPlanFlexible, StartDate: start, EndDate: &supplied}
	flexible.DeriveEndDate()
	assert.Nil(t, flexible.EndDate)
}

func TestContractDeriveEndDateOverwritesManualEdits(t *testing.T) {
	edited := dates.Date(2024, time.March, 1)
	c := &Contract{Plan: ContractPlanAnnual, StartDate: dates.Date(2024, time.January, 31), EndDate: &edited}
	c.DeriveEndDate()
	assert.Equal(t, dates.Date(2025, time.January, 31), *c.EndDate)
}

func TestContractInForce(t *testing.T) {
	end := dates.Date(2024, time.June, 30)
	asOf := dates.Date(2024, time.March, 10)

	active := Contract{Active: true, Status: ContractStatusActive, StartDate: dates.Date(2024, time.January, 1), EndDate: &end}
	assert.True(t, active.InForce(asOf))
	assert.False(t, active.InForce(dates.Date(2024, time.July, 1)))
	assert.False(t, active.InForce(dates.Date(2023, time.December, 31)))

	inactive := active
	inactive.Active = false
	assert.False(t, inactive.InForce(asOf))

	locked := inactive
	locked.Status = ContractStatusLocked
	assert.True(t, locked.InForce(dates.Date(2025, time.January, 1)))

	open := Contract{Active: true, Status: ContractStatusActive, StartDate: dates.Date(2020, time.January, 1)}
	assert.True(t, open.InForce(asOf))
}
