package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddMonthsClampsDay(t *testing.T) {
	assert.Equal(t, Date(2025, time.January, 15), AddMonths(Date(2024, time.January, 15), 12))
	assert.Equal(t, Date(2024, time.July, 15), AddMonths(Date(2024, time.January, 15), 6))
	assert.Equal(t, Date(2024, time.February, 29), AddMonths(Date(2024, time.January, 31), 1))
	assert.Equal(t, Date(2023, time.February, 28), AddMonths(Date(2023, time.January, 31), 1))
	assert.Equal(t, Date(2023, time.December, 31), AddMonths(Date(2024, time.January, 31), -1))
}

func TestMonthBounds(t *testing.T) {
	ts := time.Date(2024, time.February, 10, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, Date(2024, time.February, 1), MonthStart(ts))
	assert.Equal(t, Date(2024, time.February, 29), MonthEnd(ts))
	assert.Equal(t, Date(2023, time.April, 30), MonthEnd(Date(2023, time.April, 1)))
}

func TestMonthIndexRoundTrip(t *testing.T) {
	start := Date(2024, time.November, 1)
	idx := MonthIndex(start)
	assert.Equal(t, Date(2025, time.February, 1), FromMonthIndex(idx+3))
	assert.Equal(t, start, FromMonthIndex(idx))
}

func TestWholeMonthsBetween(t *testing.T) {
	today := Date(2025, time.March, 10)
	assert.Equal(t, 10, WholeMonthsBetween(today, Date(2026, time.January, 10)))
	assert.Equal(t, 9, WholeMonthsBetween(today, Date(2026, time.January, 9)))
	assert.Equal(t, 0, WholeMonthsBetween(today, Date(2025, time.March, 30)))
	assert.Equal(t, 0, WholeMonthsBetween(today, Date(2024, time.March, 10)))
}

func TestMonthLabel(t *testing.T) {
	assert.Equal(t, "03/2025", MonthLabel(Date(2025, time.March, 10)))
}
