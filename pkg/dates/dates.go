// Package dates holds calendar helpers shared by billing and attendance.
// All values are normalised to midnight UTC so dates compare by day.
package dates

import (
	"time"

	"github.com/jinzhu/now"
)

// Layout is the wire format for calendar dates.
const Layout = "2006-01-02"

// Date builds a midnight UTC date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Day drops the clock part of t, keeping its calendar date.
func Day(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// Parse reads a YYYY-MM-DD value.
func Parse(raw string) (time.Time, error) {
	t, err := time.Parse(Layout, raw)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// MonthStart returns the first day of t's month.
func MonthStart(t time.Time) time.Time {
	return Day(now.With(Day(t)).BeginningOfMonth())
}

// MonthEnd returns the last calendar day of t's month.
func MonthEnd(t time.Time) time.Time {
	return Day(now.With(Day(t)).EndOfMonth())
}

// AddMonths moves t by n calendar months, clamping the day to the target month's length.
func AddMonths(t time.Time, n int) time.Time {
	t = Day(t)
	first := Date(t.Year(), t.Month(), 1).AddDate(0, n, 0)
	last := MonthEnd(first)
	day := t.Day()
	if day > last.Day() {
		day = last.Day()
	}
	return Date(first.Year(), first.Month(), day)
}

// MonthIndex numbers months continuously so they can be compared and iterated.
func MonthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// FromMonthIndex is the inverse of MonthIndex.
func FromMonthIndex(idx int) time.Time {
	return Date(idx/12, time.Month(idx%12+1), 1)
}

// WholeMonthsBetween counts complete months from start to end. Negative spans yield 0.
func WholeMonthsBetween(start, end time.Time) int {
	start, end = Day(start), Day(end)
	if !end.After(start) {
		return 0
	}
	months := MonthIndex(end) - MonthIndex(start)
	if AddMonths(start, months).After(end) {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// MonthLabel renders t as MM/YYYY.
func MonthLabel(t time.Time) string {
	return t.Format("01/2006")
}
