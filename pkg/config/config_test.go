package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.True(t, cfg.Billing.PaidCutover.IsZero())
	assert.InDelta(t, 0.5, cfg.Billing.CancelPenaltyRate, 0.0001)
	assert.Equal(t, 30, cfg.Attendance.LookbackDays)
	assert.Equal(t, 3, cfg.Attendance.AbsenceThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Dashboard.CacheTTL)
	assert.Equal(t, "0 3 * * *", cfg.Scheduler.ChargesSpec)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("BILLING_PAID_CUTOVER", "2025-09-01")
	v.Set("ATTENDANCE_ABSENCE_THRESHOLD", 4)
	v.Set("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	v.Set("JWT_EXPIRATION", "not-a-duration")

	cfg := fromViper(v)

	require.False(t, cfg.Billing.PaidCutover.IsZero())
	assert.Equal(t, time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC), cfg.Billing.PaidCutover)
	assert.Equal(t, 4, cfg.Attendance.AbsenceThreshold)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
}

func TestParseDateFallback(t *testing.T) {
	fallback := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, fallback, parseDate("01/09/2025", fallback))
	assert.Equal(t, fallback, parseDate("  ", fallback))
}
