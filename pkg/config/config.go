package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	dateLayout = "2006-01-02"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Dashboard  DashboardConfig
	Billing    BillingConfig
	Attendance AttendanceConfig
	Scheduler  SchedulerConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	MaxIdleTime  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Timeout  time.Duration
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DashboardConfig governs dashboard exposure and cache tuning.
type DashboardConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

// BillingConfig tunes charge generation and contract cancellation.
type BillingConfig struct {
	// PaidCutover marks every generated month before it as already paid. Zero disables the rule.
	PaidCutover        time.Time
	CancelPenaltyRate  float64
	ExpiringWindowDays int
}

// AttendanceConfig tunes the absence-alert detector.
type AttendanceConfig struct {
	LookbackDays     int
	AbsenceThreshold int
	DetectorWorkers  int
	DetectorRetries  int
}

// SchedulerConfig holds cron specs for the batch runner.
type SchedulerConfig struct {
	Timezone     string
	ChargesSpec  string
	AbsencesSpec string
	OverdueSpec  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		MaxLifetime:  parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), time.Hour),
		MaxIdleTime:  parseDuration(v.GetString("DB_CONN_MAX_IDLE_TIME"), 30*time.Minute),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		Timeout:  parseDuration(v.GetString("REDIS_TIMEOUT"), 3*time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Dashboard = DashboardConfig{
		Enabled:  v.GetBool("ENABLE_DASHBOARD"),
		CacheTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Billing = BillingConfig{
		PaidCutover:        parseDate(v.GetString("BILLING_PAID_CUTOVER"), time.Time{}),
		CancelPenaltyRate:  v.GetFloat64("BILLING_CANCEL_PENALTY_RATE"),
		ExpiringWindowDays: v.GetInt("BILLING_EXPIRING_WINDOW_DAYS"),
	}

	cfg.Attendance = AttendanceConfig{
		LookbackDays:     v.GetInt("ATTENDANCE_LOOKBACK_DAYS"),
		AbsenceThreshold: v.GetInt("ATTENDANCE_ABSENCE_THRESHOLD"),
		DetectorWorkers:  v.GetInt("ATTENDANCE_DETECTOR_WORKERS"),
		DetectorRetries:  v.GetInt("ATTENDANCE_DETECTOR_RETRIES"),
	}

	cfg.Scheduler = SchedulerConfig{
		Timezone:     v.GetString("SCHEDULER_TIMEZONE"),
		ChargesSpec:  v.GetString("SCHEDULER_CHARGES_SPEC"),
		AbsencesSpec: v.GetString("SCHEDULER_ABSENCES_SPEC"),
		OverdueSpec:  v.GetString("SCHEDULER_OVERDUE_SPEC"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "escola")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", "30m")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_TIMEOUT", "3s")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "escola-backoffice")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_DASHBOARD", true)
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")

	v.SetDefault("BILLING_PAID_CUTOVER", "")
	v.SetDefault("BILLING_CANCEL_PENALTY_RATE", 0.5)
	v.SetDefault("BILLING_EXPIRING_WINDOW_DAYS", 30)

	v.SetDefault("ATTENDANCE_LOOKBACK_DAYS", 30)
	v.SetDefault("ATTENDANCE_ABSENCE_THRESHOLD", 3)
	v.SetDefault("ATTENDANCE_DETECTOR_WORKERS", 1)
	v.SetDefault("ATTENDANCE_DETECTOR_RETRIES", 3)

	v.SetDefault("SCHEDULER_TIMEZONE", "America/Sao_Paulo")
	v.SetDefault("SCHEDULER_CHARGES_SPEC", "0 3 * * *")
	v.SetDefault("SCHEDULER_ABSENCES_SPEC", "30 3 * * *")
	v.SetDefault("SCHEDULER_OVERDUE_SPEC", "0 4 * * *")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func parseDate(raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
