package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Dashboard    DashboardConfig
	Reminders    RemindersConfig
	Backups      BackupsConfig
	Reports      ReportsConfig
	Push         PushConfig
	Mail         MailConfig
	Registration RegistrationConfig
	Gamification GamificationConfig
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
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DashboardConfig governs the daily summary endpoint and its cache tuning.
type DashboardConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

// RemindersConfig tunes the pending-class reminder sweep.
type RemindersConfig struct {
	Enabled        bool
	EvalInterval   time.Duration
	ClearInterval  time.Duration
	WindowMin      int
	WindowMax      int
	FeeDueCron     string
	FeeDueLeadDays int
}

// BackupsConfig controls tenant snapshot storage and retention.
type BackupsConfig struct {
	Enabled         bool
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	RetentionCount  int
	ExpiryDays      int
	SweepCron       string
	RateLimit       int
	RateWindow      time.Duration
}

// ReportsConfig configures asynchronous PDF report generation.
type ReportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// PushConfig carries VAPID material for Web Push dispatch.
type PushConfig struct {
	Enabled         bool
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

// MailConfig configures the SMTP reminder fallback.
type MailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	From     string
	Password string
}

// RegistrationConfig gates the public registration endpoint.
type RegistrationConfig struct {
	Enabled    bool
	RateLimit  int
	RateWindow time.Duration
}

// GamificationConfig tunes streak and leaderboard behaviour.
type GamificationConfig struct {
	Enabled         bool
	StreakPoints    int
	LeaderboardSize int
	CacheTTL        time.Duration
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

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
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
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

	cfg.Reminders = RemindersConfig{
		Enabled:        v.GetBool("ENABLE_REMINDERS"),
		EvalInterval:   parseDuration(v.GetString("REMINDER_EVAL_INTERVAL"), 30*time.Second),
		ClearInterval:  parseDuration(v.GetString("REMINDER_CLEAR_INTERVAL"), 60*time.Second),
		WindowMin:      v.GetInt("REMINDER_WINDOW_MIN"),
		WindowMax:      v.GetInt("REMINDER_WINDOW_MAX"),
		FeeDueCron:     v.GetString("FEE_REMINDER_CRON"),
		FeeDueLeadDays: v.GetInt("FEE_REMINDER_LEAD_DAYS"),
	}

	cfg.Backups = BackupsConfig{
		Enabled:         v.GetBool("ENABLE_BACKUPS"),
		StorageDir:      v.GetString("BACKUPS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("BACKUPS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("BACKUPS_SIGNED_URL_TTL"), 30*time.Minute),
		RetentionCount:  v.GetInt("BACKUPS_RETENTION_COUNT"),
		ExpiryDays:      v.GetInt("BACKUPS_EXPIRY_DAYS"),
		SweepCron:       v.GetString("BACKUPS_SWEEP_CRON"),
		RateLimit:       v.GetInt("BACKUPS_RATE_LIMIT"),
		RateWindow:      parseDuration(v.GetString("BACKUPS_RATE_WINDOW"), time.Minute),
	}

	cfg.Reports = ReportsConfig{
		Enabled:           v.GetBool("ENABLE_REPORTS"),
		StorageDir:        v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("REPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
	}

	cfg.Push = PushConfig{
		Enabled:         v.GetBool("ENABLE_PUSH"),
		VAPIDPublicKey:  v.GetString("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: v.GetString("VAPID_PRIVATE_KEY"),
		Subscriber:      v.GetString("VAPID_SUBSCRIBER"),
	}

	cfg.Mail = MailConfig{
		Enabled:  v.GetBool("ENABLE_MAIL"),
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		From:     v.GetString("SMTP_FROM"),
		Password: v.GetString("SMTP_PASSWORD"),
	}

	cfg.Registration = RegistrationConfig{
		Enabled:    v.GetBool("ENABLE_REGISTRATION"),
		RateLimit:  v.GetInt("REGISTRATION_RATE_LIMIT"),
		RateWindow: parseDuration(v.GetString("REGISTRATION_RATE_WINDOW"), time.Minute),
	}

	cfg.Gamification = GamificationConfig{
		Enabled:         v.GetBool("ENABLE_GAMIFICATION"),
		StreakPoints:    v.GetInt("GAMIFICATION_STREAK_POINTS"),
		LeaderboardSize: v.GetInt("GAMIFICATION_LEADERBOARD_SIZE"),
		CacheTTL:        parseDuration(v.GetString("GAMIFICATION_CACHE_TTL"), 10*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "tuition_center")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_DASHBOARD", true)
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_REMINDERS", true)
	v.SetDefault("REMINDER_EVAL_INTERVAL", "30s")
	v.SetDefault("REMINDER_CLEAR_INTERVAL", "60s")
	v.SetDefault("REMINDER_WINDOW_MIN", 5)
	v.SetDefault("REMINDER_WINDOW_MAX", 15)
	v.SetDefault("FEE_REMINDER_CRON", "0 9 * * *")
	v.SetDefault("FEE_REMINDER_LEAD_DAYS", 3)

	v.SetDefault("ENABLE_BACKUPS", true)
	v.SetDefault("BACKUPS_STORAGE_DIR", "./backups")
	v.SetDefault("BACKUPS_SIGNED_URL_SECRET", "dev_backups_secret")
	v.SetDefault("BACKUPS_SIGNED_URL_TTL", "30m")
	v.SetDefault("BACKUPS_RETENTION_COUNT", 2)
	v.SetDefault("BACKUPS_EXPIRY_DAYS", 60)
	v.SetDefault("BACKUPS_SWEEP_CRON", "0 3 * * *")
	v.SetDefault("BACKUPS_RATE_LIMIT", 10)
	v.SetDefault("BACKUPS_RATE_WINDOW", "1m")

	v.SetDefault("ENABLE_REPORTS", true)
	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("REPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("REPORTS_WORKER_RETRIES", 3)

	v.SetDefault("ENABLE_PUSH", false)
	v.SetDefault("VAPID_PUBLIC_KEY", "")
	v.SetDefault("VAPID_PRIVATE_KEY", "")
	v.SetDefault("VAPID_SUBSCRIBER", "mailto:admin@localhost")

	v.SetDefault("ENABLE_MAIL", false)
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("SMTP_PASSWORD", "")

	v.SetDefault("ENABLE_REGISTRATION", true)
	v.SetDefault("REGISTRATION_RATE_LIMIT", 10)
	v.SetDefault("REGISTRATION_RATE_WINDOW", "1m")

	v.SetDefault("ENABLE_GAMIFICATION", true)
	v.SetDefault("GAMIFICATION_STREAK_POINTS", 10)
	v.SetDefault("GAMIFICATION_LEADERBOARD_SIZE", 10)
	v.SetDefault("GAMIFICATION_CACHE_TTL", "10m")
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
