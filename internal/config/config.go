package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultCategories mirrors the categories citizens can file problems under.
var DefaultCategories = []string{"Waste", "Roads", "Water Supply", "Electricity", "Sanitation", "Other"}

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Lifecycle LifecycleConfig
	Rewards   RewardsConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines how bearer tokens are verified.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// LifecycleConfig selects the problem workflow variant and its coin awards.
type LifecycleConfig struct {
	RequireAssignment        bool
	RequireVerificationPhoto bool
	ReportReward             int64
	ResolveReward            int64
	Categories               []string
}

// RewardsConfig controls redemption code issuance.
type RewardsConfig struct {
	CodeTTLHours      int
	CodeLength        int
	CodeIssueAttempts int
	DefaultPageSize   int
	MaxPageSize       int
}

// RateLimitConfig bounds how many problems a reporter may file per day. Zero disables the limit.
type RateLimitConfig struct {
	ReportsPerDay int
	KeyPrefix     string
}

// SchedulerConfig holds cron specs for background jobs.
type SchedulerConfig struct {
	AwardRetrySpec  string
	CodeExpirySpec  string
	AwardRetryMax   int
	AwardRetryBatch int
	AwardQueueKey   string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "urbanecho-civic-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "5001"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Lifecycle: LifecycleConfig{
			RequireAssignment:        getEnvAsBool("LIFECYCLE_REQUIRE_ASSIGNMENT", true),
			RequireVerificationPhoto: getEnvAsBool("LIFECYCLE_REQUIRE_VERIFICATION_PHOTO", true),
			ReportReward:             int64(getEnvAsInt("LIFECYCLE_REPORT_REWARD", 10)),
			ResolveReward:            int64(getEnvAsInt("LIFECYCLE_RESOLVE_REWARD", 40)),
			Categories:               getEnvAsList("PROBLEM_CATEGORIES", DefaultCategories),
		},
		Rewards: RewardsConfig{
			CodeTTLHours:      getEnvAsInt("REDEMPTION_CODE_TTL_HOURS", 7*24),
			CodeLength:        getEnvAsInt("REDEMPTION_CODE_LENGTH", 8),
			CodeIssueAttempts: getEnvAsInt("REDEMPTION_CODE_ATTEMPTS", 5),
			DefaultPageSize:   getEnvAsInt("REWARDS_PAGE_SIZE", 20),
			MaxPageSize:       getEnvAsInt("REWARDS_MAX_PAGE_SIZE", 100),
		},
		RateLimit: RateLimitConfig{
			ReportsPerDay: getEnvAsInt("REPORTS_PER_DAY", 20),
			KeyPrefix:     getEnv("REPORT_LIMIT_KEY_PREFIX", "urbanecho:report-limit"),
		},
		Scheduler: SchedulerConfig{
			AwardRetrySpec:  getEnv("SCHEDULER_AWARD_RETRY_SPEC", "0 * * * * *"),
			CodeExpirySpec:  getEnv("SCHEDULER_CODE_EXPIRY_SPEC", "0 */15 * * * *"),
			AwardRetryMax:   getEnvAsInt("AWARD_RETRY_MAX_ATTEMPTS", 5),
			AwardRetryBatch: getEnvAsInt("AWARD_RETRY_BATCH", 100),
			AwardQueueKey:   getEnv("AWARD_QUEUE_KEY", "urbanecho:award-retry"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// CodeTTL returns how long an issued redemption code stays claimable.
func (r RewardsConfig) CodeTTL() time.Duration {
	if r.CodeTTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(r.CodeTTLHours) * time.Hour
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return append([]string(nil), fallback...)
	}
	var items []string
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return append([]string(nil), fallback...)
	}
	return items
}
