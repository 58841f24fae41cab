package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr                 string
	DatabaseURL          string
	JWTSecret            string
	DataEncryptionKey    string
	Environment          string
	SchoolName           string
	SeedAdminEmail       string
	SeedAdminPassword    string
	RunMigrations        bool
	MigrationsDir        string
	RunSeed              bool
	MaxBodyBytes         int64
	RateLimitPerMinute   int
	PayrollClampNegative bool
	DefaultCurrency      string
	SMSGatewayURL        string
	SMSGatewayToken      string
	SMSSenderID          string
	SFUTokenSecret       string
	SFUTokenTTL          time.Duration
	FeeReminderInterval  time.Duration
	MetricsEnabled       bool
}

func Load() Config {
	// .env is development convenience; a missing file is fine.
	_ = godotenv.Load()

	return Config{
		Addr:                 getEnv("APP_ADDR", ":8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		DataEncryptionKey:    getEnv("DATA_ENCRYPTION_KEY", ""),
		Environment:          getEnv("APP_ENV", "development"),
		SchoolName:           getEnv("SCHOOL_NAME", "Khalaf al-Cudul"),
		SeedAdminEmail:       getEnv("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword:    getEnv("SEED_ADMIN_PASSWORD", ""),
		RunMigrations:        getEnvBool("RUN_MIGRATIONS", true),
		MigrationsDir:        getEnv("MIGRATIONS_DIR", "migrations"),
		RunSeed:              getEnvBool("RUN_SEED", true),
		MaxBodyBytes:         int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute:   getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		PayrollClampNegative: getEnvBool("PAYROLL_CLAMP_NEGATIVE", false),
		DefaultCurrency:      getEnv("DEFAULT_CURRENCY", "USD"),
		SMSGatewayURL:        getEnv("SMS_GATEWAY_URL", ""),
		SMSGatewayToken:      getEnv("SMS_GATEWAY_TOKEN", ""),
		SMSSenderID:          getEnv("SMS_SENDER_ID", "madrasa"),
		SFUTokenSecret:       getEnv("SFU_TOKEN_SECRET", ""),
		SFUTokenTTL:          getEnvDuration("SFU_TOKEN_TTL", time.Hour),
		FeeReminderInterval:  getEnvDuration("FEE_REMINDER_INTERVAL", 24*time.Hour),
		MetricsEnabled:       getEnvBool("METRICS_ENABLED", true),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be changed or RUN_SEED disabled in production")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.SMSGatewayURL != "" && c.SMSGatewayToken == "" {
		return fmt.Errorf("SMS_GATEWAY_TOKEN must be set when SMS_GATEWAY_URL is configured")
	}
	return nil
}
