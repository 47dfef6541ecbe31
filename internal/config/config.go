package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Schedule configuration
	BatchSchedule string // "daily" or "weekly"
	TimeZone      string

	// Batch limits
	MaxUsersPerRun int
	BatchSize      int
	MaxRunDuration time.Duration
	SafetyMargin   time.Duration
	QueryTimeout   time.Duration

	// Postgres store (in-memory store is used when empty)
	DatabaseURL string

	// Azure archive for raw mention batches (disabled when empty)
	StorageAccount   string
	StorageContainer string

	// Notification configuration
	WebhookURL        string
	NotificationEmail string
	AdminEmail        string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string

	// Platform API keys
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	PerplexityAPIKey string
	GeminiAPIKey     string

	// Budget defaults for lazily created budgets
	DefaultMonthlyLimitMillicents int64
	DefaultAlertThresholds        []float64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Debug:         getBoolEnv("DEBUG", false),
		BatchSchedule: getEnv("BATCH_SCHEDULE", "weekly"),
		TimeZone:      getEnv("TIMEZONE", "UTC"),

		MaxUsersPerRun: getIntEnv("MAX_USERS_PER_RUN", 500),
		BatchSize:      getIntEnv("BATCH_SIZE", 50),
		MaxRunDuration: getDurationEnv("MAX_RUN_DURATION", 25*time.Minute),
		SafetyMargin:   getDurationEnv("SAFETY_MARGIN", 60*time.Second),
		QueryTimeout:   getDurationEnv("QUERY_TIMEOUT", 15*time.Second),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "mentions"),

		WebhookURL:        getEnv("WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		AdminEmail:        getEnv("ADMIN_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),

		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		PerplexityAPIKey: getEnv("PERPLEXITY_API_KEY", ""),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),

		// $50/month with alerts at 50/75/90%
		DefaultMonthlyLimitMillicents: getInt64Env("DEFAULT_MONTHLY_LIMIT_MILLICENTS", 5_000_000),
		DefaultAlertThresholds:        getFloatSliceEnv("DEFAULT_ALERT_THRESHOLDS", []float64{0.5, 0.75, 0.9}),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.BatchSchedule != "daily" && c.BatchSchedule != "weekly" {
		return fmt.Errorf("BATCH_SCHEDULE must be 'daily' or 'weekly'")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	if c.MaxRunDuration <= c.SafetyMargin {
		return fmt.Errorf("MAX_RUN_DURATION must be greater than SAFETY_MARGIN")
	}

	if c.DefaultMonthlyLimitMillicents <= 0 {
		return fmt.Errorf("DEFAULT_MONTHLY_LIMIT_MILLICENTS must be positive")
	}

	for _, t := range c.DefaultAlertThresholds {
		if t <= 0 || t > 1 {
			return fmt.Errorf("alert thresholds must be fractions in (0,1], got %v", t)
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatSliceEnv(key string, defaultValue []float64) []float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result []float64
	for _, part := range strings.Split(value, ",") {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return defaultValue
		}
		result = append(result, parsed)
	}
	return result
}
