package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the configuration for the application.
type Config struct {
	RecipeAPIURL    string
	RecipeAPISecret string
	RequestTimeout  time.Duration

	// Retry policy for the suggestion load
	RetryBaseDelay time.Duration
	MaxAttempts    int

	LogLevel      string
	MetricsDBPath string
	ExportDir     string

	// Telegram Config
	TelegramBotToken    string
	TelegramWebhookURL  string
	TelegramAllowUserID int64
	Port                string
}

const (
	defaultRequestTimeout = 10 * time.Second
	defaultRetryBaseDelay = 2 * time.Second
	defaultMaxAttempts    = 3
)

// loadEnvFiles loads .env.local and .env when present. Missing files are not an error.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	apiURL := os.Getenv("RECIPE_API_URL")
	if apiURL == "" {
		return nil, fmt.Errorf("RECIPE_API_URL environment variable not set")
	}

	timeout, err := durationFromEnv("RECIPE_API_TIMEOUT", defaultRequestTimeout)
	if err != nil {
		return nil, err
	}

	baseDelay, err := durationFromEnv("RECIPE_RETRY_BASE_DELAY", defaultRetryBaseDelay)
	if err != nil {
		return nil, err
	}

	maxAttempts := defaultMaxAttempts
	if v := os.Getenv("RECIPE_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("RECIPE_MAX_ATTEMPTS must be a positive integer, got %q", v)
		}
		maxAttempts = n
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	metricsDBPath := os.Getenv("METRICS_DB_PATH")
	if metricsDBPath == "" {
		metricsDBPath = "data/metrics.db"
	}

	exportDir := os.Getenv("EXPORT_DIR")
	if exportDir == "" {
		exportDir = "."
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Telegram Config (Optional for CLI, required for Bot)
	var telegramAllowUserID int64
	if v := os.Getenv("TELEGRAM_ALLOW_USER_ID"); v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_ALLOW_USER_ID must be numeric, got %q", v)
		}
		telegramAllowUserID = id
	}

	return &Config{
		RecipeAPIURL:        strings.TrimRight(apiURL, "/"),
		RecipeAPISecret:     os.Getenv("RECIPE_API_SECRET"),
		RequestTimeout:      timeout,
		RetryBaseDelay:      baseDelay,
		MaxAttempts:         maxAttempts,
		LogLevel:            logLevel,
		MetricsDBPath:       metricsDBPath,
		ExportDir:           exportDir,
		TelegramBotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL:  os.Getenv("TELEGRAM_WEBHOOK_URL"),
		TelegramAllowUserID: telegramAllowUserID,
		Port:                port,
	}, nil
}

func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 10s, got %q", key, v)
	}
	return d, nil
}

// ValidateTelegram reports whether the bot-only settings are present.
func (c *Config) ValidateTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.TelegramWebhookURL == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	if c.TelegramAllowUserID == 0 {
		return fmt.Errorf("TELEGRAM_ALLOW_USER_ID environment variable not set")
	}
	return nil
}
