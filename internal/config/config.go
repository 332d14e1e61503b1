package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Remote API
	APIBaseURL  string
	HTTPTimeout time.Duration

	// Session cookie injected directly instead of the sign-in flow.
	// Empty means the cookie comes from `fintrack login`.
	SessionCookieName  string
	SessionCookieValue string

	// Cache staleness windows
	TransactionsTTL time.Duration
	CategoriesTTL   time.Duration
	DashboardTTL    time.Duration
	SessionTTL      time.Duration
	SweepInterval   time.Duration

	// Read retries
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// AMQP (optional; empty URL disables event publishing)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Local snapshot export
	ExportDBPath string

	// OAuth sign-in
	OAuthClientFile   string
	OAuthRedirectPort int

	// Stub server
	StubPort string

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		APIBaseURL:  getEnv("API_BASE_URL", "http://localhost:8081"),
		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 15*time.Second),

		SessionCookieName:  getEnv("SESSION_COOKIE_NAME", "fintrack_session"),
		SessionCookieValue: getEnv("SESSION_COOKIE_VALUE", ""),

		TransactionsTTL: getEnvDuration("TRANSACTIONS_TTL", 30*time.Second),
		CategoriesTTL:   getEnvDuration("CATEGORIES_TTL", 5*time.Minute),
		DashboardTTL:    getEnvDuration("DASHBOARD_TTL", 5*time.Minute),
		SessionTTL:      getEnvDuration("SESSION_TTL", 15*time.Second),
		SweepInterval:   getEnvDuration("SWEEP_INTERVAL", time.Minute),

		RetryAttempts:  getEnvInt("RETRY_ATTEMPTS", 3),
		RetryBaseDelay: getEnvDuration("RETRY_BASE_DELAY", 500*time.Millisecond),
		RetryMaxDelay:  getEnvDuration("RETRY_MAX_DELAY", 5*time.Second),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transaction_events"),

		ExportDBPath: getEnv("EXPORT_DB_PATH", "./data/fintrack.db"),

		OAuthClientFile:   getEnv("OAUTH_CLIENT_FILE", ""),
		OAuthRedirectPort: getEnvInt("OAUTH_REDIRECT_PORT", 8089),

		StubPort: getEnv("STUB_PORT", "8081"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate checks the loaded configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if u, err := url.Parse(c.APIBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
	}

	if c.HTTPTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be at least 1 second", c.HTTPTimeout))
	}

	for name, ttl := range map[string]time.Duration{
		"transactions TTL": c.TransactionsTTL,
		"categories TTL":   c.CategoriesTTL,
		"dashboard TTL":    c.DashboardTTL,
		"session TTL":      c.SessionTTL,
	} {
		if ttl < time.Second {
			errors = append(errors, fmt.Sprintf("invalid %s %v: must be at least 1 second", name, ttl))
		} else if ttl > 24*time.Hour {
			errors = append(errors, fmt.Sprintf("invalid %s %v: must be at most 24 hours", name, ttl))
		}
	}

	if c.RetryAttempts < 1 {
		errors = append(errors, fmt.Sprintf("invalid retry attempts %d: must be at least 1", c.RetryAttempts))
	} else if c.RetryAttempts > 10 {
		errors = append(errors, fmt.Sprintf("invalid retry attempts %d: must be at most 10", c.RetryAttempts))
	}
	if c.RetryBaseDelay <= 0 {
		errors = append(errors, fmt.Sprintf("invalid retry base delay %v: must be positive", c.RetryBaseDelay))
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		errors = append(errors, fmt.Sprintf("invalid retry max delay %v: must be at least the base delay", c.RetryMaxDelay))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ExportDBPath == "" {
		errors = append(errors, "export database path cannot be empty")
	} else {
		dir := filepath.Dir(c.ExportDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create export directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.OAuthClientFile != "" {
		if _, err := os.Stat(c.OAuthClientFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("OAuth client file does not exist: %s", c.OAuthClientFile))
		}
	}
	if c.OAuthRedirectPort < 1 || c.OAuthRedirectPort > 65535 {
		errors = append(errors, fmt.Sprintf("invalid OAuth redirect port %d: must be between 1 and 65535", c.OAuthRedirectPort))
	}

	if port, err := strconv.Atoi(c.StubPort); err != nil {
		errors = append(errors, fmt.Sprintf("invalid stub port '%s': must be a number", c.StubPort))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid stub port %d: must be between 1 and 65535", port))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
