package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go-radiology-reporter/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	MaxImageBytes      int64

	UpstreamURL              string
	UpstreamTimeout          time.Duration
	UpstreamMaxResponseBytes int64
	UpstreamAuthHeader       string
	UpstreamAuthToken        string

	RateLimitRPS   float64
	RateLimitBurst int

	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration

	MappingTablesFile string
	DefaultDisclaimer string

	AzureStorageAccount string
	AzureStorageKey     string

	LogLevel string
	GinMode  string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureEnabled reports whether blob image sources can be resolved.
func (c *Config) AzureEnabled() bool {
	return c.AzureStorageAccount != "" && c.AzureStorageKey != ""
}

// LoadDotEnv loads variables from the given files, or .env by default.
// Variables already present in the environment win. Missing files are ignored;
// files that cannot be parsed are skipped with a warning.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			logger.WithError(err).WithField("file", f).Warn("Failed to load env file")
		}
	}
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 120*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 32*1024*1024), // 32MB
		MaxImageBytes:      parseIntOrDefault("MAX_IMAGE_BYTES", 20*1024*1024),       // 20MB

		UpstreamURL:              strings.TrimSpace(os.Getenv("UPSTREAM_URL")),
		UpstreamTimeout:          parseDurationOrDefault("UPSTREAM_TIMEOUT", 90*time.Second),
		UpstreamMaxResponseBytes: parseIntOrDefault("UPSTREAM_MAX_RESPONSE_BYTES", 5*1024*1024),
		UpstreamAuthHeader:       getEnvOrDefault("UPSTREAM_AUTH_HEADER", "X-Webhook-Token"),
		UpstreamAuthToken:        os.Getenv("UPSTREAM_AUTH_TOKEN"),

		RateLimitRPS:   parseFloatOrDefault("RATE_LIMIT_RPS", 1),
		RateLimitBurst: int(parseIntOrDefault("RATE_LIMIT_BURST", 5)),

		BreakerMaxFailures: uint32(parseIntOrDefault("BREAKER_MAX_FAILURES", 5)),
		BreakerOpenTimeout: parseDurationOrDefault("BREAKER_OPEN_TIMEOUT", 30*time.Second),

		MappingTablesFile: strings.TrimSpace(os.Getenv("MAPPING_TABLES_FILE")),
		DefaultDisclaimer: strings.TrimSpace(os.Getenv("DEFAULT_DISCLAIMER")),

		AzureStorageAccount: strings.TrimSpace(os.Getenv("AZURE_STORAGE_ACCOUNT")),
		AzureStorageKey:     strings.TrimSpace(os.Getenv("AZURE_STORAGE_KEY")),

		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		GinMode:  getEnvOrDefault("GIN_MODE", "release"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded values; any error aborts startup.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}

	if c.UpstreamURL == "" {
		return fmt.Errorf("UPSTREAM_URL is required")
	}
	u, err := url.Parse(c.UpstreamURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("UPSTREAM_URL must be an absolute http(s) URL (got %q)", c.UpstreamURL)
	}

	if c.MaxRequestBodySize <= 0 || c.MaxImageBytes <= 0 || c.UpstreamMaxResponseBytes <= 0 {
		return fmt.Errorf("size limits must be > 0 (got body=%d, image=%d, response=%d)",
			c.MaxRequestBodySize, c.MaxImageBytes, c.UpstreamMaxResponseBytes)
	}
	if c.RequestTimeout <= 0 || c.UpstreamTimeout <= 0 || c.BreakerOpenTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, upstream=%s, breaker=%s)",
			c.RequestTimeout, c.UpstreamTimeout, c.BreakerOpenTimeout)
	}
	if c.UpstreamTimeout > c.RequestTimeout {
		return fmt.Errorf("UPSTREAM_TIMEOUT (%s) must not exceed REQUEST_TIMEOUT (%s)",
			c.UpstreamTimeout, c.RequestTimeout)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit must be > 0 (got rps=%g, burst=%d)", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.BreakerMaxFailures == 0 {
		return fmt.Errorf("BREAKER_MAX_FAILURES must be > 0")
	}
	if (c.AzureStorageAccount == "") != (c.AzureStorageKey == "") {
		return fmt.Errorf("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY must be set together")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}
