// Package config loads the settings of a retention pass from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"Skysweep/internal/core/retention"
)

// Config validation errors
var (
	// ErrMissingHandle is returned when no account handle is configured
	ErrMissingHandle = errors.New("SKYSWEEP_HANDLE is required")
	// ErrMissingPassword is returned when no app password is configured
	ErrMissingPassword = errors.New("SKYSWEEP_APP_PASSWORD is required")
	// ErrMissingPreserveDays is returned when the retention threshold is not configured
	ErrMissingPreserveDays = errors.New("SKYSWEEP_PRESERVE_DAYS is required")
	// ErrInvalidPreserveDays is returned when the retention threshold is negative or not a number
	ErrInvalidPreserveDays = errors.New("PreserveDays must be a whole number of days, zero or more")
	// ErrPreserveDaysTooLarge is returned when the retention threshold is longer than MaxPreserveDays
	ErrPreserveDaysTooLarge = errors.New("PreserveDays is too large")
	// ErrInvalidHost is returned when the PDS host is not an absolute http(s) URL
	ErrInvalidHost = errors.New("PDSHost must be an absolute http or https URL")
	// ErrInvalidPageSize is returned when PageSize is outside 1..100
	ErrInvalidPageSize = errors.New("PageSize must be between 1 and 100")
	// ErrInvalidRequestsPerSecond is returned when RequestsPerSecond is not positive
	ErrInvalidRequestsPerSecond = errors.New("RequestsPerSecond must be positive")
	// ErrInvalidHTTPTimeout is returned when HTTPTimeout is not positive
	ErrInvalidHTTPTimeout = errors.New("HTTPTimeout must be positive")
	// ErrInvalidSchedule is returned when Schedule is not a valid cron expression
	ErrInvalidSchedule = errors.New("Schedule must be a standard cron expression")
	// ErrInvalidLogLevel is returned for an unknown log level
	ErrInvalidLogLevel = errors.New("LogLevel must be one of debug, info, warn, error")
	// ErrInvalidLogFormat is returned for an unknown log format
	ErrInvalidLogFormat = errors.New("LogFormat must be text or json")
)

const (
	// MaxPageSize is the largest page the feed endpoints accept
	MaxPageSize = 100

	// MaxPreserveDays is the longest retention window a pass can evaluate
	MaxPreserveDays = int(retention.MaxRetentionDays)

	unsetPreserveDays = -1
)

// Config holds the settings of a retention pass.
type Config struct {
	// Handle is the account whose posts are swept (e.g. "alice.bsky.social").
	Handle string

	// AppPassword is the credential used to open the session. Never logged.
	AppPassword string

	// PDSHost is the XRPC host the session is created on.
	PDSHost string

	// PLCURL is the PLC directory used to resolve the handle.
	PLCURL string

	// Schedule is a cron expression. Empty runs a single pass.
	Schedule string

	LogLevel  string
	LogFormat string

	// PreserveDays is the retention window. Posts strictly older than this many days are removed.
	PreserveDays int

	PageSize          int
	RequestsPerSecond float64
	HTTPTimeout       time.Duration

	// DryRun reports eligible posts without removing anything.
	DryRun bool
}

// DefaultConfig returns a Config with every optional setting at its default.
// Handle, AppPassword and PreserveDays are left unset.
func DefaultConfig() Config {
	return Config{
		PDSHost:           "https://bsky.social",
		PLCURL:            "https://plc.directory",
		LogLevel:          "info",
		LogFormat:         "text",
		PreserveDays:      unsetPreserveDays,
		PageSize:          25,
		RequestsPerSecond: 5,
		HTTPTimeout:       30 * time.Second,
	}
}

// LoadEnvFile loads variables from a .env file without overriding ones already set.
// An empty path means ".env" in the working directory, which may be absent.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ConfigFromEnv creates a Config from environment variables.
// Optional settings fall back to their defaults when unparseable; required ones are errors.
//
// Environment variables:
//   - SKYSWEEP_HANDLE: account handle (required)
//   - SKYSWEEP_APP_PASSWORD: app password, plain or "base64:" prefixed (required)
//   - SKYSWEEP_PRESERVE_DAYS: retention window in days, 0 or more (required)
//   - SKYSWEEP_PDS_HOST: XRPC host (default: "https://bsky.social")
//   - SKYSWEEP_PLC_URL: PLC directory (default: "https://plc.directory")
//   - SKYSWEEP_PAGE_SIZE: items per page, 1..100 (default: 25)
//   - SKYSWEEP_REQUESTS_PER_SECOND: client-side pacing (default: 5)
//   - SKYSWEEP_HTTP_TIMEOUT_SECONDS: per-request timeout (default: 30)
//   - SKYSWEEP_DRY_RUN: "true"/"1" to only report (default: false)
//   - SKYSWEEP_SCHEDULE: cron expression for repeated passes (default: single pass)
//   - SKYSWEEP_LOG_LEVEL: debug, info, warn or error (default: info)
//   - SKYSWEEP_LOG_FORMAT: text or json (default: text)
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.Handle = strings.TrimSpace(os.Getenv("SKYSWEEP_HANDLE"))

	password, err := GetEnvBase64OrPlain("SKYSWEEP_APP_PASSWORD")
	if err != nil {
		return Config{}, err
	}
	cfg.AppPassword = password

	if v := strings.TrimSpace(os.Getenv("SKYSWEEP_PRESERVE_DAYS")); v != "" {
		n, err := ParsePreserveDays(v)
		if err != nil {
			return Config{}, err
		}
		cfg.PreserveDays = n
	}

	if v := os.Getenv("SKYSWEEP_PDS_HOST"); v != "" {
		cfg.PDSHost = strings.TrimRight(v, "/")
	}

	if v := os.Getenv("SKYSWEEP_PLC_URL"); v != "" {
		cfg.PLCURL = strings.TrimRight(v, "/")
	}

	if v := os.Getenv("SKYSWEEP_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= MaxPageSize {
			cfg.PageSize = n
		} else {
			slog.Warn("invalid SKYSWEEP_PAGE_SIZE value, using default",
				"value", v,
				"default", cfg.PageSize,
				"error", err,
			)
		}
	}

	if v := os.Getenv("SKYSWEEP_REQUESTS_PER_SECOND"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			cfg.RequestsPerSecond = n
		} else {
			slog.Warn("invalid SKYSWEEP_REQUESTS_PER_SECOND value, using default",
				"value", v,
				"default", cfg.RequestsPerSecond,
				"error", err,
			)
		}
	}

	if v := os.Getenv("SKYSWEEP_HTTP_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPTimeout = time.Duration(n) * time.Second
		} else {
			slog.Warn("invalid SKYSWEEP_HTTP_TIMEOUT_SECONDS value, using default",
				"value", v,
				"default_seconds", int(cfg.HTTPTimeout.Seconds()),
				"error", err,
			)
		}
	}

	if v := os.Getenv("SKYSWEEP_DRY_RUN"); v != "" {
		cfg.DryRun = v == "true" || v == "1"
	}

	cfg.Schedule = strings.TrimSpace(os.Getenv("SKYSWEEP_SCHEDULE"))

	if v := os.Getenv("SKYSWEEP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if v := os.Getenv("SKYSWEEP_LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	return cfg, nil
}

// ParsePreserveDays parses a retention window given in days.
func ParsePreserveDays(v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%w: got %q", ErrInvalidPreserveDays, v)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidPreserveDays, n)
	}
	if n > MaxPreserveDays {
		return 0, fmt.Errorf("%w: got %d, maximum %d", ErrPreserveDaysTooLarge, n, MaxPreserveDays)
	}
	return n, nil
}

// Validate checks the configuration for missing or invalid values.
func (c Config) Validate() error {
	if c.Handle == "" {
		return ErrMissingHandle
	}
	if c.AppPassword == "" {
		return ErrMissingPassword
	}
	if c.PreserveDays == unsetPreserveDays {
		return ErrMissingPreserveDays
	}
	if c.PreserveDays < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidPreserveDays, c.PreserveDays)
	}
	if c.PreserveDays > MaxPreserveDays {
		return fmt.Errorf("%w: got %d, maximum %d", ErrPreserveDaysTooLarge, c.PreserveDays, MaxPreserveDays)
	}

	u, err := url.Parse(c.PDSHost)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: got %q", ErrInvalidHost, c.PDSHost)
	}

	if c.PageSize < 1 || c.PageSize > MaxPageSize {
		return fmt.Errorf("%w: got %d", ErrInvalidPageSize, c.PageSize)
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidRequestsPerSecond, c.RequestsPerSecond)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidHTTPTimeout, c.HTTPTimeout)
	}

	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, c.Schedule, err)
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidLogLevel, c.LogLevel)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidLogFormat, c.LogFormat)
	}

	return nil
}

// LogValue keeps the app password out of logs.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("handle", c.Handle),
		slog.String("pds_host", c.PDSHost),
		slog.Int("preserve_days", c.PreserveDays),
		slog.Int("page_size", c.PageSize),
		slog.Float64("requests_per_second", c.RequestsPerSecond),
		slog.Duration("http_timeout", c.HTTPTimeout),
		slog.Bool("dry_run", c.DryRun),
		slog.String("schedule", c.Schedule),
	)
}
