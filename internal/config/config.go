package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nmckee/stint/internal/queue"
	"github.com/nmckee/stint/internal/week"
)

// Config holds all runtime configuration. It is read at the time of each
// computation: changing the timezone or week start affects only future
// week assignments, never stored week labels.
type Config struct {
	DBPath    string
	QueuePath string
	SubjectID string

	Timezone      string // IANA name
	WeekStart     string // "sunday" or "monday"
	WeekTargetMin int

	MaxSessionHours float64

	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	RetryMaxAttempts  int
}

// Default returns the built-in configuration. Paths are left empty and
// filled in by Load once the home directory is known.
func Default() Config {
	return Config{
		SubjectID:         "default",
		Timezone:          "Local",
		WeekStart:         "monday",
		WeekTargetMin:     40 * 60,
		MaxSessionHours:   14,
		RetryInitialDelay: time.Second,
		RetryMaxDelay:     60 * time.Second,
		RetryMaxAttempts:  5,
	}
}

// Load reads configuration from STINT_* environment variables, falling
// back to defaults for any unset values.
func Load() (Config, error) {
	cfg := Default()

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}
	cfg.DBPath = filepath.Join(home, ".stint", "stint.db")
	cfg.QueuePath = filepath.Join(home, ".stint", "queue.json")

	if v := os.Getenv("STINT_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("STINT_QUEUE"); v != "" {
		cfg.QueuePath = v
	}
	if v := os.Getenv("STINT_SUBJECT"); v != "" {
		cfg.SubjectID = v
	}
	if v := os.Getenv("STINT_TZ"); v != "" {
		cfg.Timezone = v
	}
	if v := os.Getenv("STINT_WEEK_START"); v != "" {
		cfg.WeekStart = v
	}
	if v := os.Getenv("STINT_WEEK_TARGET_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.WeekTargetMin = n
		}
	}
	if v := os.Getenv("STINT_MAX_SESSION_HOURS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.MaxSessionHours = f
		}
	}
	if v := os.Getenv("STINT_RETRY_INITIAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetryInitialDelay = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("STINT_RETRY_MAX_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetryMaxDelay = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("STINT_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetryMaxAttempts = n
		}
	}

	// Fail fast on values the core cannot interpret later.
	if _, err := cfg.Convention(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Convention builds the week convention from the current timezone and
// week-start settings.
func (c Config) Convention() (week.Convention, error) {
	start, err := week.ParseStart(c.WeekStart)
	if err != nil {
		return week.Convention{}, err
	}
	return week.NewConvention(c.Timezone, start)
}

// QueueOptions maps the retry settings onto the durable queue.
func (c Config) QueueOptions() queue.Options {
	return queue.Options{
		InitialDelay: c.RetryInitialDelay,
		MaxDelay:     c.RetryMaxDelay,
		MaxAttempts:  c.RetryMaxAttempts,
	}
}
