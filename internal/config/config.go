// Package config loads worker process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the worker's process configuration. DatabaseURL selects the
// PostgreSQL backend; when empty, a SQLite database under StateDir is used.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	StateDir    string `env:"STATE_DIR" envDefault:"/var/lib/shrubb"`

	WorkerID          string `env:"WORKER_ID"`
	PollIntervalMS    int    `env:"POLL_INTERVAL_MS" envDefault:"2000"`
	NudgeIntervalMS   int    `env:"NUDGE_INTERVAL_MS" envDefault:"60000"`
	JobMaxAttempts    int    `env:"JOB_MAX_ATTEMPTS" envDefault:"3"`
	JobLockTimeoutSec int    `env:"JOB_LOCK_TIMEOUT_SEC" envDefault:"300"`

	DefaultSpendCapCents int64 `env:"DEFAULT_SPEND_CAP_CENTS" envDefault:"0"`

	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
}

// Load parses the environment into a Config and validates ranges.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if c.PollIntervalMS <= 0 {
		return Config{}, fmt.Errorf("POLL_INTERVAL_MS must be positive, got %d", c.PollIntervalMS)
	}
	if c.JobMaxAttempts < 1 {
		return Config{}, fmt.Errorf("JOB_MAX_ATTEMPTS must be at least 1, got %d", c.JobMaxAttempts)
	}
	if c.JobLockTimeoutSec <= 0 {
		return Config{}, fmt.Errorf("JOB_LOCK_TIMEOUT_SEC must be positive, got %d", c.JobLockTimeoutSec)
	}
	return c, nil
}

// PollInterval returns the queue polling cadence as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// NudgeInterval returns the nudge scan cadence as a duration.
func (c Config) NudgeInterval() time.Duration {
	return time.Duration(c.NudgeIntervalMS) * time.Millisecond
}

// JobLockTimeout returns the stale-lock threshold as a duration.
func (c Config) JobLockTimeout() time.Duration {
	return time.Duration(c.JobLockTimeoutSec) * time.Second
}
