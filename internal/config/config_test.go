package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "STATE_DIR", "WORKER_ID", "POLL_INTERVAL_MS",
		"NUDGE_INTERVAL_MS", "JOB_MAX_ATTEMPTS", "JOB_LOCK_TIMEOUT_SEC",
		"DEFAULT_SPEND_CAP_CENTS", "OPENAI_API_KEY", "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN",
	} {
		// t.Setenv registers the restore; the unset makes the variable
		// truly absent rather than set-but-empty.
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.PollIntervalMS != 2000 {
		t.Errorf("Expected default poll interval 2000, got %d", c.PollIntervalMS)
	}
	if c.JobMaxAttempts != 3 {
		t.Errorf("Expected default max attempts 3, got %d", c.JobMaxAttempts)
	}
	if c.JobLockTimeoutSec != 300 {
		t.Errorf("Expected default lock timeout 300, got %d", c.JobLockTimeoutSec)
	}
	if c.PollInterval() != 2*time.Second {
		t.Errorf("Expected 2s poll interval, got %v", c.PollInterval())
	}
	if c.JobLockTimeout() != 5*time.Minute {
		t.Errorf("Expected 5m lock timeout, got %v", c.JobLockTimeout())
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/shrubb")
	t.Setenv("POLL_INTERVAL_MS", "500")
	t.Setenv("JOB_MAX_ATTEMPTS", "5")
	t.Setenv("DEFAULT_SPEND_CAP_CENTS", "10000")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.DatabaseURL != "postgres://localhost/shrubb" {
		t.Errorf("Unexpected database URL %q", c.DatabaseURL)
	}
	if c.PollInterval() != 500*time.Millisecond {
		t.Errorf("Expected 500ms poll interval, got %v", c.PollInterval())
	}
	if c.JobMaxAttempts != 5 {
		t.Errorf("Expected 5 attempts, got %d", c.JobMaxAttempts)
	}
	if c.DefaultSpendCapCents != 10000 {
		t.Errorf("Expected cap 10000, got %d", c.DefaultSpendCapCents)
	}
}

func TestLoadRejectsInvalidRanges(t *testing.T) {
	clearEnv(t)
	t.Setenv("JOB_MAX_ATTEMPTS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("Expected error for zero max attempts")
	}

	clearEnv(t)
	t.Setenv("POLL_INTERVAL_MS", "-100")
	if _, err := Load(); err == nil {
		t.Fatal("Expected error for negative poll interval")
	}
}
