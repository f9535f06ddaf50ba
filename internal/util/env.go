// Package util provides small helpers shared across components: random IDs
// and environment variable parsing.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// ParseBoolEnv reads a boolean environment variable, accepting
// true/1/yes/on and false/0/no/off (case-insensitive). Unset or
// unrecognized values fall back to the default.
func ParseBoolEnv(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	slog.Warn("ParseBoolEnv: invalid boolean value, using default", "key", key, "value", raw, "default", fallback)
	return fallback
}
