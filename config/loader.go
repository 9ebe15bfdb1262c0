package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the MOSAIC_ prefix.  Boolean values
// accept "1", "true", "yes" and "0", "false", "no" (case-insensitive).
// Malformed values are ignored.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty,
// well-formed env vars override the existing value.
func LoadFromEnv(cfg *Config) {
	// Event loop and pool
	if v, ok := envDuration("MOSAIC_TICK"); ok {
		cfg.TickInterval = v
	}
	if v, ok := envInt("MOSAIC_WORKERS"); ok {
		cfg.Workers = v
	}
	if v, ok := envInt("MOSAIC_QUEUE"); ok {
		cfg.QueueSize = v
	}
	if v, ok := envInt("MOSAIC_MAILBOX"); ok {
		cfg.MailboxSize = v
	}

	// Simulated work
	if v, ok := envInt("MOSAIC_STEPS"); ok {
		cfg.Steps = v
	}
	if v, ok := envDuration("MOSAIC_STEP_DELAY_MIN"); ok {
		cfg.StepDelayMin = v
	}
	if v, ok := envDuration("MOSAIC_STEP_DELAY_MAX"); ok {
		cfg.StepDelayMax = v
	}

	// Sessions
	if v, ok := envBool("MOSAIC_CANCEL_ON_DISCARD"); ok {
		cfg.CancelOnDiscard = v
	}
	if v, ok := envDuration("MOSAIC_GRACE"); ok {
		cfg.ShutdownGrace = v
	}

	// Output and input
	if v := os.Getenv("MOSAIC_FORMAT"); v != "" {
		cfg.Format = strings.ToLower(v)
	}
	if v := os.Getenv("MOSAIC_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("MOSAIC_RUN"); v != "" {
		cfg.Script = v
	}
	if v, ok := envInt("MOSAIC_VERBOSE"); ok && v > 0 {
		cfg.Verbose = v
	}
}

// ConfigFileFromEnv returns MOSAIC_CONFIG, the config file used when
// --config is not given.
func ConfigFileFromEnv() string { return os.Getenv("MOSAIC_CONFIG") }

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	default:
		return false, false
	}
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
