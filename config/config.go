// Package config defines the runtime configuration for mosaic and the
// layers it is loaded from: defaults, a TOML or YAML file, MOSAIC_*
// environment variables and CLI flags.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	merr "mosaic/internal/errors"
)

// Config holds every tuneable for one mosaic process.
type Config struct {
	// ── Event loop and pool ──────────────────────────────────────────
	TickInterval time.Duration // idle interval before maintenance
	Workers      int           // task pool goroutines
	QueueSize    int           // pending tasks before rejection
	MailboxSize  int           // event loop mailbox buffer

	// ── Simulated work ───────────────────────────────────────────────
	Steps        int
	StepDelayMin time.Duration
	StepDelayMax time.Duration

	// ── Sessions ─────────────────────────────────────────────────────
	CancelOnDiscard bool
	ShutdownGrace   time.Duration

	// ── Output ───────────────────────────────────────────────────────
	Format      string // "text" or "json"
	MetricsAddr string // host:port for /metrics, empty to disable
	Verbose     int

	// ── Input ────────────────────────────────────────────────────────
	Script     string // --run: commands to execute instead of the console
	ConfigFile string
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		TickInterval:    DefaultTickInterval,
		Workers:         DefaultWorkers,
		QueueSize:       DefaultQueueSize,
		MailboxSize:     DefaultMailboxSize,
		Steps:           DefaultSteps,
		StepDelayMin:    DefaultStepDelayMin,
		StepDelayMax:    DefaultStepDelayMax,
		CancelOnDiscard: DefaultCancelOnDiscard,
		ShutdownGrace:   DefaultShutdownGrace,
		Format:          DefaultFormat,
	}
}

// Interactive reports whether commands come from the console.
func (c *Config) Interactive() bool { return strings.TrimSpace(c.Script) == "" }

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Failures are *errors.ConfigError naming the offending flag.
func (c *Config) Validate() error {
	if c.TickInterval <= 0 {
		return &merr.ConfigError{Field: "tick", Value: c.TickInterval,
			Message: "must be positive", Hint: "try --tick 100ms"}
	}
	if c.Workers < 1 {
		return &merr.ConfigError{Field: "workers", Value: c.Workers,
			Message: "at least one worker is required"}
	}
	if c.QueueSize < 0 {
		return &merr.ConfigError{Field: "queue", Value: c.QueueSize,
			Message: "must not be negative"}
	}
	if c.MailboxSize < 1 {
		return &merr.ConfigError{Field: "mailbox", Value: c.MailboxSize,
			Message: "must be at least 1"}
	}
	if c.Steps < 1 {
		return &merr.ConfigError{Field: "steps", Value: c.Steps,
			Message: "must be at least 1"}
	}
	if c.StepDelayMin < 0 {
		return &merr.ConfigError{Field: "step-delay-min", Value: c.StepDelayMin,
			Message: "must not be negative"}
	}
	if c.StepDelayMax < c.StepDelayMin {
		return &merr.ConfigError{Field: "step-delay-max", Value: c.StepDelayMax,
			Message: fmt.Sprintf("must not be below --step-delay-min (%s)", c.StepDelayMin)}
	}
	if c.ShutdownGrace < 0 {
		return &merr.ConfigError{Field: "grace", Value: c.ShutdownGrace,
			Message: "must not be negative"}
	}
	switch c.Format {
	case FormatText, FormatJSON:
	default:
		return &merr.ConfigError{Field: "format", Value: c.Format,
			Message: "unknown output format", Hint: "use text or json"}
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			return &merr.ConfigError{Field: "metrics-addr", Value: c.MetricsAddr,
				Message: "expected host:port", Hint: "e.g. --metrics-addr 127.0.0.1:9090"}
		}
	}
	return nil
}
