package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultTickInterval is how long the event loop waits for a
	// command before running maintenance.
	DefaultTickInterval = 100 * time.Millisecond

	// DefaultWorkers is the number of task pool goroutines.
	DefaultWorkers = 4

	// DefaultQueueSize is how many submitted tasks may wait for a free
	// pool goroutine before submissions are rejected.
	DefaultQueueSize = 64

	// DefaultMailboxSize buffers commands and completions in front of
	// the event loop.
	DefaultMailboxSize = 256

	// DefaultSteps is the number of work increments per operation.
	DefaultSteps = 100

	// DefaultStepDelayMin and DefaultStepDelayMax bound the simulated
	// cost of one increment.
	DefaultStepDelayMin = 15 * time.Millisecond
	DefaultStepDelayMax = 30 * time.Millisecond

	// DefaultCancelOnDiscard stops superseded work early.
	DefaultCancelOnDiscard = true

	// DefaultShutdownGrace is how long shutdown waits for displaced
	// sessions to drain.
	DefaultShutdownGrace = 5 * time.Second

	// DefaultFormat is the notification output format.
	DefaultFormat = FormatText
)

// Notification output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)
