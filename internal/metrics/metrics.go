// Package metrics provides lightweight, lock-free counters and gauges
// for tracking the session manager at runtime.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for the session manager.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	sessionsStarted   atomic.Int64
	sessionsDestroyed atomic.Int64
	sessionsActive    atomic.Int64
	graveyardSize     atomic.Int64

	tasksSubmitted atomic.Int64
	tasksRejected  atomic.Int64
	tasksReaped    atomic.Int64
	tasksStale     atomic.Int64
	taskPanics     atomic.Int64

	completionsDelivered  atomic.Int64
	completionsSuppressed atomic.Int64
	completionsFailed     atomic.Int64

	maintenanceTicks atomic.Int64
	errorsTotal      atomic.Int64

	mu              sync.RWMutex
	startTime       time.Time
	lastMaintenance time.Time
	lastError       time.Time
	lastErrorMsg    string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Session metrics ──────────────────────────────────────────────────

// SessionStarted records a newly created session.
func (c *Collector) SessionStarted() {
	if c == nil {
		return
	}
	c.sessionsStarted.Add(1)
}

// SessionDestroyed records a released session.
func (c *Collector) SessionDestroyed() {
	if c == nil {
		return
	}
	c.sessionsDestroyed.Add(1)
}

// SetActiveSessions sets the active-slot gauge (0 or 1).
func (c *Collector) SetActiveSessions(n int) {
	if c == nil {
		return
	}
	c.sessionsActive.Store(int64(n))
}

// SetGraveyardSize sets the number of sessions still draining.
func (c *Collector) SetGraveyardSize(n int) {
	if c == nil {
		return
	}
	c.graveyardSize.Store(int64(n))
}

// SessionsStarted returns the lifetime session count.
func (c *Collector) SessionsStarted() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsStarted.Load()
}

// SessionsDestroyed returns the number of released sessions.
func (c *Collector) SessionsDestroyed() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsDestroyed.Load()
}

// ActiveSessions returns the active-slot gauge.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// GraveyardSize returns the graveyard gauge.
func (c *Collector) GraveyardSize() int64 {
	if c == nil {
		return 0
	}
	return c.graveyardSize.Load()
}

// ── Task metrics ─────────────────────────────────────────────────────

// TaskSubmitted records a task accepted by the pool.
func (c *Collector) TaskSubmitted() {
	if c == nil {
		return
	}
	c.tasksSubmitted.Add(1)
}

// TaskRejected records a submission the pool refused.
func (c *Collector) TaskRejected() {
	if c == nil {
		return
	}
	c.tasksRejected.Add(1)
}

// TaskReaped records a handle removed by reaping.  stale is true when
// the handle was never scheduled.
func (c *Collector) TaskReaped(stale bool) {
	if c == nil {
		return
	}
	c.tasksReaped.Add(1)
	if stale {
		c.tasksStale.Add(1)
	}
}

// TaskPanicked records a task body that panicked.
func (c *Collector) TaskPanicked() {
	if c == nil {
		return
	}
	c.taskPanics.Add(1)
}

// TasksSubmitted returns the number of accepted tasks.
func (c *Collector) TasksSubmitted() int64 {
	if c == nil {
		return 0
	}
	return c.tasksSubmitted.Load()
}

// TasksRejected returns the number of refused submissions.
func (c *Collector) TasksRejected() int64 {
	if c == nil {
		return 0
	}
	return c.tasksRejected.Load()
}

// TasksReaped returns the number of reaped handles.
func (c *Collector) TasksReaped() int64 {
	if c == nil {
		return 0
	}
	return c.tasksReaped.Load()
}

// TasksStale returns the number of reaped handles that never ran.
func (c *Collector) TasksStale() int64 {
	if c == nil {
		return 0
	}
	return c.tasksStale.Load()
}

// ── Completion metrics ───────────────────────────────────────────────

// CompletionDelivered records a success callback invoked.
func (c *Collector) CompletionDelivered() {
	if c == nil {
		return
	}
	c.completionsDelivered.Add(1)
}

// CompletionSuppressed records a completion dropped because the
// operation was cancelled.
func (c *Collector) CompletionSuppressed() {
	if c == nil {
		return
	}
	c.completionsSuppressed.Add(1)
}

// CompletionFailed records a job that returned a fault.
func (c *Collector) CompletionFailed() {
	if c == nil {
		return
	}
	c.completionsFailed.Add(1)
}

// CompletionsDelivered returns the delivered callback count.
func (c *Collector) CompletionsDelivered() int64 {
	if c == nil {
		return 0
	}
	return c.completionsDelivered.Load()
}

// CompletionsSuppressed returns the suppressed completion count.
func (c *Collector) CompletionsSuppressed() int64 {
	if c == nil {
		return 0
	}
	return c.completionsSuppressed.Load()
}

// CompletionsFailed returns the failed job count.
func (c *Collector) CompletionsFailed() int64 {
	if c == nil {
		return 0
	}
	return c.completionsFailed.Load()
}

// ── Maintenance ──────────────────────────────────────────────────────

// MaintenanceTick records one periodic maintenance pass.
func (c *Collector) MaintenanceTick() {
	if c == nil {
		return
	}
	c.maintenanceTicks.Add(1)
	c.mu.Lock()
	c.lastMaintenance = time.Now()
	c.mu.Unlock()
}

// MaintenanceTicks returns the number of maintenance passes.
func (c *Collector) MaintenanceTicks() int64 {
	if c == nil {
		return 0
	}
	return c.maintenanceTicks.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime                string `json:"uptime"`
	SessionsStarted       int64  `json:"sessions_started"`
	SessionsDestroyed     int64  `json:"sessions_destroyed"`
	SessionsActive        int64  `json:"sessions_active"`
	GraveyardSize         int64  `json:"graveyard_size"`
	TasksSubmitted        int64  `json:"tasks_submitted"`
	TasksRejected         int64  `json:"tasks_rejected"`
	TasksReaped           int64  `json:"tasks_reaped"`
	TasksStale            int64  `json:"tasks_stale"`
	TaskPanics            int64  `json:"task_panics"`
	CompletionsDelivered  int64  `json:"completions_delivered"`
	CompletionsSuppressed int64  `json:"completions_suppressed"`
	CompletionsFailed     int64  `json:"completions_failed"`
	MaintenanceTicks      int64  `json:"maintenance_ticks"`
	ErrorsTotal           int64  `json:"errors_total"`
	LastMaintenance       string `json:"last_maintenance,omitempty"`
	LastError             string `json:"last_error,omitempty"`
	LastErrorMessage      string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:                time.Since(c.startTime).Truncate(time.Second).String(),
		SessionsStarted:       c.sessionsStarted.Load(),
		SessionsDestroyed:     c.sessionsDestroyed.Load(),
		SessionsActive:        c.sessionsActive.Load(),
		GraveyardSize:         c.graveyardSize.Load(),
		TasksSubmitted:        c.tasksSubmitted.Load(),
		TasksRejected:         c.tasksRejected.Load(),
		TasksReaped:           c.tasksReaped.Load(),
		TasksStale:            c.tasksStale.Load(),
		TaskPanics:            c.taskPanics.Load(),
		CompletionsDelivered:  c.completionsDelivered.Load(),
		CompletionsSuppressed: c.completionsSuppressed.Load(),
		CompletionsFailed:     c.completionsFailed.Load(),
		MaintenanceTicks:      c.maintenanceTicks.Load(),
		ErrorsTotal:           c.errorsTotal.Load(),
	}
	if !c.lastMaintenance.IsZero() {
		s.LastMaintenance = c.lastMaintenance.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
