// Package task tracks in-flight asynchronous operations.  A Handle is
// the pollable receipt for one submission; a Pool runs submissions on a
// fixed set of goroutines.
package task

import (
	"sync"
	"time"
)

// Status is the observable state of a Handle.
type Status int

const (
	// StatusInvalid means the handle has no task behind it: it is nil
	// or its submission was never scheduled.
	StatusInvalid Status = iota
	// StatusRunning means the task has not finished yet.
	StatusRunning
	// StatusCompleted means the task finished and its result, if any,
	// was handed off.
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusInvalid:
		return "invalid"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Handle is the receipt for one submitted task.
type Handle struct {
	id        uint64
	done      chan struct{} // nil for handles that were never scheduled
	once      sync.Once
	submitted time.Time
}

func newHandle(id uint64) *Handle {
	return &Handle{id: id, done: make(chan struct{}), submitted: time.Now()}
}

// Invalid returns a handle that reports StatusInvalid forever.
func Invalid(id uint64) *Handle {
	return &Handle{id: id, submitted: time.Now()}
}

// ID returns the pool-assigned task number (0 for rejected handles
// created outside a pool).
func (h *Handle) ID() uint64 {
	if h == nil {
		return 0
	}
	return h.id
}

// Age returns the time since submission.
func (h *Handle) Age() time.Duration {
	if h == nil {
		return 0
	}
	return time.Since(h.submitted)
}

// Status polls the handle without waiting.
func (h *Handle) Status() Status {
	if h == nil || h.done == nil {
		return StatusInvalid
	}
	select {
	case <-h.done:
		return StatusCompleted
	default:
		return StatusRunning
	}
}

// Done returns a channel closed when the task finishes.  It is nil for
// invalid handles.
func (h *Handle) Done() <-chan struct{} {
	if h == nil {
		return nil
	}
	return h.done
}

// Finish marks the task completed.  The task body calls it once its
// result has been delivered; later calls are no-ops.
func (h *Handle) Finish() {
	if h == nil || h.done == nil {
		return
	}
	h.once.Do(func() { close(h.done) })
}
