// Package worker runs one cancellable long-running computation at a
// time.  Cancellation is cooperative: Cancel only raises a flag, and
// Execute observes it between work increments.
package worker

import (
	"math/rand"
	"sync/atomic"
	"time"
)

// Token is a set-once cancellation flag.  It moves from "live" to
// "cancelled" exactly once and never back.
type Token struct {
	cancelled atomic.Bool
}

// Cancel raises the flag.  Idempotent and non-blocking.
func (t *Token) Cancel() { t.cancelled.Store(true) }

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool { return t.cancelled.Load() }

// Job is the opaque body of a computation.  Step performs increment i
// and may consult tok for finer-grained early exit.  A non-nil error is
// a domain fault and stops the computation.
type Job interface {
	Step(tok *Token, i int) error
}

// JobFunc adapts a function to Job.
type JobFunc func(tok *Token, i int) error

// Step calls f(tok, i).
func (f JobFunc) Step(tok *Token, i int) error { return f(tok, i) }

// Options tune the simulated cost of a computation.
type Options struct {
	// Steps is the number of work increments per Execute (default 100).
	Steps int
	// MinDelay and MaxDelay bound the wall-clock time spent after each
	// increment; the actual delay is uniform in [MinDelay, MaxDelay].
	MinDelay time.Duration
	MaxDelay time.Duration
	// Sleep replaces time.Sleep, mainly for tests.
	Sleep func(time.Duration)
}

// Worker executes jobs against its own cancellation token.
type Worker struct {
	token *Token
	opts  Options
}

// New returns a Worker with a fresh, uncancelled token.
func New(opts Options) *Worker {
	if opts.Steps <= 0 {
		opts.Steps = 100
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Worker{token: &Token{}, opts: opts}
}

// Token returns the worker's cancellation token.
func (w *Worker) Token() *Token { return w.token }

// Cancel requests that the running (or next) Execute stop early.  It
// has no effect on work already completed.
func (w *Worker) Cancel() { w.token.Cancel() }

// WasCancelled reports whether Cancel has been called.  Read it after
// Execute returns to tell a finished computation from an aborted one.
func (w *Worker) WasCancelled() bool { return w.token.Cancelled() }

// Execute runs job for the configured number of increments, checking
// the token before each one.  The delay follows every increment but
// the last.  It returns nil both on completion and on
// observed cancellation; only a job fault produces an error.
func (w *Worker) Execute(job Job) error {
	for i := 0; i < w.opts.Steps; i++ {
		if w.token.Cancelled() {
			return nil
		}
		if err := job.Step(w.token, i); err != nil {
			return err
		}
		if i == w.opts.Steps-1 {
			break
		}
		if d := w.delay(); d > 0 {
			w.opts.Sleep(d)
		}
	}
	return nil
}

func (w *Worker) delay() time.Duration {
	span := w.opts.MaxDelay - w.opts.MinDelay
	if span <= 0 {
		return w.opts.MinDelay
	}
	return w.opts.MinDelay + time.Duration(rand.Int63n(int64(span)+1))
}
