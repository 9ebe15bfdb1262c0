// Package retry provides exponential backoff for polling work that
// finishes on its own schedule, such as draining sessions whose tasks
// are still running.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ── Permanent errors ─────────────────────────────────────────────────

// PermanentError wraps an error to signal that polling again will not
// help.  Return [Permanent](err) from the poll function to stop early.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as final.  Do returns the inner error at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ── Backoff ──────────────────────────────────────────────────────────

// Backoff polls with exponentially growing pauses.
type Backoff struct {
	// InitialDelay is the pause before the second attempt (default 10ms).
	InitialDelay time.Duration
	// MaxDelay caps a single pause (default 1s).
	MaxDelay time.Duration
	// Multiplier grows the pause after each attempt (default 2.0).
	Multiplier float64
	// MaxAttempts bounds the number of attempts including the first.
	// Zero means poll until the context is done.
	MaxAttempts int
	// Jitter randomises each pause by ±25%.
	Jitter bool
	// OnRetry, when set, is called after a failed attempt with the
	// pause that follows it.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DrainBackoff returns the schedule used while waiting for sessions to
// finish their outstanding tasks during shutdown.
func DrainBackoff() *Backoff {
	return &Backoff{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     250 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Do calls fn until it returns nil, returns a permanent error, the
// attempt budget runs out, or ctx is done.  attempt is 1-based.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	delay, multiplier, maxDelay := b.defaults()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
			return fmt.Errorf("gave up after %d attempts: %w", b.MaxAttempts, err)
		}

		wait := delay
		if b.Jitter {
			wait = addJitter(delay)
		}
		if b.OnRetry != nil {
			b.OnRetry(attempt, err, wait)
		}

		if timer == nil {
			timer = time.NewTimer(wait)
		} else {
			timer.Reset(wait)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * multiplier)
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func (b *Backoff) defaults() (delay time.Duration, multiplier float64, maxDelay time.Duration) {
	delay = b.InitialDelay
	if delay <= 0 {
		delay = 10 * time.Millisecond
	}
	multiplier = b.Multiplier
	if multiplier < 1 {
		multiplier = 2.0
	}
	maxDelay = b.MaxDelay
	if maxDelay <= 0 {
		maxDelay = time.Second
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay, multiplier, maxDelay
}

// addJitter adds ±25% randomisation to a duration.
func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := (rand.Float64() * 2 * quarter) - quarter
	result := float64(d) + delta
	return time.Duration(math.Max(result, float64(time.Millisecond)))
}
