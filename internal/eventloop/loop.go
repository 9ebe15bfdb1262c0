// Package eventloop serialises everything that touches session state
// onto one goroutine.  Commands, task completions and idle maintenance
// ticks all pass through a single mailbox, so the handler never needs
// locks.
package eventloop

import (
	"context"
	"sync"
	"time"

	"mosaic/internal/command"
	merr "mosaic/internal/errors"
	"mosaic/util"
)

// Handler owns the state the loop protects.
type Handler interface {
	HandleCommand(req command.Request)
	PeriodicMaintenance()
}

const (
	DefaultTick        = 100 * time.Millisecond
	DefaultMailboxSize = 256
	// starvationFactor bounds how many ticks may pass without
	// maintenance while commands keep the idle timer from firing.
	starvationFactor = 10
)

type message struct {
	run     func(h Handler)
	discard func()
	command bool // resets the idle timer
}

// Option configures a Loop.
type Option func(*Loop)

// WithTick sets the idle interval after which maintenance runs.
func WithTick(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.tick = d
		}
	}
}

// WithMailboxSize sets the mailbox buffer size.
func WithMailboxSize(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.mailbox = make(chan message, n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *util.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loop is a single-goroutine actor.
type Loop struct {
	tick    time.Duration
	mailbox chan message
	logger  *util.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	senders sync.WaitGroup

	stop     chan struct{}
	stopOnce sync.Once
	closing  chan struct{} // closed once no new message is accepted
	exited   chan struct{} // closed after the mailbox was drained
	finished sync.Once
}

// New returns a loop that has not started yet.  Messages sent before
// Start are buffered.
func New(opts ...Option) *Loop {
	l := &Loop{
		tick:    DefaultTick,
		mailbox: make(chan message, DefaultMailboxSize),
		logger:  util.Discard(),
		stop:    make(chan struct{}),
		closing: make(chan struct{}),
		exited:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Tick returns the idle interval.
func (l *Loop) Tick() time.Duration { return l.tick }

// Start runs the loop for h on its own goroutine.
func (l *Loop) Start(h Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case l.closed:
		return merr.ErrLoopStopped
	case l.started:
		return merr.ErrLoopRunning
	}
	l.started = true
	go l.run(h)
	return nil
}

// Stop ends the loop and waits for it.  Messages still queued are
// discarded.  Safe to call more than once, and before Start, but never
// from the loop goroutine itself.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })

	l.mu.Lock()
	started := l.started
	l.mu.Unlock()
	if !started {
		l.finish()
	}
	<-l.exited
}

// Done is closed once the loop has exited and drained its mailbox.
func (l *Loop) Done() <-chan struct{} { return l.exited }

// Submit queues a command.  It blocks while the mailbox is full.
func (l *Loop) Submit(ctx context.Context, req command.Request) error {
	return l.send(ctx, message{
		run:     func(h Handler) { h.HandleCommand(req) },
		command: true,
	})
}

// Dispatch queues a task completion.  deliver runs on the loop
// goroutine; if the loop stops first, discard runs instead.  It
// returns false if the loop had already stopped, in which case neither
// runs.
func (l *Loop) Dispatch(deliver, discard func()) bool {
	err := l.send(context.Background(), message{
		run:     func(Handler) { deliver() },
		discard: discard,
	})
	return err == nil
}

// Call runs fn on the loop goroutine and waits for it to return.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	dropped := make(chan struct{})
	err := l.send(ctx, message{
		run: func(Handler) {
			defer close(ran)
			fn()
		},
		discard: func() { close(dropped) },
	})
	if err != nil {
		return err
	}
	select {
	case <-ran:
		return nil
	case <-dropped:
		return merr.ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Queued returns the number of messages waiting in the mailbox.
func (l *Loop) Queued() int { return len(l.mailbox) }

func (l *Loop) send(ctx context.Context, msg message) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return merr.ErrLoopStopped
	}
	l.senders.Add(1)
	l.mu.Unlock()
	defer l.senders.Done()

	select {
	case l.mailbox <- msg:
		return nil
	case <-l.closing:
		return merr.ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) run(h Handler) {
	defer l.finish()

	idle := time.NewTimer(l.tick)
	defer idle.Stop()
	starveAfter := starvationFactor * l.tick
	lastMaintenance := time.Now()

	maintain := func() {
		l.safely("maintenance", func() { h.PeriodicMaintenance() })
		lastMaintenance = time.Now()
	}

	for {
		// Stop wins over pending work.
		select {
		case <-l.stop:
			return
		default:
		}

		select {
		case <-l.stop:
			return
		case msg := <-l.mailbox:
			l.safely("message", func() { msg.run(h) })
			if !msg.command {
				continue
			}
			resetTimer(idle, l.tick)
			if time.Since(lastMaintenance) >= starveAfter {
				l.logger.Debug("maintenance overdue, forcing")
				maintain()
			}
		case <-idle.C:
			maintain()
			idle.Reset(l.tick)
		}
	}
}

// finish refuses new messages, waits for in-flight senders and hands
// everything left in the mailbox to its discard hook.
func (l *Loop) finish() {
	l.finished.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		close(l.closing)
		l.senders.Wait()

		dropped := 0
	drain:
		for {
			select {
			case msg := <-l.mailbox:
				if msg.discard != nil {
					msg.discard()
				}
				dropped++
			default:
				break drain
			}
		}
		if dropped > 0 {
			l.logger.Verbose("event loop stopped, %d queued message(s) discarded", dropped)
		}
		close(l.exited)
	})
}

func (l *Loop) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop: %s panicked: %v", what, r)
		}
	}()
	fn()
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
