// Package session owns the lifetime of units of in-progress work.
//
// A Session binds one cancellable Worker to the tasks spawned against
// it.  A Manager holds at most one active Session and keeps displaced
// sessions in a graveyard until every task they spawned has finished,
// so a task never outlives the session it reports back to.
package session

import (
	"github.com/google/uuid"

	merr "mosaic/internal/errors"
	"mosaic/internal/metrics"
	"mosaic/internal/task"
	"mosaic/internal/worker"
	"mosaic/util"
)

// Submitter schedules task bodies.  *task.Pool implements it.
type Submitter interface {
	Submit(fn task.Func) (*task.Handle, error)
}

// Dispatcher carries a completion from a task goroutine back to the
// goroutine that owns the session.  deliver runs there; if the owner
// has stopped, discard runs instead.  Dispatch returns false when
// neither will ever run.
type Dispatcher interface {
	Dispatch(deliver, discard func()) bool
}

// Inline runs completions on the calling task goroutine.  Only use it
// when nothing else touches the session concurrently.
type Inline struct{}

func (Inline) Dispatch(deliver, _ func()) bool {
	deliver()
	return true
}

// Operation is one unit of asynchronous work.
type Operation struct {
	// Name keys the result stored on the session.
	Name string
	// Job is executed by the session's worker.
	Job worker.Job
	// Result extracts the payload once Job finished uncancelled.
	Result func() any
	// Fail receives a job fault in place of onSuccess.
	Fail func(s *Session, err error)
}

// Ack acknowledges a submission.  It says nothing about the outcome of
// the work itself.
type Ack struct {
	Accepted bool
	TaskID   uint64
	Err      error
}

// Session is one unit of in-progress state.  Except for Cancel and
// WasCancelled, its methods must be called from the goroutine that
// owns the manager.
type Session struct {
	id         string
	worker     *worker.Worker
	pool       Submitter
	dispatcher Dispatcher
	pending    []*task.Handle
	results    map[string]any
	released   bool

	logger  *util.Logger
	metrics *metrics.Collector
}

// New returns a session driving w.  A nil dispatcher means Inline.
func New(w *worker.Worker, pool Submitter, d Dispatcher, logger *util.Logger, m *metrics.Collector) *Session {
	if d == nil {
		d = Inline{}
	}
	if logger == nil {
		logger = util.Discard()
	}
	return &Session{
		id:         uuid.NewString(),
		worker:     w,
		pool:       pool,
		dispatcher: d,
		results:    make(map[string]any),
		logger:     logger,
		metrics:    m,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// StartOperation spawns op on the pool.  The task's handle is recorded
// before StartOperation returns, even when the pool rejects it.
// onSuccess runs at most once, on the owning goroutine, and only if the
// worker was not cancelled when the job returned.
func (s *Session) StartOperation(op Operation, onSuccess func(*Session)) Ack {
	h, err := s.pool.Submit(func(h *task.Handle) {
		s.run(h, op, onSuccess)
	})
	s.pending = append(s.pending, h)
	if err != nil {
		s.logger.Warn("session %s: %s not scheduled: %v", s.short(), op.Name, err)
		return Ack{TaskID: h.ID(), Err: err}
	}
	s.logger.Debug("session %s: task %d started (%s)", s.short(), h.ID(), op.Name)
	return Ack{Accepted: true, TaskID: h.ID()}
}

// run is the task body.  It executes on a pool goroutine.
func (s *Session) run(h *task.Handle, op Operation, onSuccess func(*Session)) {
	err := s.worker.Execute(op.Job)

	if s.worker.WasCancelled() {
		s.metrics.CompletionSuppressed()
		s.logger.Debug("session %s: task %d cancelled, completion suppressed", s.short(), h.ID())
		h.Finish()
		return
	}

	var payload any
	if err == nil && op.Result != nil {
		payload = op.Result()
	}
	deliver := func() {
		defer h.Finish()
		s.complete(h.ID(), op, payload, err, onSuccess)
	}
	discard := func() {
		s.logger.Debug("session %s: task %d completion discarded", s.short(), h.ID())
		h.Finish()
	}
	if !s.dispatcher.Dispatch(deliver, discard) {
		discard()
	}
}

// complete runs on the owning goroutine.  The cancel flag is read again
// here since a cancel may have been handled after the task posted.
func (s *Session) complete(id uint64, op Operation, payload any, err error, onSuccess func(*Session)) {
	if s.released {
		s.logger.Error("session %s: completion of task %d after release dropped", s.short(), id)
		return
	}
	if s.worker.WasCancelled() {
		s.metrics.CompletionSuppressed()
		s.logger.Debug("session %s: task %d cancelled before delivery, completion suppressed", s.short(), id)
		return
	}
	if err != nil {
		s.metrics.CompletionFailed()
		opErr := &merr.OperationError{Op: op.Name, TaskID: id, Err: err}
		s.logger.Warn("session %s: %v", s.short(), opErr)
		if op.Fail != nil {
			op.Fail(s, opErr)
		}
		return
	}
	if op.Name != "" {
		s.results[op.Name] = payload
	}
	s.metrics.CompletionDelivered()
	if onSuccess != nil {
		onSuccess(s)
	}
}

// Cancel asks the worker to stop.  It never blocks and never removes a
// pending handle.
func (s *Session) Cancel() { s.worker.Cancel() }

// WasCancelled reports whether Cancel has been called.
func (s *Session) WasCancelled() bool { return s.worker.WasCancelled() }

// HasPendingOperations reports whether any handle is still recorded.
func (s *Session) HasPendingOperations() bool { return len(s.pending) > 0 }

// Pending returns the number of recorded handles.
func (s *Session) Pending() int { return len(s.pending) }

// ReapCompleted drops every handle whose task finished or was never
// scheduled.  Running handles keep their relative order.  It polls each
// handle without waiting and returns how many were removed.
func (s *Session) ReapCompleted() int {
	kept := s.pending[:0]
	removed := 0
	for _, h := range s.pending {
		switch h.Status() {
		case task.StatusRunning:
			kept = append(kept, h)
		case task.StatusInvalid:
			removed++
			s.metrics.TaskReaped(true)
		default:
			removed++
			s.metrics.TaskReaped(false)
			s.logger.Debug("session %s: task %d reaped after %s", s.short(), h.ID(), h.Age())
		}
	}
	for i := len(kept); i < len(s.pending); i++ {
		s.pending[i] = nil
	}
	s.pending = kept
	return removed
}

// Result returns the payload the named operation stored on success.
func (s *Session) Result(name string) (any, bool) {
	v, ok := s.results[name]
	return v, ok
}

// Released reports whether the manager has destroyed the session.
func (s *Session) Released() bool { return s.released }

func (s *Session) release() {
	s.released = true
	s.results = nil
}

func (s *Session) short() string {
	if len(s.id) > 8 {
		return s.id[:8]
	}
	return s.id
}
