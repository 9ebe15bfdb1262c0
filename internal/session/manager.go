package session

import (
	"context"
	"fmt"
	"time"

	"github.com/eapache/queue"

	"mosaic/internal/command"
	merr "mosaic/internal/errors"
	"mosaic/internal/metrics"
	"mosaic/internal/notify"
	"mosaic/internal/retry"
	"mosaic/internal/surface"
	"mosaic/internal/worker"
	"mosaic/util"
)

// Success messages, one per command.
const (
	MsgSessionStarted     = "Session started"
	MsgSessionStopped     = "Session stopped"
	MsgSurfaceLoaded      = "Surface loaded"
	MsgLayersUpdated      = "Layers updated"
	MsgPreviewComputed    = "Preview points computed"
	MsgDesignCreated      = "Design created"
	MsgOperationCancelled = "Operation cancelled"
	MsgSessionStatus      = "Session status"
)

// Options configure a Manager.
type Options struct {
	Pool       Submitter
	Dispatcher Dispatcher
	Notifier   notify.Notifier
	// Worker configures the worker built for every new session.
	Worker worker.Options
	// NewOperation builds the operation for a command.  Defaults to
	// SurfaceOperation.
	NewOperation func(name string, arg int) Operation
	// CancelOnDiscard cancels a displaced session's worker so its
	// running work stops early and reports nothing.
	CancelOnDiscard bool
	Logger          *util.Logger
	Metrics         *metrics.Collector
}

// SurfaceOperation builds an operation backed by a surface job.
func SurfaceOperation(name string, arg int) Operation {
	j := surface.NewJob(name, arg)
	return Operation{
		Name:   name,
		Job:    j,
		Result: func() any { return j.Result() },
	}
}

// Status is the payload of a status report.
type Status struct {
	Active    string `json:"active,omitempty"`
	Pending   int    `json:"pending"`
	Cancelled bool   `json:"cancelled"`
	Graveyard int    `json:"graveyard"`
}

func (s Status) String() string {
	if s.Active == "" {
		return fmt.Sprintf("no active session, %d draining", s.Graveyard)
	}
	return fmt.Sprintf("session %s, %d pending, cancelled=%t, %d draining",
		s.Active, s.Pending, s.Cancelled, s.Graveyard)
}

// Manager routes commands to the active session and retires displaced
// ones.  It is not safe for concurrent use: every method must run on
// the goroutine that also delivers completions.
type Manager struct {
	opts      Options
	active    *Session
	graveyard *queue.Queue
	notifier  notify.Notifier
	logger    *util.Logger
	metrics   *metrics.Collector
}

// NewManager returns a manager with no active session.
func NewManager(opts Options) *Manager {
	if opts.NewOperation == nil {
		opts.NewOperation = SurfaceOperation
	}
	if opts.Logger == nil {
		opts.Logger = util.Discard()
	}
	n := opts.Notifier
	if n == nil {
		n = notify.Discard
	}
	return &Manager{
		opts:      opts,
		graveyard: queue.New(),
		notifier:  n,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
}

// HandleCommand runs the manager method matching req.
func (m *Manager) HandleCommand(req command.Request) {
	switch req.Kind {
	case command.KindBegin:
		m.BeginSession()
	case command.KindEnd:
		m.EndSession()
	case command.KindLoadSurface:
		m.LoadSurface(req.Arg)
	case command.KindUpdateLayers:
		m.UpdateLayers(req.Arg)
	case command.KindGetPreviewPoints:
		m.GetPreviewPoints(req.Arg)
	case command.KindCreateDesign:
		m.CreateDesign(req.Arg)
	case command.KindCancel:
		m.CancelOperation()
	case command.KindStatus:
		m.Status()
	case command.KindHelp:
		m.Help()
	default:
		m.logger.Warn("ignoring unknown command %d", req.Kind)
	}
}

// BeginSession displaces any active session and installs a fresh one.
func (m *Manager) BeginSession() {
	if m.active != nil {
		m.discard(m.active)
	}
	s := New(worker.New(m.opts.Worker), m.opts.Pool, m.opts.Dispatcher, m.logger, m.metrics)
	m.active = s
	m.metrics.SessionStarted()
	m.metrics.SetActiveSessions(1)
	m.logger.Verbose("session %s created", s.ID())
	m.succeed(command.KindBegin, MsgSessionStarted, nil)
}

// EndSession displaces the active session.
func (m *Manager) EndSession() {
	if m.active == nil {
		m.reject(command.KindEnd, merr.ErrNoActiveSession)
		return
	}
	m.discard(m.active)
	m.succeed(command.KindEnd, MsgSessionStopped, nil)
}

// LoadSurface starts the load-surface operation on the active session.
func (m *Manager) LoadSurface(arg int) {
	m.startOperation(command.KindLoadSurface, arg, MsgSurfaceLoaded)
}

// UpdateLayers starts the update-layers operation.
func (m *Manager) UpdateLayers(arg int) {
	m.startOperation(command.KindUpdateLayers, arg, MsgLayersUpdated)
}

// GetPreviewPoints starts the get-preview-points operation.
func (m *Manager) GetPreviewPoints(arg int) {
	m.startOperation(command.KindGetPreviewPoints, arg, MsgPreviewComputed)
}

// CreateDesign starts the create-design operation.
func (m *Manager) CreateDesign(arg int) {
	m.startOperation(command.KindCreateDesign, arg, MsgDesignCreated)
}

// CancelOperation cancels the active session's worker.  The session
// keeps its handles until they are reaped and refuses new operations.
func (m *Manager) CancelOperation() {
	if m.active == nil {
		m.reject(command.KindCancel, merr.ErrNoActiveSession)
		return
	}
	m.active.Cancel()
	m.logger.Verbose("session %s cancelled", m.active.ID())
	m.succeed(command.KindCancel, MsgOperationCancelled, nil)
}

// Status reports the active session and graveyard.
func (m *Manager) Status() {
	m.succeed(command.KindStatus, MsgSessionStatus, m.Snapshot())
}

// Snapshot returns the current state without notifying.
func (m *Manager) Snapshot() Status {
	st := Status{Graveyard: m.graveyard.Length()}
	if s := m.active; s != nil {
		st.Active = s.ID()
		st.Pending = s.Pending()
		st.Cancelled = s.WasCancelled()
	}
	return st
}

// Help emits the command usage.
func (m *Manager) Help() {
	m.succeed(command.KindHelp, command.Usage(), nil)
}

// PeriodicMaintenance reaps finished tasks on the active session and
// releases graveyard sessions that have none left.
func (m *Manager) PeriodicMaintenance() {
	m.metrics.MaintenanceTick()
	if m.active != nil {
		m.active.ReapCompleted()
	}
	for n := m.graveyard.Length(); n > 0; n-- {
		s := m.graveyard.Remove().(*Session)
		s.ReapCompleted()
		if s.HasPendingOperations() {
			m.graveyard.Add(s)
			continue
		}
		m.release(s)
	}
	m.metrics.SetGraveyardSize(m.graveyard.Length())
}

// Active returns the active session, or nil.
func (m *Manager) Active() *Session { return m.active }

// GraveyardLen returns the number of sessions still draining.
func (m *Manager) GraveyardLen() int { return m.graveyard.Length() }

// Idle reports whether no session has outstanding tasks.
func (m *Manager) Idle() bool {
	if m.active != nil && m.active.HasPendingOperations() {
		return false
	}
	return m.graveyard.Length() == 0
}

// Shutdown cancels every session, displaces the active one and polls
// maintenance until the graveyard is empty or ctx is done.  Call it
// only once completions can no longer arrive through the dispatcher.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.active != nil {
		m.active.Cancel()
		m.discard(m.active)
	}
	for i := 0; i < m.graveyard.Length(); i++ {
		m.graveyard.Get(i).(*Session).Cancel()
	}

	b := retry.DrainBackoff()
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		m.logger.Debug("shutdown attempt %d: %v, retrying in %s", attempt, err, wait)
	}
	err := b.Do(ctx, func(int) error {
		m.PeriodicMaintenance()
		if n := m.graveyard.Length(); n > 0 {
			return fmt.Errorf("%d session(s) still draining", n)
		}
		return nil
	})
	if err != nil {
		m.logger.Warn("shutdown: %v", err)
		return fmt.Errorf("session shutdown: %w", err)
	}
	return nil
}

func (m *Manager) startOperation(kind command.Kind, arg int, okMsg string) {
	s := m.active
	switch {
	case s == nil:
		m.reject(kind, merr.ErrNoActiveSession)
		return
	case s.HasPendingOperations():
		m.reject(kind, merr.ErrOperationInProgress)
		return
	case s.WasCancelled():
		m.reject(kind, merr.ErrSessionCancelled)
		return
	}

	op := m.opts.NewOperation(kind.String(), arg)
	op.Fail = func(_ *Session, err error) {
		m.fail(kind, err)
	}
	ack := s.StartOperation(op, func(s *Session) {
		payload, _ := s.Result(op.Name)
		m.succeed(kind, okMsg, payload)
	})
	if ack.Err != nil {
		cause := merr.ErrPoolSaturated
		if merr.Is(ack.Err, merr.ErrPoolClosed) {
			cause = merr.ErrPoolClosed
		}
		m.fail(kind, fmt.Errorf("operation rejected: %w", cause))
		// Nothing is running, so the next command must not see the
		// stale handle as work in progress.
		s.ReapCompleted()
	}
}

// discard removes s from the active slot.  Sessions with recorded
// handles wait in the graveyard, the rest are released at once.
func (m *Manager) discard(s *Session) {
	if m.active == s {
		m.active = nil
		m.metrics.SetActiveSessions(0)
	}
	if m.opts.CancelOnDiscard {
		s.Cancel()
	}
	if s.HasPendingOperations() {
		m.graveyard.Add(s)
		m.metrics.SetGraveyardSize(m.graveyard.Length())
		m.logger.Verbose("session %s moved to graveyard with %d pending task(s)", s.ID(), s.Pending())
		return
	}
	m.release(s)
}

func (m *Manager) release(s *Session) {
	s.release()
	m.metrics.SessionDestroyed()
	m.logger.Verbose("session %s destroyed", s.ID())
}

func (m *Manager) succeed(kind command.Kind, msg string, payload any) {
	m.notifier.Notify(notify.Success(kind.String(), msg, payload))
}

func (m *Manager) reject(kind command.Kind, sentinel error) {
	m.fail(kind, merr.InvalidState(kind.String(), sentinel))
}

func (m *Manager) fail(kind command.Kind, err error) {
	msg := merr.Message(err)
	m.metrics.RecordError(msg)
	m.logger.Verbose("%s: %s", kind, msg)
	m.notifier.Notify(notify.Failure(kind.String(), msg))
}
