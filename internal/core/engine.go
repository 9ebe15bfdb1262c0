package core

import (
	"context"
	"sync"
	"time"

	"mosaic/config"
	"mosaic/internal/command"
	"mosaic/internal/eventloop"
	"mosaic/internal/metrics"
	"mosaic/internal/notify"
	"mosaic/internal/session"
	"mosaic/internal/task"
	"mosaic/internal/worker"
	"mosaic/util"
)

// Engine owns the runtime: a task pool, an event loop and the session
// manager the loop serialises.
type Engine struct {
	Pool    *task.Pool
	Loop    *eventloop.Loop
	Manager *session.Manager

	logger   *util.Logger
	stopOnce sync.Once
	stopErr  error
}

// NewEngine builds an engine from cfg.  Notifications go to n.
func NewEngine(cfg *config.Config, n notify.Notifier, logger *util.Logger, m *metrics.Collector) *Engine {
	if logger == nil {
		logger = util.Discard()
	}
	pool := task.NewPool(cfg.Workers, cfg.QueueSize, logger.Named("pool"), m)
	loop := eventloop.New(
		eventloop.WithTick(cfg.TickInterval),
		eventloop.WithMailboxSize(cfg.MailboxSize),
		eventloop.WithLogger(logger.Named("loop")),
	)
	mgr := session.NewManager(session.Options{
		Pool:       pool,
		Dispatcher: loop,
		Notifier:   n,
		Worker: worker.Options{
			Steps:    cfg.Steps,
			MinDelay: cfg.StepDelayMin,
			MaxDelay: cfg.StepDelayMax,
		},
		CancelOnDiscard: cfg.CancelOnDiscard,
		Logger:          logger.Named("session"),
		Metrics:         m,
	})
	return &Engine{Pool: pool, Loop: loop, Manager: mgr, logger: logger}
}

// Start launches the event loop.
func (e *Engine) Start() error {
	if err := e.Loop.Start(e.Manager); err != nil {
		return err
	}
	e.logger.Verbose("engine started: %d workers, tick %s", e.Pool.Workers(), e.Loop.Tick())
	return nil
}

// Submit queues a command for the manager.
func (e *Engine) Submit(ctx context.Context, req command.Request) error {
	return e.Loop.Submit(ctx, req)
}

// Flush returns once every command submitted so far has been handled.
func (e *Engine) Flush(ctx context.Context) error {
	return e.Loop.Call(ctx, func() {})
}

// Snapshot reads the manager state on the loop goroutine.
func (e *Engine) Snapshot(ctx context.Context) (session.Status, error) {
	var st session.Status
	err := e.Loop.Call(ctx, func() { st = e.Manager.Snapshot() })
	return st, err
}

// WaitIdle polls the manager once per tick until no session has
// outstanding tasks, or ctx is done.
func (e *Engine) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(e.Loop.Tick())
	defer ticker.Stop()
	for {
		var idle bool
		if err := e.Loop.Call(ctx, func() { idle = e.Manager.Idle() }); err != nil {
			return err
		}
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stop halts the loop, then drains displaced sessions for up to grace
// and closes the pool.  Later calls return the first result.
func (e *Engine) Stop(grace time.Duration) error {
	e.stopOnce.Do(func() {
		e.Loop.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		e.stopErr = e.Manager.Shutdown(ctx)

		e.Pool.Close()
		e.logger.Verbose("engine stopped")
	})
	return e.stopErr
}
