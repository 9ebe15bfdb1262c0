package core

import (
	"context"
	"fmt"
	"time"

	"mosaic/internal/command"
	"mosaic/util"
)

// ScriptMode runs a fixed list of commands, then waits for the
// operations they started before shutting down.
type ScriptMode struct {
	Engine *Engine
	Steps  []command.Step
	Grace  time.Duration
	Logger *util.Logger
}

// Run executes every step in order.  Pauses honour ctx; after the last
// step the manager gets up to Grace to become idle.
func (m *ScriptMode) Run(ctx context.Context) error {
	if err := m.Engine.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	for i, step := range m.Steps {
		if step.IsPause() {
			m.Logger.Debug("script: pause %s", step.Pause)
			if err := sleep(ctx, step.Pause); err != nil {
				m.Engine.Stop(m.Grace) //nolint:errcheck
				return err
			}
			continue
		}
		m.Logger.Debug("script: step %d: %s", i+1, step.Request)
		if err := m.Engine.Submit(ctx, step.Request); err != nil {
			m.Engine.Stop(m.Grace) //nolint:errcheck
			return fmt.Errorf("script step %d (%s): %w", i+1, step.Request, err)
		}
	}

	wctx, cancel := context.WithTimeout(ctx, m.Grace)
	defer cancel()
	if err := m.Engine.Flush(wctx); err == nil {
		if err := m.Engine.WaitIdle(wctx); err != nil {
			m.Logger.Warn("script: operations still running after %s", m.Grace)
		}
	}
	return m.Engine.Stop(m.Grace)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
