package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"mosaic/internal/command"
	"mosaic/util"
)

// ConsoleMode reads one command per line and feeds it to the engine
// until EOF or ctx is cancelled.
type ConsoleMode struct {
	Engine *Engine
	In     io.Reader
	Out    io.Writer
	Prompt bool          // print "> " before each line
	Grace  time.Duration // how long EOF waits for running operations
	Logger *util.Logger
}

// Run prints the usage text, starts the engine and processes input.
// On EOF, operations already submitted are allowed up to Grace to
// finish; on cancellation every session is cancelled and drained.
func (m *ConsoleMode) Run(ctx context.Context) error {
	fmt.Fprint(m.Out, command.Usage())

	if err := m.Engine.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go m.read(done, lines, readErr)

	for {
		select {
		case <-ctx.Done():
			m.Logger.Verbose("console: interrupted")
			return m.Engine.Stop(m.Grace)

		case err := <-readErr:
			if err != nil {
				m.Logger.Error("console: read: %v", err)
			}
			return m.drain(ctx)

		case line := <-lines:
			req, err := command.Parse(line)
			if errors.Is(err, command.ErrEmpty) {
				continue
			}
			if err != nil {
				m.Logger.Warn("%v", err)
				continue
			}
			if err := m.Engine.Submit(ctx, req); err != nil {
				m.Logger.Error("submit %s: %v", req, err)
				return m.Engine.Stop(m.Grace)
			}
		}
	}
}

// read scans m.In line by line.  A nil error on readErr means EOF.
func (m *ConsoleMode) read(done <-chan struct{}, lines chan<- string, readErr chan<- error) {
	sc := bufio.NewScanner(m.In)
	for {
		if m.Prompt {
			fmt.Fprint(m.Out, "> ")
		}
		if !sc.Scan() {
			readErr <- sc.Err()
			return
		}
		select {
		case lines <- sc.Text():
		case <-done:
			return
		}
	}
}

// drain lets queued commands and running operations settle, then
// stops the engine.
func (m *ConsoleMode) drain(ctx context.Context) error {
	wctx, cancel := context.WithTimeout(ctx, m.Grace)
	defer cancel()

	if err := m.Engine.Flush(wctx); err == nil {
		if err := m.Engine.WaitIdle(wctx); err != nil {
			m.Logger.Warn("console: operations still running at exit: %v", err)
		}
	}
	return m.Engine.Stop(m.Grace)
}
