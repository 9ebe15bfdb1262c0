package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mosaic/config"
	"mosaic/internal/command"
	"mosaic/internal/metrics"
	"mosaic/internal/notify"
	"mosaic/util"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writes made by
// notifications arriving from the event loop.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// fastConfig returns a Config whose operations finish in microseconds.
func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.TickInterval = 10 * time.Millisecond
	cfg.Steps = 3
	cfg.StepDelayMin = 0
	cfg.StepDelayMax = 0
	cfg.ShutdownGrace = 2 * time.Second
	return cfg
}

// assertInOrder fails the test unless every want appears in out, in
// the given order.
func assertInOrder(t *testing.T, out string, want ...string) {
	t.Helper()
	pos := 0
	for _, w := range want {
		i := strings.Index(out[pos:], w)
		if i < 0 {
			t.Fatalf("output missing %q after offset %d:\n%s", w, pos, out)
		}
		pos += i + len(w)
	}
}

// ── Build ────────────────────────────────────────────────────────────

// TestBuild_Console verifies that Build produces a ConsoleMode when no
// script is configured.
func TestBuild_Console(t *testing.T) {
	mode, err := Build(fastConfig(), strings.NewReader(""), &bytes.Buffer{}, util.NewLogger(0), nil)
	if err != nil {
		t.Fatal(err)
	}
	cm, ok := mode.(*ConsoleMode)
	if !ok {
		t.Fatalf("expected *ConsoleMode, got %T", mode)
	}
	if cm.Prompt {
		t.Error("prompt should be off for a non-terminal reader")
	}
}

// TestBuild_Script verifies Build produces a ScriptMode for --run.
func TestBuild_Script(t *testing.T) {
	cfg := fastConfig()
	cfg.Script = "b; l 7; pause 10ms; e"

	mode, err := Build(cfg, nil, &bytes.Buffer{}, util.NewLogger(0), nil)
	if err != nil {
		t.Fatal(err)
	}
	sm, ok := mode.(*ScriptMode)
	if !ok {
		t.Fatalf("expected *ScriptMode, got %T", mode)
	}
	if len(sm.Steps) != 4 {
		t.Errorf("len(Steps) = %d, want 4", len(sm.Steps))
	}
	if !sm.Steps[2].IsPause() {
		t.Error("third step should be a pause")
	}
}

// TestBuild_BadScript verifies script errors surface from Build.
func TestBuild_BadScript(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   error
	}{
		{"unknown command", "b; q", command.ErrUnknownCommand},
		{"bad argument", "l seven", command.ErrBadArgument},
		{"bad pause", "pause soon", command.ErrBadArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fastConfig()
			cfg.Script = tt.script
			_, err := Build(cfg, nil, &bytes.Buffer{}, util.NewLogger(0), nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("Build error = %v, want %v", err, tt.want)
			}
			if err != nil && !strings.HasPrefix(err.Error(), "--run:") {
				t.Errorf("error %q should name --run", err)
			}
		})
	}
}

// TestBuild_EmptyScript verifies a script of separators is refused.
func TestBuild_EmptyScript(t *testing.T) {
	cfg := fastConfig()
	cfg.Script = " ; , "
	if _, err := Build(cfg, nil, &bytes.Buffer{}, util.NewLogger(0), nil); err == nil {
		t.Fatal("expected error for empty script")
	}
}

// ── Script mode ──────────────────────────────────────────────────────

// TestScriptMode_Run drives a whole session through a script and checks
// the notifications in order.
func TestScriptMode_Run(t *testing.T) {
	cfg := fastConfig()
	cfg.Script = "b; l 7; pause 100ms; s; e; e"
	out := &syncBuffer{}
	m := metrics.New()

	mode, err := Build(cfg, nil, out, util.NewLogger(0), m)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mode.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	assertInOrder(t, out.String(),
		"Success: Session started",
		"Success: Surface loaded",
		"Success: Session status",
		"Success: Session stopped",
		"Error: no active session",
	)

	snap := m.Snapshot()
	if snap.SessionsStarted != 1 || snap.SessionsDestroyed != 1 {
		t.Errorf("sessions started/destroyed = %d/%d, want 1/1",
			snap.SessionsStarted, snap.SessionsDestroyed)
	}
}

// TestScriptMode_JSON verifies JSON lines replace the text format.
func TestScriptMode_JSON(t *testing.T) {
	cfg := fastConfig()
	cfg.Script = "b; e"
	cfg.Format = config.FormatJSON
	out := &syncBuffer{}

	mode, err := Build(cfg, nil, out, util.NewLogger(0), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := mode.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], `"message":"Session started"`) {
		t.Errorf("first line = %s", lines[0])
	}
	if !strings.Contains(lines[1], `"level":"success"`) {
		t.Errorf("second line = %s", lines[1])
	}
}

// TestScriptMode_Cancelled verifies a cancelled context interrupts a
// pause and still shuts the engine down.
func TestScriptMode_Cancelled(t *testing.T) {
	cfg := fastConfig()
	cfg.Script = "b; pause 1h; e"
	out := &syncBuffer{}

	mode, err := Build(cfg, nil, out, util.NewLogger(0), nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = mode.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("pause was not interrupted")
	}
	if strings.Contains(out.String(), "Session stopped") {
		t.Error("steps after the interrupted pause should not run")
	}
}

// ── Console mode ─────────────────────────────────────────────────────

// TestConsoleMode_EOF feeds commands through a reader and checks that
// EOF waits for the running operation before stopping.
func TestConsoleMode_EOF(t *testing.T) {
	in := strings.NewReader("b\n\nl 3\nnonsense\nh\n")
	out := &syncBuffer{}

	mode, err := Build(fastConfig(), in, out, util.NewLogger(0), nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mode.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := out.String()
	if !strings.HasPrefix(got, "Usage:") {
		t.Errorf("output should start with usage, got %q", got[:min(len(got), 40)])
	}
	assertInOrder(t, got, "Success: Session started", "Success: Surface loaded")
	if strings.Contains(got, "\n> ") {
		t.Error("no prompt expected for a non-terminal reader")
	}
}

// TestConsoleMode_Prompt verifies the prompt is printed when enabled.
func TestConsoleMode_Prompt(t *testing.T) {
	out := &syncBuffer{}
	mode := &ConsoleMode{
		Engine: NewEngine(fastConfig(), notify.NewWriter(out, notify.FormatText), nil, nil),
		In:     strings.NewReader("s\n"),
		Out:    out,
		Prompt: true,
		Grace:  time.Second,
		Logger: util.NewLogger(0),
	}
	if err := mode.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "\n> ") {
		t.Errorf("expected prompt in output:\n%s", out.String())
	}
}

// blockingReader never returns, like an idle terminal.
type blockingReader struct{ stop chan struct{} }

func (r blockingReader) Read([]byte) (int, error) {
	<-r.stop
	return 0, errors.New("closed")
}

// TestConsoleMode_Interrupt verifies cancellation ends the console even
// while the reader is blocked.
func TestConsoleMode_Interrupt(t *testing.T) {
	r := blockingReader{stop: make(chan struct{})}
	defer close(r.stop)

	mode, err := Build(fastConfig(), r, &syncBuffer{}, util.NewLogger(0), nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mode.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("console did not stop after cancellation")
	}
}

// ── Engine ───────────────────────────────────────────────────────────

// TestEngine_Lifecycle exercises Start, Submit, Snapshot, WaitIdle and
// Stop directly.
func TestEngine_Lifecycle(t *testing.T) {
	rec := &notify.Recorder{}
	e := NewEngine(fastConfig(), rec, nil, nil)
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	for _, req := range []command.Request{
		{Kind: command.KindBegin},
		{Kind: command.KindLoadSurface, Arg: 5},
	} {
		if err := e.Submit(ctx, req); err != nil {
			t.Fatalf("Submit(%s): %v", req, err)
		}
	}
	if err := e.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}

	st, err := e.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Active == "" || st.Pending != 0 {
		t.Errorf("status = %+v, want active with no pending", st)
	}
	if rec.Count("Surface loaded") != 1 {
		t.Errorf("messages = %v", rec.Messages())
	}

	if err := e.Stop(time.Second); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if err := e.Stop(time.Second); err != nil {
		t.Errorf("second Stop: %v", err)
	}
	if err := e.Submit(ctx, command.Request{Kind: command.KindEnd}); err == nil {
		t.Error("Submit after Stop should fail")
	}
	if e.Manager.Active() != nil {
		t.Error("shutdown should displace the active session")
	}
}

// TestEngine_StartTwice verifies a running engine refuses a second start.
func TestEngine_StartTwice(t *testing.T) {
	e := NewEngine(fastConfig(), notify.Discard, nil, nil)
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	defer e.Stop(time.Second) //nolint:errcheck

	if err := e.Start(); err == nil {
		t.Error("second Start should fail")
	}
}
