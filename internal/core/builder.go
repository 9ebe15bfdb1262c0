package core

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"mosaic/config"
	"mosaic/internal/command"
	"mosaic/internal/metrics"
	"mosaic/internal/notify"
	"mosaic/util"
)

// Build constructs the appropriate Mode from the given configuration.
// Commands are read from in unless cfg carries a script; notifications
// and usage text go to out.
func Build(cfg *config.Config, in io.Reader, out io.Writer, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	if logger == nil {
		logger = util.Discard()
	}
	n := notify.NewWriter(out, notify.Format(cfg.Format))

	if !cfg.Interactive() {
		return buildScript(cfg, n, logger, m)
	}
	return buildConsole(cfg, in, out, n, logger, m), nil
}

// ── mode builders ────────────────────────────────────────────────────

func buildScript(cfg *config.Config, n notify.Notifier, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	steps, err := command.ParseScript(cfg.Script)
	if err != nil {
		return nil, fmt.Errorf("--run: %w", err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("--run: script has no commands")
	}

	return &ScriptMode{
		Engine: NewEngine(cfg, n, logger, m),
		Steps:  steps,
		Grace:  cfg.ShutdownGrace,
		Logger: logger,
	}, nil
}

func buildConsole(cfg *config.Config, in io.Reader, out io.Writer, n notify.Notifier, logger *util.Logger, m *metrics.Collector) Mode {
	return &ConsoleMode{
		Engine: NewEngine(cfg, n, logger, m),
		In:     in,
		Out:    out,
		Prompt: isTerminal(in),
		Grace:  cfg.ShutdownGrace,
		Logger: logger,
	}
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
