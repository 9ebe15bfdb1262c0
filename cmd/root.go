// Package cmd wires up the CLI flags and dispatches to the mosaic core.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"mosaic/config"
	"mosaic/internal/core"
	"mosaic/internal/metrics"
	"mosaic/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X mosaic/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Streams are the process's standard files.  Tests substitute buffers.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Execute parses args and runs mosaic against the process's stdio.
func Execute(ctx context.Context, args []string) error {
	return Run(ctx, args, Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr})
}

// Run is Execute with explicit streams.
func Run(ctx context.Context, args []string, st Streams) error {
	// Flags parse into their own Config so that only the ones the user
	// actually set override the file and environment layers.
	flags := config.Default()
	fs := flag.NewFlagSet("mosaic", flag.ContinueOnError)
	fs.SetOutput(st.Err)

	// ── event loop and pool ──────────────────────────────────────
	fs.DurationVar(&flags.TickInterval, "tick", flags.TickInterval, "Idle interval before periodic maintenance")
	fs.IntVar(&flags.Workers, "workers", flags.Workers, "Task pool goroutines")
	fs.IntVar(&flags.QueueSize, "queue", flags.QueueSize, "Pending tasks before submissions are rejected")
	fs.IntVar(&flags.MailboxSize, "mailbox", flags.MailboxSize, "Event loop mailbox size")

	// ── simulated work ───────────────────────────────────────────
	fs.IntVar(&flags.Steps, "steps", flags.Steps, "Increments per operation")
	fs.DurationVar(&flags.StepDelayMin, "step-delay-min", flags.StepDelayMin, "Minimum delay per increment")
	fs.DurationVar(&flags.StepDelayMax, "step-delay-max", flags.StepDelayMax, "Maximum delay per increment")

	// ── sessions ─────────────────────────────────────────────────
	fs.BoolVar(&flags.CancelOnDiscard, "cancel-on-discard", flags.CancelOnDiscard, "Cancel running operations when a session is ended or replaced")
	fs.DurationVar(&flags.ShutdownGrace, "grace", flags.ShutdownGrace, "How long shutdown waits for running operations")

	// ── input / output ───────────────────────────────────────────
	fs.StringVar(&flags.Script, "run", "", `Run a command script, e.g. "b; l 42; pause 200ms; e"`)
	fs.StringVar(&flags.Format, "format", flags.Format, "Notification format: text or json")
	fs.StringVar(&flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on host:port")
	fs.CountVarP(&flags.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var configPath string
	fs.StringVar(&configPath, "config", "", "Config file (.toml, .yaml or .yml)")

	var showVersion, showHelp, dryRun bool
	fs.BoolVar(&dryRun, "dry-run", false, "Validate the configuration and exit")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(st.Err, fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp {
		printUsage(st.Err, fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(st.Out, "mosaic %s\n", version)
		return nil
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments %q (use --run for scripts)", fs.Args())
	}

	// ── layers: defaults < file < env < flags ────────────────────
	cfg := config.Default()
	if configPath == "" {
		configPath = config.ConfigFileFromEnv()
	}
	if configPath != "" {
		if err := config.LoadFile(configPath, cfg); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)
	fs.Visit(func(f *flag.Flag) { applyFlag(cfg, flags, f.Name) })

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if dryRun {
		fmt.Fprintf(st.Out, "configuration OK (%d workers, tick %s, format %s)\n",
			cfg.Workers, cfg.TickInterval, cfg.Format)
		return nil
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(st.Err)
	if cfg.ConfigFile != "" {
		logger.Verbose("loaded config from %s", cfg.ConfigFile)
	}

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		mctx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			if err := metrics.Serve(mctx, cfg.MetricsAddr, m); err != nil {
				logger.Error("metrics: %v", err)
			}
		}()
		logger.Info("serving metrics on http://%s/metrics", cfg.MetricsAddr)
	}

	mode, err := core.Build(cfg, st.In, st.Out, logger, m)
	if err != nil {
		return err
	}
	err = mode.Run(ctx)
	logger.Debug("metrics: %s", m.JSON())
	return err
}

// ── helpers ──────────────────────────────────────────────────────────

// applyFlag copies the field behind the named flag from src to dst.
func applyFlag(dst, src *config.Config, name string) {
	switch name {
	case "tick":
		dst.TickInterval = src.TickInterval
	case "workers":
		dst.Workers = src.Workers
	case "queue":
		dst.QueueSize = src.QueueSize
	case "mailbox":
		dst.MailboxSize = src.MailboxSize
	case "steps":
		dst.Steps = src.Steps
	case "step-delay-min":
		dst.StepDelayMin = src.StepDelayMin
	case "step-delay-max":
		dst.StepDelayMax = src.StepDelayMax
	case "cancel-on-discard":
		dst.CancelOnDiscard = src.CancelOnDiscard
	case "grace":
		dst.ShutdownGrace = src.ShutdownGrace
	case "run":
		dst.Script = src.Script
	case "format":
		dst.Format = src.Format
	case "metrics-addr":
		dst.MetricsAddr = src.MetricsAddr
	case "verbose":
		dst.Verbose = src.Verbose
	}
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `mosaic - session and background operation manager v%s

Reads single-letter commands from stdin (or --run) and runs each
operation on a worker pool, reporting results as notifications.

Usage:
  mosaic [options]                            Interactive console
  mosaic --run "b; l 42; pause 1s; e"         Scripted run

Options:
`, version)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Environment:
  MOSAIC_CONFIG, MOSAIC_TICK, MOSAIC_WORKERS, MOSAIC_QUEUE, MOSAIC_MAILBOX,
  MOSAIC_STEPS, MOSAIC_STEP_DELAY_MIN, MOSAIC_STEP_DELAY_MAX,
  MOSAIC_CANCEL_ON_DISCARD, MOSAIC_GRACE, MOSAIC_FORMAT,
  MOSAIC_METRICS_ADDR, MOSAIC_RUN, MOSAIC_VERBOSE

Examples:
  mosaic                                      Console, text notifications
  mosaic -vv --format json                    Verbose logs, JSON lines
  mosaic --config mosaic.toml                 Settings from a file
  mosaic --metrics-addr 127.0.0.1:9090        Expose /metrics
`)
}
