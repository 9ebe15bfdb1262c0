package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	merr "mosaic/internal/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_TOML(t *testing.T) {
	path := writeFile(t, "mosaic.toml", `
tick = "50ms"
workers = 2
steps = 10
step_delay_min = "0s"
step_delay_max = "1ms"
cancel_on_discard = false
format = "json"
run = "b; l 3; e"
`)
	cfg := Default()
	if err := LoadFile(path, cfg); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.TickInterval != 50*time.Millisecond {
		t.Errorf("TickInterval = %v, want 50ms", cfg.TickInterval)
	}
	if cfg.Workers != 2 || cfg.Steps != 10 {
		t.Errorf("Workers/Steps = %d/%d, want 2/10", cfg.Workers, cfg.Steps)
	}
	if cfg.StepDelayMin != 0 || cfg.StepDelayMax != time.Millisecond {
		t.Errorf("step delay = [%v, %v]", cfg.StepDelayMin, cfg.StepDelayMax)
	}
	if cfg.CancelOnDiscard {
		t.Error("CancelOnDiscard should be false")
	}
	if cfg.Format != FormatJSON || cfg.Script != "b; l 3; e" {
		t.Errorf("Format/Script = %q/%q", cfg.Format, cfg.Script)
	}
	if cfg.QueueSize != DefaultQueueSize {
		t.Errorf("unset queue should keep default, got %d", cfg.QueueSize)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
}

func TestLoadFile_YAML(t *testing.T) {
	for _, name := range []string{"mosaic.yaml", "mosaic.yml"} {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, name, `
queue: 8
mailbox: 32
shutdown_grace: 2s
metrics_addr: "127.0.0.1:9100"
verbose: 1
`)
			cfg := Default()
			if err := LoadFile(path, cfg); err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			if cfg.QueueSize != 8 || cfg.MailboxSize != 32 {
				t.Errorf("Queue/Mailbox = %d/%d, want 8/32", cfg.QueueSize, cfg.MailboxSize)
			}
			if cfg.ShutdownGrace != 2*time.Second {
				t.Errorf("ShutdownGrace = %v, want 2s", cfg.ShutdownGrace)
			}
			if cfg.MetricsAddr != "127.0.0.1:9100" || cfg.Verbose != 1 {
				t.Errorf("MetricsAddr/Verbose = %q/%d", cfg.MetricsAddr, cfg.Verbose)
			}
			if !cfg.CancelOnDiscard {
				t.Error("unset cancel_on_discard should keep default")
			}
		})
	}
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantSub string
		config  bool // expect *ConfigError
	}{
		{"unknown extension", "mosaic.ini", "workers=1", "unsupported file extension", true},
		{"bad duration", "mosaic.toml", `tick = "often"`, "--tick=often", true},
		{"bad grace", "mosaic.yaml", "shutdown_grace: later", "--grace=later", true},
		{"malformed toml", "mosaic.toml", "workers = [", "config file", false},
		{"malformed yaml", "mosaic.yaml", "workers: [1", "config file", false},
		{"wrong type", "mosaic.yaml", "workers: many", "config file", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			err := LoadFile(path, Default())
			if err == nil {
				t.Fatal("expected error")
			}
			var ce *merr.ConfigError
			if tt.config && !errors.As(err, &ce) {
				t.Errorf("expected *ConfigError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"), Default())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
