package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	merr "mosaic/internal/errors"
)

// fileConfig mirrors Config for TOML and YAML files.  Nil fields leave
// the current value untouched; durations are strings such as "150ms".
type fileConfig struct {
	Tick            *string `toml:"tick" yaml:"tick"`
	Workers         *int    `toml:"workers" yaml:"workers"`
	Queue           *int    `toml:"queue" yaml:"queue"`
	Mailbox         *int    `toml:"mailbox" yaml:"mailbox"`
	Steps           *int    `toml:"steps" yaml:"steps"`
	StepDelayMin    *string `toml:"step_delay_min" yaml:"step_delay_min"`
	StepDelayMax    *string `toml:"step_delay_max" yaml:"step_delay_max"`
	CancelOnDiscard *bool   `toml:"cancel_on_discard" yaml:"cancel_on_discard"`
	ShutdownGrace   *string `toml:"shutdown_grace" yaml:"shutdown_grace"`
	Format          *string `toml:"format" yaml:"format"`
	MetricsAddr     *string `toml:"metrics_addr" yaml:"metrics_addr"`
	Run             *string `toml:"run" yaml:"run"`
	Verbose         *int    `toml:"verbose" yaml:"verbose"`
}

// LoadFile overlays the settings in path onto cfg.  The format follows
// the extension: .toml, .yaml or .yml.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		return &merr.ConfigError{Field: "config", Value: path,
			Message: fmt.Sprintf("unsupported file extension %q", ext),
			Hint:    "use a .toml, .yaml or .yml file"}
	}
	if err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	if err := fc.merge(cfg); err != nil {
		return err
	}
	cfg.ConfigFile = path
	return nil
}

func (fc *fileConfig) merge(dst *Config) error {
	durations := []struct {
		field string
		src   *string
		dst   *time.Duration
	}{
		{"tick", fc.Tick, &dst.TickInterval},
		{"step-delay-min", fc.StepDelayMin, &dst.StepDelayMin},
		{"step-delay-max", fc.StepDelayMax, &dst.StepDelayMax},
		{"grace", fc.ShutdownGrace, &dst.ShutdownGrace},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return &merr.ConfigError{Field: d.field, Value: *d.src,
				Message: "invalid duration in config file", Hint: `e.g. "150ms" or "2s"`}
		}
		*d.dst = v
	}

	if fc.Workers != nil {
		dst.Workers = *fc.Workers
	}
	if fc.Queue != nil {
		dst.QueueSize = *fc.Queue
	}
	if fc.Mailbox != nil {
		dst.MailboxSize = *fc.Mailbox
	}
	if fc.Steps != nil {
		dst.Steps = *fc.Steps
	}
	if fc.CancelOnDiscard != nil {
		dst.CancelOnDiscard = *fc.CancelOnDiscard
	}
	if fc.Format != nil {
		dst.Format = strings.ToLower(*fc.Format)
	}
	if fc.MetricsAddr != nil {
		dst.MetricsAddr = *fc.MetricsAddr
	}
	if fc.Run != nil {
		dst.Script = *fc.Run
	}
	if fc.Verbose != nil {
		dst.Verbose = *fc.Verbose
	}
	return nil
}
