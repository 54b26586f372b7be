// ============================================================================
// Mimic Config - YAML configuration
// ============================================================================
//
// Package: internal/config
// File: config.go
// Purpose: Load, default and validate the process configuration
//
// File layout (every key optional, missing keys keep their default):
//
//   daemon: false
//   special_keys: false
//   force_must_finish: false
//   recording_file: save.txt
//   queues:  {interrupt: 10, scripted: 128, events: 4096}
//   timing:  {idle_timeout: 1s, scripted_poll: 1s, tick: 10ms, spin_threshold: 2ms}
//   hotkeys: {record: home, replay: up, save: down, exit: delete, idle: end}
//   metrics: {enabled: false, addr: ":9090"}
//   control: {enabled: false, addr: "127.0.0.1:50515"}
//   log:     {level: info, format: text}
//
// Unknown keys are rejected so a typo does not silently fall back to a
// default. Command-line flags are applied on top by the cli package; the
// result is not modified after the scheduler starts.
//
// ============================================================================

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/TeYo001/Mimic/internal/hotkey"
	"github.com/TeYo001/Mimic/internal/queue"
	"github.com/TeYo001/Mimic/internal/scheduler"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete process configuration
type Config struct {
	Daemon          bool   `yaml:"daemon"`
	SpecialKeys     bool   `yaml:"special_keys"`
	ForceMustFinish bool   `yaml:"force_must_finish"`
	RecordingFile   string `yaml:"recording_file"`

	Queues  QueueConfig   `yaml:"queues"`
	Timing  TimingConfig  `yaml:"timing"`
	Hotkeys HotkeyConfig  `yaml:"hotkeys"`
	Metrics ServeConfig   `yaml:"metrics"`
	Control ServeConfig   `yaml:"control"`
	Log     LoggingConfig `yaml:"log"`
}

// QueueConfig holds the queue capacities
type QueueConfig struct {
	Interrupt int `yaml:"interrupt"`
	Scripted  int `yaml:"scripted"`
	Events    int `yaml:"events"`
}

// TimingConfig holds the scheduler timings
type TimingConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	ScriptedPoll  time.Duration `yaml:"scripted_poll"`
	Tick          time.Duration `yaml:"tick"`
	SpinThreshold time.Duration `yaml:"spin_threshold"`
}

// HotkeyConfig names the key bound to each hotkey
type HotkeyConfig struct {
	Record string `yaml:"record"`
	Replay string `yaml:"replay"`
	Save   string `yaml:"save"`
	Exit   string `yaml:"exit"`
	Idle   string `yaml:"idle"`
}

// ServeConfig describes an optional network listener
type ServeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig selects the slog level and handler
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns the built-in configuration
func Default() Config {
	sc := scheduler.DefaultConfig()
	return Config{
		RecordingFile: sc.RecordingFile,
		Queues: QueueConfig{
			Interrupt: queue.DefaultInterruptCapacity,
			Scripted:  queue.DefaultScriptedCapacity,
			Events:    queue.DefaultEventCapacity,
		},
		Timing: TimingConfig{
			IdleTimeout:   sc.IdleTimeout,
			ScriptedPoll:  sc.ScriptedPoll,
			Tick:          sc.Tick,
			SpinThreshold: sc.SpinThreshold,
		},
		Hotkeys: HotkeyConfig{
			Record: "home",
			Replay: "up",
			Save:   "down",
			Exit:   "delete",
			Idle:   "end",
		},
		Metrics: ServeConfig{Addr: ":9090"},
		Control: ServeConfig{Addr: "127.0.0.1:50515"},
		Log:     LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults and validates the result.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return Config{}, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks capacities, durations, hotkey names and log settings
func (c Config) Validate() error {
	var problems []string

	if c.RecordingFile == "" {
		problems = append(problems, "recording_file is empty")
	}
	for name, n := range map[string]int{
		"queues.interrupt": c.Queues.Interrupt,
		"queues.scripted":  c.Queues.Scripted,
		"queues.events":    c.Queues.Events,
	} {
		if n <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be > 0, got %d", name, n))
		}
	}
	for name, d := range map[string]time.Duration{
		"timing.idle_timeout":   c.Timing.IdleTimeout,
		"timing.scripted_poll":  c.Timing.ScriptedPoll,
		"timing.tick":           c.Timing.Tick,
		"timing.spin_threshold": c.Timing.SpinThreshold,
	} {
		if d < 0 {
			problems = append(problems, fmt.Sprintf("%s must be >= 0, got %s", name, d))
		}
	}
	if _, err := c.Bindings(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := c.LogLevel(); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		problems = append(problems, "metrics.addr is empty")
	}
	if c.Control.Enabled && c.Control.Addr == "" {
		problems = append(problems, "control.addr is empty")
	}

	if len(problems) > 0 {
		// map iteration order is random
		slices.Sort(problems)
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Scheduler derives the scheduler configuration
func (c Config) Scheduler() scheduler.Config {
	return scheduler.Config{
		Daemon:          c.Daemon,
		ForceMustFinish: c.ForceMustFinish,
		RecordingFile:   c.RecordingFile,
		IdleTimeout:     c.Timing.IdleTimeout,
		ScriptedPoll:    c.Timing.ScriptedPoll,
		Tick:            c.Timing.Tick,
		SpinThreshold:   c.Timing.SpinThreshold,
	}
}

// Bindings resolves the hotkey names
func (c Config) Bindings() (hotkey.Bindings, error) {
	h := c.Hotkeys
	return hotkey.ParseBindings(h.Record, h.Replay, h.Save, h.Exit, h.Idle)
}

// LogLevel parses log.level
func (c Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// NewLogger builds the slog logger described by log, writing to w
func (c Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := c.LogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
