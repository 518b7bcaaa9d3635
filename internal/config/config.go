// Package config loads the governor configuration from YAML, with a small
// set of environment overrides for deployment knobs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"autogov/internal/envelope"
	"autogov/internal/evaluator"
	"autogov/internal/gate"
	"autogov/internal/scheduler"
	"autogov/internal/signals"
)

// #region types

// ScheduleSpec is the YAML form of one recurring task. The body is attached
// in code; config only carries what and when.
type ScheduleSpec struct {
	Name     string            `yaml:"name"`
	Expr     string            `yaml:"expr"`
	Kind     string            `yaml:"kind"`
	Risk     string            `yaml:"risk"`
	Priority float64           `yaml:"priority"`
	Tag      string            `yaml:"tag"`
	Params   map[string]string `yaml:"params"`
}

// Config is the full governor configuration.
type Config struct {
	RunID  string `yaml:"run_id"`  // empty means generate a fresh one
	DBPath string `yaml:"db_path"` // telemetry store location

	TickIntervalMs     int64 `yaml:"tick_interval_ms"`     // scheduler tick cadence
	SignalIntervalMs   int64 `yaml:"signal_interval_ms"`   // signal sample / envelope tick cadence
	EvaluateIntervalMs int64 `yaml:"evaluate_interval_ms"` // evaluator + gate pass cadence
	CronIntervalMs     int64 `yaml:"cron_interval_ms"`     // recurring-task check cadence

	GateWindow int `yaml:"gate_window"` // outcomes per gate evaluation, 0 means gate default

	Scheduler scheduler.Config `yaml:"scheduler"`
	Envelope  envelope.Config  `yaml:"envelope"`
	Evaluator evaluator.Config `yaml:"evaluator"`
	Signals   signals.Config   `yaml:"signals"`
	Gate      gate.Config      `yaml:"gate"`

	Schedules []ScheduleSpec `yaml:"schedules"`
}

// #endregion types

// #region defaults

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DBPath:             "autogov.db",
		TickIntervalMs:     100,
		SignalIntervalMs:   1000,
		EvaluateIntervalMs: 5000,
		CronIntervalMs:     60000,
		Scheduler:          scheduler.DefaultConfig(),
		Envelope:           envelope.DefaultConfig(),
		Evaluator:          evaluator.DefaultConfig(),
		Signals:            signals.DefaultConfig(),
		Gate:               gate.DefaultConfig(),
	}
}

// #endregion defaults

// #region load

// Load reads a YAML config from path, layered over defaults. An empty path
// returns the defaults. AUTOGOV_DB and AUTOGOV_RUN_ID override the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("AUTOGOV_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("AUTOGOV_RUN_ID"); v != "" {
		cfg.RunID = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that would wedge the governor.
func (c Config) Validate() error {
	if c.TickIntervalMs <= 0 {
		return fmt.Errorf("tick_interval_ms must be positive, got %d", c.TickIntervalMs)
	}
	if c.SignalIntervalMs <= 0 {
		return fmt.Errorf("signal_interval_ms must be positive, got %d", c.SignalIntervalMs)
	}
	if c.EvaluateIntervalMs <= 0 {
		return fmt.Errorf("evaluate_interval_ms must be positive, got %d", c.EvaluateIntervalMs)
	}
	if c.Envelope.ScoreAlpha <= 0 || c.Envelope.ScoreAlpha > 1 {
		return fmt.Errorf("envelope score_alpha must be in (0, 1], got %g", c.Envelope.ScoreAlpha)
	}
	if c.Gate.CapFloor < 0 || c.Gate.CapFloor > 1 {
		return fmt.Errorf("gate cap_floor must be in [0, 1], got %g", c.Gate.CapFloor)
	}
	if c.Evaluator.Tau < 0 {
		return fmt.Errorf("evaluator tau must be non-negative, got %g", c.Evaluator.Tau)
	}
	return nil
}

// TickInterval returns the scheduler tick cadence as a duration.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// SignalInterval returns the signal sampling cadence as a duration.
func (c Config) SignalInterval() time.Duration {
	return time.Duration(c.SignalIntervalMs) * time.Millisecond
}

// EvaluateInterval returns the evaluator/gate cadence as a duration.
func (c Config) EvaluateInterval() time.Duration {
	return time.Duration(c.EvaluateIntervalMs) * time.Millisecond
}

// CronInterval returns the recurring-task check cadence as a duration.
func (c Config) CronInterval() time.Duration {
	return time.Duration(c.CronIntervalMs) * time.Millisecond
}

// #endregion load
