package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"autogov/internal/envelope"
	"autogov/internal/gate"
	"autogov/internal/scheduler"
	"autogov/internal/task"
	"autogov/internal/telemetry"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay trace file.
type Fixture struct {
	Description string          `json:"description"`
	Config      FixtureConfig   `json:"config"`
	Events      []FixtureEvent  `json:"events"`
	Expected    FixtureExpected `json:"expected"`
}

// FixtureEvent mirrors Event with JSON tags. Unused fields are omitted per
// event type.
type FixtureEvent struct {
	AtMs        int64   `json:"at_ms"`
	Type        string  `json:"type"`
	Trust       float64 `json:"trust,omitempty"`
	Consistency float64 `json:"consistency,omitempty"`
	Class       string  `json:"class,omitempty"`
	Risk        string  `json:"risk,omitempty"`
}

// FixtureConfig carries the tunables a trace was recorded under.
type FixtureConfig struct {
	Envelope FixtureEnvelopeConfig `json:"envelope"`
	Gate     FixtureGateConfig     `json:"gate"`
	HighRisk float64               `json:"high_risk_floor"`
}

// FixtureEnvelopeConfig mirrors envelope.Config with JSON tags.
type FixtureEnvelopeConfig struct {
	ExpandTrust        float64 `json:"expand_trust"`
	ExpandConsistency  float64 `json:"expand_consistency"`
	TightenTrust       float64 `json:"tighten_trust"`
	TightenConsistency float64 `json:"tighten_consistency"`
	HysteresisWindowMs int64   `json:"hysteresis_window_ms"`
	ScoreAlpha         float64 `json:"score_alpha"`
}

// FixtureGateConfig mirrors gate.Config with JSON tags.
type FixtureGateConfig struct {
	WindowSize int     `json:"window_size"`
	CapFloor   float64 `json:"cap_floor"`
}

// FixtureExpected captures the expected end state of the trace.
type FixtureExpected struct {
	FinalState  string `json:"final_state"`
	Transitions int    `json:"transitions"`
	Admitted    int    `json:"admitted"`
	Rejected    int    `json:"rejected"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON trace file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToEvents converts fixture events to domain events.
func (f *Fixture) ToEvents() []Event {
	events := make([]Event, 0, len(f.Events))
	for _, fe := range f.Events {
		events = append(events, Event{
			AtMs:        fe.AtMs,
			Type:        EventType(fe.Type),
			Trust:       fe.Trust,
			Consistency: fe.Consistency,
			Class:       telemetry.OutcomeClass(fe.Class),
			Risk:        task.ParseRiskLevel(fe.Risk),
		})
	}
	return events
}

// ToReplayConfig converts the fixture config to a domain ReplayConfig.
// Zero-valued sections fall back to defaults so short fixtures stay short.
func (f *Fixture) ToReplayConfig() ReplayConfig {
	cfg := DefaultReplayConfig()

	e := f.Config.Envelope
	if e != (FixtureEnvelopeConfig{}) {
		cfg.Envelope = envelope.Config{
			ExpandTrust:        e.ExpandTrust,
			ExpandConsistency:  e.ExpandConsistency,
			TightenTrust:       e.TightenTrust,
			TightenConsistency: e.TightenConsistency,
			HysteresisWindowMs: e.HysteresisWindowMs,
			ScoreAlpha:         e.ScoreAlpha,
		}
	}
	g := f.Config.Gate
	if g != (FixtureGateConfig{}) {
		cfg.Gate = gate.Config{
			WindowSize: g.WindowSize,
			CapFloor:   g.CapFloor,
		}
	}
	if f.Config.HighRisk > 0 {
		sc := scheduler.DefaultConfig()
		sc.HighRiskFloor = f.Config.HighRisk
		cfg.Scheduler = sc
	}
	return cfg
}

// #endregion fixture-loader
