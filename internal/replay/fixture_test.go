package replay

import (
	"os"
	"path/filepath"
	"testing"

	"autogov/internal/task"
	"autogov/internal/telemetry"
)

const traceJSON = `{
  "description": "tighten then recover",
  "config": {
    "envelope": {
      "expand_trust": 0.75,
      "expand_consistency": 0.75,
      "tighten_trust": 0.4,
      "tighten_consistency": 0.4,
      "hysteresis_window_ms": 1000,
      "score_alpha": 1.0
    },
    "gate": {"window_size": 20, "cap_floor": 0.5}
  },
  "events": [
    {"at_ms": 0, "type": "signal", "trust": 0.9, "consistency": 0.9},
    {"at_ms": 100, "type": "signal", "trust": 0.2, "consistency": 0.9},
    {"at_ms": 200, "type": "submit", "risk": "medium"},
    {"at_ms": 300, "type": "outcome", "class": "beneficial"},
    {"at_ms": 400, "type": "freeze"},
    {"at_ms": 500, "type": "unfreeze"}
  ],
  "expected": {"final_state": "tighten"}
}`

func writeTrace(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.json")
	if err := os.WriteFile(path, []byte(traceJSON), 0o644); err != nil {
		t.Fatalf("write trace: %v", err)
	}
	return path
}

func TestLoadFixture(t *testing.T) {
	f, err := LoadFixture(writeTrace(t))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if f.Description != "tighten then recover" {
		t.Fatalf("description not parsed: %q", f.Description)
	}
	if len(f.Events) != 6 {
		t.Fatalf("expected 6 events, got %d", len(f.Events))
	}

	events := f.ToEvents()
	if events[0].Type != EventSignal || events[0].Trust != 0.9 {
		t.Fatalf("signal event not converted: %+v", events[0])
	}
	if events[2].Type != EventSubmit || events[2].Risk != task.RiskMedium {
		t.Fatalf("submit event not converted: %+v", events[2])
	}
	if events[3].Class != telemetry.OutcomeBeneficial {
		t.Fatalf("outcome class not converted: %+v", events[3])
	}

	cfg := f.ToReplayConfig()
	if cfg.Envelope.HysteresisWindowMs != 1000 || cfg.Envelope.ScoreAlpha != 1.0 {
		t.Fatalf("envelope config not converted: %+v", cfg.Envelope)
	}
	if cfg.Gate.WindowSize != 20 || cfg.Gate.CapFloor != 0.5 {
		t.Fatalf("gate config not converted: %+v", cfg.Gate)
	}
}

func TestFixtureEndToEnd(t *testing.T) {
	f, err := LoadFixture(writeTrace(t))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	_, sum := Replay(f.ToEvents(), f.ToReplayConfig())
	if string(sum.FinalState) != f.Expected.FinalState {
		t.Fatalf("expected final state %s, got %s", f.Expected.FinalState, sum.FinalState)
	}
}

func TestEmptyFixtureConfigFallsBackToDefaults(t *testing.T) {
	f := &Fixture{}
	cfg := f.ToReplayConfig()
	def := DefaultReplayConfig()
	if cfg.Envelope != def.Envelope || cfg.Gate != def.Gate {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFixtureErrors(t *testing.T) {
	if _, err := LoadFixture(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(bad, []byte("{not json"), 0o644)
	if _, err := LoadFixture(bad); err == nil {
		t.Fatal("expected error for invalid json")
	}
}
