package replay

import (
	"testing"

	"autogov/internal/envelope"
	"autogov/internal/task"
	"autogov/internal/telemetry"
)

// testReplayConfig shrinks the hysteresis window so traces stay short and
// disables score smoothing so signals pass through.
func testReplayConfig() ReplayConfig {
	cfg := DefaultReplayConfig()
	cfg.Envelope.HysteresisWindowMs = 1000
	cfg.Envelope.ScoreAlpha = 1.0
	return cfg
}

func signalAt(ms int64, trust, consistency float64) Event {
	return Event{AtMs: ms, Type: EventSignal, Trust: trust, Consistency: consistency}
}

func TestReplayDeterministic(t *testing.T) {
	events := []Event{
		signalAt(0, 0.9, 0.9),
		signalAt(500, 0.3, 0.9),
		signalAt(600, 0.9, 0.9),
		{AtMs: 700, Type: EventSubmit, Risk: task.RiskMedium},
		signalAt(2000, 0.9, 0.9),
		{AtMs: 2100, Type: EventOutcome, Class: telemetry.OutcomeBeneficial},
	}

	r1, s1 := Replay(events, testReplayConfig())
	r2, s2 := Replay(events, testReplayConfig())

	if s1 != s2 {
		t.Fatalf("summaries diverged: %+v vs %+v", s1, s2)
	}
	for i := range r1 {
		if r1[i] != r2[i] {
			t.Fatalf("result %d diverged: %+v vs %+v", i, r1[i], r2[i])
		}
	}
}

func TestReplayTightenAndRecovery(t *testing.T) {
	events := []Event{
		signalAt(0, 0.9, 0.9),
		signalAt(100, 0.2, 0.9), // tighten immediately
		{AtMs: 200, Type: EventSubmit, Risk: task.RiskMedium}, // rejected in tighten
		signalAt(300, 0.6, 0.6),
		signalAt(1400, 0.6, 0.6), // calm for a full window: back to normal
		{AtMs: 1500, Type: EventSubmit, Risk: task.RiskMedium}, // admitted again
	}

	results, sum := Replay(events, testReplayConfig())

	if results[1].State != envelope.StateTighten {
		t.Fatalf("expected tighten after bad sample, got %s", results[1].State)
	}
	if results[2].Admitted {
		t.Fatal("medium submit should be rejected in tighten")
	}
	if results[4].State != envelope.StateNormal {
		t.Fatalf("expected recovery to normal, got %s", results[4].State)
	}
	if !results[5].Admitted {
		t.Fatal("medium submit should be admitted after recovery")
	}
	if sum.Admitted != 1 || sum.Rejected != 1 {
		t.Fatalf("expected 1 admitted / 1 rejected, got %+v", sum)
	}
}

func TestReplayFreezeVeto(t *testing.T) {
	events := []Event{
		signalAt(0, 0.9, 0.9),
		{AtMs: 100, Type: EventFreeze},
		signalAt(200, 1.0, 1.0), // perfect signals must not move a frozen envelope
		{AtMs: 300, Type: EventSubmit, Risk: task.RiskLow},
		{AtMs: 400, Type: EventSubmit, Risk: task.RiskMedium},
		{AtMs: 500, Type: EventUnfreeze},
	}

	results, _ := Replay(events, testReplayConfig())

	if results[2].State != envelope.StateFreeze {
		t.Fatalf("frozen envelope moved to %s", results[2].State)
	}
	if !results[3].Admitted {
		t.Fatal("low risk should be admitted under freeze")
	}
	if results[4].Admitted {
		t.Fatal("medium risk must be rejected under freeze")
	}
	if results[5].State != envelope.StateTighten {
		t.Fatalf("unfreeze should exit into tighten, got %s", results[5].State)
	}
}

func TestReplayGateCapsEffective(t *testing.T) {
	events := []Event{
		signalAt(0, 0.9, 0.9),
		{AtMs: 100, Type: EventOutcome, Class: telemetry.OutcomeHarmful},
		{AtMs: 200, Type: EventOutcome, Class: telemetry.OutcomeHarmful},
	}

	results, _ := Replay(events, testReplayConfig())

	last := results[len(results)-1]
	if !last.GateApplied {
		t.Fatal("expected gate applied with outcomes present")
	}
	// All-harmful history: cap at the 0.5 floor.
	if last.Cap != 0.5 {
		t.Fatalf("expected cap 0.5, got %f", last.Cap)
	}
	if last.Effective != last.Score*0.5 {
		t.Fatalf("effective should be score*cap, got %f", last.Effective)
	}
}

func TestOutcomeWindowNewestFirst(t *testing.T) {
	w := &outcomeWindow{}
	for _, c := range []telemetry.OutcomeClass{
		telemetry.OutcomeHarmful, telemetry.OutcomeNeutral, telemetry.OutcomeBeneficial,
	} {
		w.outcomes = append(w.outcomes, telemetry.RevisionOutcome{Class: c})
	}

	got, err := w.RecentOutcomes("replay", 2)
	if err != nil {
		t.Fatalf("RecentOutcomes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2, got %d", len(got))
	}
	if got[0].Class != telemetry.OutcomeBeneficial || got[1].Class != telemetry.OutcomeNeutral {
		t.Fatalf("expected newest first, got %+v", got)
	}
}
