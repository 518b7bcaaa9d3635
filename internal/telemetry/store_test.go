package telemetry

import (
	"errors"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMetricsInRange(t *testing.T) {
	s := tempStore(t)

	for _, ts := range []int64{100, 200, 300, 400} {
		err := s.InsertMetric(MetricSample{RunID: "r1", TsMs: ts, Trust: 0.8, ErrorRate: 0.1})
		if err != nil {
			t.Fatalf("InsertMetric: %v", err)
		}
	}
	// Different run, same window; must not leak.
	if err := s.InsertMetric(MetricSample{RunID: "r2", TsMs: 200, Trust: 0.1, ErrorRate: 0.9}); err != nil {
		t.Fatalf("InsertMetric: %v", err)
	}

	got, err := s.MetricsInRange("r1", 200, 400)
	if err != nil {
		t.Fatalf("MetricsInRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 samples in [200, 400), got %d", len(got))
	}
	if got[0].TsMs != 200 || got[1].TsMs != 300 {
		t.Fatalf("expected ordered timestamps 200, 300, got %d, %d", got[0].TsMs, got[1].TsMs)
	}
}

func TestOutcomeUniquePerRevision(t *testing.T) {
	s := tempStore(t)

	rev := SelfRevision{ID: "rev-1", RunID: "r1", AppliedAtMs: 1000, DeltaJSON: "{}", Driver: "curiosity"}
	if err := s.InsertRevision(rev); err != nil {
		t.Fatalf("InsertRevision: %v", err)
	}

	o := RevisionOutcome{RevisionID: "rev-1", EvaluatedAtMs: 2000, Class: OutcomeNeutral}
	if err := s.InsertOutcome(o); err != nil {
		t.Fatalf("InsertOutcome: %v", err)
	}

	o.Class = OutcomeBeneficial
	err := s.InsertOutcome(o)
	if !errors.Is(err, ErrOutcomeExists) {
		t.Fatalf("expected ErrOutcomeExists on second insert, got %v", err)
	}

	// First verdict must stand.
	got, err := s.RecentOutcomes("r1", 10)
	if err != nil {
		t.Fatalf("RecentOutcomes: %v", err)
	}
	if len(got) != 1 || got[0].Class != OutcomeNeutral {
		t.Fatalf("expected one neutral outcome, got %+v", got)
	}
}

func TestPendingRevisions(t *testing.T) {
	s := tempStore(t)

	revs := []SelfRevision{
		{ID: "old", RunID: "r1", AppliedAtMs: 1000, DeltaJSON: "{}", Driver: "d"},
		{ID: "mid", RunID: "r1", AppliedAtMs: 2000, DeltaJSON: "{}", Driver: "d"},
		{ID: "new", RunID: "r1", AppliedAtMs: 9000, DeltaJSON: "{}", Driver: "d"},
	}
	for _, r := range revs {
		if err := s.InsertRevision(r); err != nil {
			t.Fatalf("InsertRevision: %v", err)
		}
	}
	if err := s.InsertOutcome(RevisionOutcome{RevisionID: "mid", EvaluatedAtMs: 5000, Class: OutcomeNeutral}); err != nil {
		t.Fatalf("InsertOutcome: %v", err)
	}

	pending, err := s.PendingRevisions("r1", 5000)
	if err != nil {
		t.Fatalf("PendingRevisions: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "old" {
		t.Fatalf("expected only 'old' pending, got %+v", pending)
	}
}

func TestRecentOutcomesOrderAndLimit(t *testing.T) {
	s := tempStore(t)

	for i, id := range []string{"a", "b", "c"} {
		rev := SelfRevision{ID: id, RunID: "r1", AppliedAtMs: int64(i * 1000), DeltaJSON: "{}", Driver: "d"}
		if err := s.InsertRevision(rev); err != nil {
			t.Fatalf("InsertRevision: %v", err)
		}
		o := RevisionOutcome{RevisionID: id, EvaluatedAtMs: int64((i + 1) * 1000), Class: OutcomeBeneficial}
		if err := s.InsertOutcome(o); err != nil {
			t.Fatalf("InsertOutcome: %v", err)
		}
	}

	got, err := s.RecentOutcomes("r1", 2)
	if err != nil {
		t.Fatalf("RecentOutcomes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(got))
	}
	if got[0].RevisionID != "c" || got[1].RevisionID != "b" {
		t.Fatalf("expected newest first (c, b), got (%s, %s)", got[0].RevisionID, got[1].RevisionID)
	}
}

func TestEnvelopeLog(t *testing.T) {
	s := tempStore(t)

	rows := []EnvelopeTransition{
		{RunID: "r1", From: "normal", To: "tighten", Score: 0.3, Cap: 1.0, TsMs: 100},
		{RunID: "r1", From: "tighten", To: "normal", Score: 0.6, Cap: 1.0, TsMs: 200},
	}
	for _, row := range rows {
		if err := s.LogEnvelopeTransition(row); err != nil {
			t.Fatalf("LogEnvelopeTransition: %v", err)
		}
	}

	got, err := s.EnvelopeTransitions("r1", 10)
	if err != nil {
		t.Fatalf("EnvelopeTransitions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].To != "normal" || got[1].To != "tighten" {
		t.Fatalf("expected newest first, got %+v", got)
	}
}

func TestRewardsInRange(t *testing.T) {
	s := tempStore(t)

	for _, ts := range []int64{50, 150, 250} {
		if err := s.InsertReward(RewardEvent{RunID: "r1", TsMs: ts, Magnitude: 1.0}); err != nil {
			t.Fatalf("InsertReward: %v", err)
		}
	}

	got, err := s.RewardsInRange("r1", 100, 300)
	if err != nil {
		t.Fatalf("RewardsInRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rewards, got %d", len(got))
	}
}
