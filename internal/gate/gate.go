// Package gate derives a conservative autonomy cap from the reputation of
// past self-revisions. It reads outcome history, computes a windowed mean,
// and tightens or loosens the envelope's multiplicative ceiling. It never
// creates tasks, never alters goals, and never changes evaluator thresholds.
package gate

import (
	"fmt"
	"log"

	"autogov/internal/telemetry"
)

// #region interfaces

// OutcomeSource is the read-only slice of the telemetry store the gate needs.
type OutcomeSource interface {
	RecentOutcomes(runID string, n int) ([]telemetry.RevisionOutcome, error)
}

// CapApplier is the single write surface the gate is allowed to touch.
type CapApplier interface {
	ApplyAutonomyCap(m float64)
}

// #endregion interfaces

// #region gate

// Gate computes revision reputation and applies the resulting cap.
type Gate struct {
	source OutcomeSource
	env    CapApplier
	cfg    Config
}

// New creates a gate reading from source and writing caps to env.
func New(source OutcomeSource, env CapApplier, cfg Config) *Gate {
	return &Gate{source: source, env: env, cfg: cfg}
}

// Evaluate reads the most recent windowSize outcomes for the run and applies
// the reputation cap. An empty window is insufficient evidence: the result
// carries Applied=false and the envelope is left exactly as it was — the
// gate neither restricts nor expands without history.
func (g *Gate) Evaluate(runID string, windowSize int) (Result, error) {
	if windowSize <= 0 {
		windowSize = g.cfg.WindowSize
	}

	outcomes, err := g.source.RecentOutcomes(runID, windowSize)
	if err != nil {
		return Result{}, fmt.Errorf("read outcomes: %w", err)
	}

	if len(outcomes) == 0 {
		return Result{WindowN: 0, CapMultiplier: 1.0, Applied: false}, nil
	}

	var sum float64
	for _, o := range outcomes {
		sum += score(o.Class)
	}
	reputation := sum / float64(len(outcomes))
	cap := g.cfg.CapFloor + (1-g.cfg.CapFloor)*reputation

	g.env.ApplyAutonomyCap(cap)
	log.Printf("[GATE] n=%d reputation=%.3f cap=%.3f", len(outcomes), reputation, cap)

	return Result{
		WindowN:       len(outcomes),
		Reputation:    reputation,
		CapMultiplier: cap,
		Applied:       true,
	}, nil
}

// #endregion gate

// #region scoring

// score maps an outcome class to its reputation contribution.
func score(c telemetry.OutcomeClass) float64 {
	switch c {
	case telemetry.OutcomeBeneficial:
		return 1.0
	case telemetry.OutcomeNeutral:
		return 0.5
	default:
		// Harmful, and anything unrecognized counts as harmful.
		return 0.0
	}
}

// #endregion scoring
