// Package evaluator classifies the effect of past self-revisions from
// before/after telemetry. It is evaluation-only: its single write is the
// one outcome row per revision, and it never touches the scheduler, the
// envelope, or any learning parameter.
package evaluator

import (
	"errors"
	"fmt"
	"log"
	"time"

	"autogov/internal/telemetry"
)

// #region config

// Config holds the evaluation window and classification threshold.
type Config struct {
	EvaluationWindowMs int64   `yaml:"evaluation_window_ms"` // wait this long after applied_at before judging
	Tau                float64 `yaml:"tau"`                   // noise floor for delta classification
	MaxPerPass         int     `yaml:"max_per_pass"`          // bound on revisions evaluated per pass
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		EvaluationWindowMs: 120000,
		Tau:                0.02,
		MaxPerPass:         16,
	}
}

// #endregion config

// #region result

// PassResult summarizes one evaluation pass.
type PassResult struct {
	Examined  int // pending revisions old enough to judge
	Evaluated int // outcomes written
	Skipped   int // telemetry unavailable, retried next pass
}

// #endregion result

// #region evaluator

// Evaluator runs periodic passes over unevaluated self-revisions.
type Evaluator struct {
	store *telemetry.Store
	cfg   Config
}

// New creates an evaluator over the given telemetry store.
func New(store *telemetry.Store, cfg Config) *Evaluator {
	return &Evaluator{store: store, cfg: cfg}
}

// RunPass evaluates every pending revision whose evaluation window has
// elapsed. Telemetry failures skip the revision for this pass; they are
// never fatal and never block scheduling.
func (ev *Evaluator) RunPass(runID string, now time.Time) (PassResult, error) {
	nowMs := telemetry.ToMs(now)
	cutoff := nowMs - ev.cfg.EvaluationWindowMs

	pending, err := ev.store.PendingRevisions(runID, cutoff)
	if err != nil {
		return PassResult{}, fmt.Errorf("pending revisions: %w", err)
	}

	var res PassResult
	for _, rev := range pending {
		if ev.cfg.MaxPerPass > 0 && res.Examined >= ev.cfg.MaxPerPass {
			break
		}
		res.Examined++

		outcome, err := ev.evaluateOne(rev, nowMs)
		if err != nil {
			log.Printf("[EVAL] revision %s skipped: %v", rev.ID, err)
			res.Skipped++
			continue
		}

		if err := ev.store.InsertOutcome(outcome); err != nil {
			if errors.Is(err, telemetry.ErrOutcomeExists) {
				// Another pass got here first; the contract held.
				continue
			}
			log.Printf("[EVAL] revision %s outcome write failed: %v", rev.ID, err)
			res.Skipped++
			continue
		}

		log.Printf("[EVAL] revision %s -> %s trust_delta=%.4f error_delta=%.4f",
			rev.ID, outcome.Class, outcome.TrustDelta, outcome.ErrorDelta)
		res.Evaluated++
	}
	return res, nil
}

// evaluateOne pulls symmetric pre/post windows around applied_at and builds
// the outcome row.
func (ev *Evaluator) evaluateOne(rev telemetry.SelfRevision, nowMs int64) (telemetry.RevisionOutcome, error) {
	w := ev.cfg.EvaluationWindowMs

	pre, err := ev.windowStats(rev.RunID, rev.AppliedAtMs-w, rev.AppliedAtMs)
	if err != nil {
		return telemetry.RevisionOutcome{}, fmt.Errorf("pre window: %w", err)
	}
	post, err := ev.windowStats(rev.RunID, rev.AppliedAtMs, rev.AppliedAtMs+w)
	if err != nil {
		return telemetry.RevisionOutcome{}, fmt.Errorf("post window: %w", err)
	}

	trustDelta := post.trust - pre.trust
	errorDelta := post.errRate - pre.errRate

	return telemetry.RevisionOutcome{
		RevisionID:     rev.ID,
		EvaluatedAtMs:  nowMs,
		Class:          Classify(trustDelta, errorDelta, ev.cfg.Tau),
		PreTrust:       pre.trust,
		PostTrust:      post.trust,
		PreError:       pre.errRate,
		PostError:      post.errRate,
		PreRewardRate:  pre.rewardRate,
		PostRewardRate: post.rewardRate,
		TrustDelta:     trustDelta,
		ErrorDelta:     errorDelta,
	}, nil
}

// #endregion evaluator

// #region classify

// Classify maps before/after deltas to an outcome class. tau is a small
// positive constant so noise-sized deltas land in Neutral.
func Classify(trustDelta, errorDelta, tau float64) telemetry.OutcomeClass {
	if trustDelta < -tau || errorDelta > tau {
		return telemetry.OutcomeHarmful
	}
	if trustDelta > tau && errorDelta < -tau {
		return telemetry.OutcomeBeneficial
	}
	return telemetry.OutcomeNeutral
}

// #endregion classify

// #region window-stats

type stats struct {
	trust      float64
	errRate    float64
	rewardRate float64 // summed magnitude per second over the window
}

// windowStats averages metrics over [fromMs, toMs). An empty metric window
// means the telemetry needed to judge is not there yet.
func (ev *Evaluator) windowStats(runID string, fromMs, toMs int64) (stats, error) {
	metrics, err := ev.store.MetricsInRange(runID, fromMs, toMs)
	if err != nil {
		return stats{}, err
	}
	if len(metrics) == 0 {
		return stats{}, fmt.Errorf("no metrics in [%d, %d): telemetry unavailable", fromMs, toMs)
	}

	var st stats
	for _, m := range metrics {
		st.trust += m.Trust
		st.errRate += m.ErrorRate
	}
	st.trust /= float64(len(metrics))
	st.errRate /= float64(len(metrics))

	rewards, err := ev.store.RewardsInRange(runID, fromMs, toMs)
	if err != nil {
		return stats{}, err
	}
	var total float64
	for _, r := range rewards {
		total += r.Magnitude
	}
	seconds := float64(toMs-fromMs) / 1000.0
	if seconds > 0 {
		st.rewardRate = total / seconds
	}
	return st, nil
}

// #endregion window-stats
