package telemetry

import "time"

// #region outcome-class

// OutcomeClass is the post-hoc judgment of a self-revision's effect.
type OutcomeClass string

const (
	OutcomeBeneficial OutcomeClass = "beneficial"
	OutcomeNeutral    OutcomeClass = "neutral"
	OutcomeHarmful    OutcomeClass = "harmful"
)

// #endregion outcome-class

// #region samples

// MetricSample is one metacognition reading: trust and error rate at a tick.
type MetricSample struct {
	RunID     string
	TsMs      int64
	Trust     float64
	ErrorRate float64
}

// MotivationSample is one motivation-state reading.
type MotivationSample struct {
	RunID     string
	TsMs      int64
	Drive     string
	Intensity float64
}

// RewardEvent is a single reward emission.
type RewardEvent struct {
	RunID     string
	TsMs      int64
	Magnitude float64
}

// #endregion samples

// #region revision

// SelfRevision is a bounded, system-proposed parameter change record.
// Immutable after insertion; the evaluator attaches exactly one outcome.
type SelfRevision struct {
	ID            string
	RunID         string
	AppliedAtMs   int64
	DeltaJSON     string // structured descriptor of the parameter change
	Driver        string // subsystem that proposed the revision
	PreMagnitude  float64
	PostMagnitude float64
}

// RevisionOutcome is the one-per-revision evaluation result.
type RevisionOutcome struct {
	RevisionID     string
	EvaluatedAtMs  int64
	Class          OutcomeClass
	PreTrust       float64
	PostTrust      float64
	PreError       float64
	PostError      float64
	PreRewardRate  float64
	PostRewardRate float64
	TrustDelta     float64
	ErrorDelta     float64
}

// #endregion revision

// #region envelope-log

// EnvelopeTransition is one audit row for an envelope state or cap change.
type EnvelopeTransition struct {
	RunID string
	From  string
	To    string
	Score float64
	Cap   float64
	TsMs  int64
}

// #endregion envelope-log

// #region time

// ToMs converts a time to the store's Unix-millisecond representation.
func ToMs(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMs converts a stored Unix-millisecond timestamp back to a time.
func FromMs(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// #endregion time
