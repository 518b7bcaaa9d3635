package envelope

import "time"

// #region state

// State is the behavioral mode of the autonomy envelope.
type State string

const (
	StateTighten State = "tighten"
	StateNormal  State = "normal"
	StateExpand  State = "expand"
	StateFreeze  State = "freeze"
)

// #endregion state

// #region config

// Config holds thresholds for envelope transitions.
type Config struct {
	ExpandTrust        float64 `yaml:"expand_trust"`        // trust must exceed this to qualify for Expand
	ExpandConsistency  float64 `yaml:"expand_consistency"`  // consistency must exceed this to qualify for Expand
	TightenTrust       float64 `yaml:"tighten_trust"`       // trust below this forces Tighten immediately
	TightenConsistency float64 `yaml:"tighten_consistency"` // consistency below this forces Tighten immediately
	HysteresisWindowMs int64   `yaml:"hysteresis_window_ms"`
	ScoreAlpha         float64 `yaml:"score_alpha"` // EWMA weight for the autonomy score
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		ExpandTrust:        0.75,
		ExpandConsistency:  0.75,
		TightenTrust:       0.4,
		TightenConsistency: 0.4,
		HysteresisWindowMs: 60000,
		ScoreAlpha:         0.3,
	}
}

// #endregion config

// #region snapshot

// Snapshot is a race-free read of the envelope for admission decisions.
type Snapshot struct {
	State     State
	Score     float64
	Cap       float64
	Effective float64 // Score * Cap, recomputed, never stored as ground truth
}

// #endregion snapshot

// #region transition

// Transition records one state or cap change for the audit log.
type Transition struct {
	From  State
	To    State
	Score float64
	Cap   float64
	At    time.Time
}

// #endregion transition
