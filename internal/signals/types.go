package signals

// #region config

// Config tunes how task outcomes are folded into trust and consistency.
type Config struct {
	WindowMs    int64   `yaml:"window_ms"`    // observations older than this are discarded
	SpreadScale float64 `yaml:"spread_scale"` // outcome-variance penalty on consistency
	MinSamples  int     `yaml:"min_samples"`  // below this the producer stays neutral
}

// DefaultConfig returns sensible defaults. SpreadScale 4 maps the maximum
// Bernoulli variance (0.25, a 50/50 outcome split) to zero consistency.
func DefaultConfig() Config {
	return Config{
		WindowMs:    60000,
		SpreadScale: 4.0,
		MinSamples:  3,
	}
}

// #endregion config

// #region sample

// Sample is one trust/consistency reading, both in [0, 1].
type Sample struct {
	Trust       float64
	Consistency float64
}

// Neutral is the sample produced when there is not enough evidence to judge.
// It sits between the tighten and expand thresholds so it moves nothing.
var Neutral = Sample{Trust: 0.5, Consistency: 0.5}

// #endregion sample
