package gate

// #region config

// Config holds the reputation-to-cap mapping parameters.
type Config struct {
	WindowSize int     `yaml:"window_size"` // outcomes considered per evaluation
	CapFloor   float64 `yaml:"cap_floor"`   // reputation alone never caps below this
}

// DefaultConfig returns the conservative defaults: a 20-outcome window and a
// 0.5 safety floor, so cap = 0.5 + 0.5 * reputation.
func DefaultConfig() Config {
	return Config{
		WindowSize: 20,
		CapFloor:   0.5,
	}
}

// #endregion config

// #region result

// Result is the ephemeral output of one gate evaluation. Not persisted.
type Result struct {
	WindowN       int     // outcomes considered
	Reputation    float64 // mean outcome score, meaningless when WindowN == 0
	CapMultiplier float64
	Applied       bool // false means the envelope was left untouched
}

// #endregion result
