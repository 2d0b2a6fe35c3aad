package fusion

// Bias classifies the directional lean of a signal or the fused index.
type Bias string

const (
	BiasBullish Bias = "bullish"
	BiasNeutral Bias = "neutral"
	BiasBearish Bias = "bearish"
)

// ParseBias maps loose strings onto a Bias, defaulting to neutral.
func ParseBias(raw string) Bias {
	switch Bias(raw) {
	case BiasBullish, BiasBearish:
		return Bias(raw)
	default:
		return BiasNeutral
	}
}

// SubSignal is one normalized contribution to the Tactical Index.
// Produced fresh each cycle; it carries no cross-cycle identity.
type SubSignal struct {
	Name         string   `json:"name"`
	Raw          float64  `json:"raw"`
	Normalized   float64  `json:"normalized"`
	Weight       float64  `json:"weight"`
	Contribution float64  `json:"contribution"`
	Bias         Bias     `json:"bias"`
	Degraded     bool     `json:"degraded"`
	Reasons      []string `json:"reasons,omitempty"`
}

// TacticalIndex is the bounded fused composite.
type TacticalIndex struct {
	Value      float64         `json:"value"`
	Bias       Bias            `json:"bias"`
	Signals    []SubSignal     `json:"signals"`
	Degraded   int             `json:"degraded"`
	Confluence ConfluenceScore `json:"confluence"`
}

// SignalSpec configures one sub-signal slot in the fusion table.
type SignalSpec struct {
	Name   string         `mapstructure:"name"`
	Weight float64        `mapstructure:"weight"`
	Norm   string         `mapstructure:"norm"`   // minmax | signed | zscore
	Window int            `mapstructure:"window"` // rolling window for minmax/zscore
	Params map[string]any `mapstructure:"params"`
}

// Config is the per-timeframe fusion table. Weights need not sum to 1;
// the engine renormalizes before combining.
type Config struct {
	Signals          []SignalSpec     `mapstructure:"signals"`
	BullishThreshold float64          `mapstructure:"bullish_threshold"` // value >= threshold (inclusive) => bullish
	BearishThreshold float64          `mapstructure:"bearish_threshold"` // value <= threshold (inclusive) => bearish
	Confluence       ConfluenceConfig `mapstructure:"confluence"`
}

// ConfluenceConfig bounds the agreement counter.
type ConfluenceConfig struct {
	LookbackBars int `mapstructure:"lookback_bars"`
	Threshold    int `mapstructure:"threshold"`
	Cap          int `mapstructure:"cap"`
}

func (c ConfluenceConfig) withDefaults() ConfluenceConfig {
	if c.LookbackBars <= 0 {
		c.LookbackBars = 5
	}
	if c.Threshold <= 0 {
		c.Threshold = 3
	}
	if c.Cap <= 0 {
		c.Cap = 5
	}
	return c
}
