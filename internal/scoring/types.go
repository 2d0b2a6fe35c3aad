package scoring

import (
	"tactix/internal/fusion"
	"tactix/internal/ladder"
)

// Decision is the fixed action label. The mapping from inputs to Decision
// is total: every valid input resolves to exactly one label.
type Decision string

const (
	DecisionBuy   Decision = "BUY"
	DecisionAdd   Decision = "ADD"
	DecisionHold  Decision = "HOLD"
	DecisionExit  Decision = "EXIT"
	DecisionAvoid Decision = "AVOID"
)

// Urgency grades how quickly a row deserves attention.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// EntryRange brackets the suggested entry zone.
type EntryRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// ActionableRow is the per-symbol per-cycle output consumed by
// presentation and alerting collaborators. The core never persists it.
type ActionableRow struct {
	Symbol       string      `json:"symbol"`
	CurrentPrice float64     `json:"current_price"`
	Score        float64     `json:"score"` // [0,10]
	Decision     Decision    `json:"decision"`
	Bias         fusion.Bias `json:"bias"`
	EntryRange   EntryRange  `json:"entry_range"`
	StopLoss     float64     `json:"stop_loss"`
	Targets      []float64   `json:"targets"`
	Reasons      []string    `json:"reasons"`
	Confidence   float64     `json:"confidence"`
	Urgency      Urgency     `json:"urgency"`
}

// PositionContext is the optional existing-position input from the
// position/book collaborator.
type PositionContext struct {
	Side      ladder.Side
	Quantity  float64
	AvgPrice  float64
	StopPrice float64
	// RiskVeto suppresses fresh entries (sector or account level risk
	// block); the reason is surfaced verbatim.
	RiskVeto       bool
	RiskVetoReason string
}

// LadderContext feeds the ladder's current stage/trailing state back into
// scoring. Nil when no state exists yet for the key.
type LadderContext struct {
	Stage        int
	TrailingStop float64
	// WRBConfirmed is set only when the latest completed bar qualified,
	// so WRB-driven urgency surfaces once per confirmation.
	WRBConfirmed bool
}

// Caps bound each score contribution independently.
type Caps struct {
	Trend       float64 `mapstructure:"trend"`
	Momentum    float64 `mapstructure:"momentum"`
	FusionBias  float64 `mapstructure:"fusion_bias"`
	Volume      float64 `mapstructure:"volume"`
	RiskPenalty float64 `mapstructure:"risk_penalty"`
	Position    float64 `mapstructure:"position"`
}

// Config carries the tuned scoring parameters; all injected.
type Config struct {
	Caps Caps `mapstructure:"caps"`
	// Decision cutoffs over the [0,10] score.
	BuyThreshold   float64 `mapstructure:"buy_threshold"`
	AddThreshold   float64 `mapstructure:"add_threshold"`
	ExitThreshold  float64 `mapstructure:"exit_threshold"`
	AvoidThreshold float64 `mapstructure:"avoid_threshold"`
	// RiskBandVolatility is the ATR percent-of-price level above which
	// the risk-band penalty applies.
	RiskBandVolatility float64 `mapstructure:"risk_band_volatility"`
	// ATR multiples for the derived entry range, stop and T1..T3.
	EntryBandATR       float64    `mapstructure:"entry_band_atr"`
	StopATR            float64    `mapstructure:"stop_atr"`
	TargetATRMultiples [3]float64 `mapstructure:"target_atr_multiples"`
}

func (c Config) withDefaults() Config {
	if c.Caps == (Caps{}) {
		c.Caps = Caps{Trend: 2.5, Momentum: 2.0, FusionBias: 2.5, Volume: 1.5, RiskPenalty: 1.5, Position: 1.0}
	}
	if c.BuyThreshold <= 0 {
		c.BuyThreshold = 7.0
	}
	if c.AddThreshold <= 0 {
		c.AddThreshold = 5.5
	}
	if c.ExitThreshold <= 0 {
		c.ExitThreshold = 3.0
	}
	if c.AvoidThreshold <= 0 {
		c.AvoidThreshold = 2.0
	}
	if c.RiskBandVolatility <= 0 {
		c.RiskBandVolatility = 5.0
	}
	if c.EntryBandATR <= 0 {
		c.EntryBandATR = 0.25
	}
	if c.StopATR <= 0 {
		c.StopATR = 1.5
	}
	if c.TargetATRMultiples == [3]float64{} {
		c.TargetATRMultiples = [3]float64{1.0, 2.0, 3.0}
	}
	return c
}
