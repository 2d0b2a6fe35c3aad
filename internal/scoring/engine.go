package scoring

import (
	"fmt"

	"tactix/internal/feature"
	"tactix/internal/fusion"
	"tactix/internal/ladder"
)

// Input bundles everything one scoring call consumes. The engine is a
// pure function of this struct: identical input yields identical output.
type Input struct {
	Symbol   string
	Price    float64
	Bundle   *feature.Bundle
	Index    fusion.TacticalIndex
	Ladder   *LadderContext
	Position *PositionContext
}

// Engine maps a feature bundle plus fusion output to one bounded score
// and one decision label with ordered, tagged reasons.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Score computes the ActionableRow. No hidden state, no randomness, no
// clock reads: repeated calls with the same Input agree exactly.
func (e *Engine) Score(in Input) ActionableRow {
	row := ActionableRow{
		Symbol:       in.Symbol,
		CurrentPrice: in.Price,
		Bias:         in.Index.Bias,
	}

	score := 0.0
	var reasons []string
	add := func(tag string, v float64, detail string) {
		if v == 0 {
			return
		}
		score += v
		reasons = append(reasons, fmt.Sprintf("[%s] %+.2f %s", tag, v, detail))
	}

	contributions := []struct {
		tag string
		fn  func(Input) (float64, string)
	}{
		{"trend", e.trendContribution},
		{"momentum", e.momentumContribution},
		{"fusion", e.fusionContribution},
		{"volume", e.volumeContribution},
		{"risk", e.riskPenalty},
		{"position", e.positionAdjustment},
	}
	for _, c := range contributions {
		v, detail := c.fn(in)
		add(c.tag, v, detail)
	}

	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	row.Score = score

	decision, overrideReasons := e.decide(score, in)
	row.Decision = decision
	reasons = append(reasons, overrideReasons...)

	row.Confidence = e.confidence(in, &reasons)
	row.Urgency = e.urgency(score, in)

	atr, _ := in.Bundle.Float("atr")
	entry, stop, targets := deriveLevels(e.cfg, in.Price, atr)
	if in.Ladder != nil && in.Ladder.TrailingStop > 0 && in.Ladder.TrailingStop > stop {
		stop = in.Ladder.TrailingStop
	}
	row.EntryRange = entry
	row.StopLoss = stop
	row.Targets = targets
	row.Reasons = reasons
	return row
}

// trendContribution scales the cap by ADX strength when the trend signal
// leans bullish; an opposing trend contributes nothing.
func (e *Engine) trendContribution(in Input) (float64, string) {
	sig, ok := findSignal(in.Index, "trend_strength")
	if !ok || sig.Degraded {
		return 0, ""
	}
	strength := sig.Raw / 50
	if strength > 1 {
		strength = 1
	}
	if strength < 0 {
		strength = 0
	}
	switch sig.Bias {
	case fusion.BiasBullish:
		return e.cfg.Caps.Trend * strength, fmt.Sprintf("trend aligned, adx=%.1f", sig.Raw)
	case fusion.BiasBearish:
		return 0, ""
	default:
		return e.cfg.Caps.Trend * strength * 0.3, fmt.Sprintf("trend forming, adx=%.1f", sig.Raw)
	}
}

// momentumContribution rewards a fresh MACD-histogram crossover more than
// already-running momentum. The previous bar's value arrives as the
// *_prev feature set by the cycle assembler.
func (e *Engine) momentumContribution(in Input) (float64, string) {
	cur, okCur := in.Bundle.Float("momentum_vector")
	prev, okPrev := in.Bundle.Float("momentum_vector_prev")
	if !okCur {
		return 0, ""
	}
	switch {
	case okPrev && prev <= 0 && cur > 0:
		return e.cfg.Caps.Momentum, "bullish momentum crossover"
	case cur > 0:
		return e.cfg.Caps.Momentum * 0.5, "momentum positive"
	default:
		return 0, ""
	}
}

func (e *Engine) fusionContribution(in Input) (float64, string) {
	switch in.Index.Bias {
	case fusion.BiasBullish:
		return e.cfg.Caps.FusionBias * in.Index.Value,
			fmt.Sprintf("tactical index %.2f bullish", in.Index.Value)
	case fusion.BiasNeutral:
		return e.cfg.Caps.FusionBias * in.Index.Value * 0.4,
			fmt.Sprintf("tactical index %.2f neutral", in.Index.Value)
	default:
		return 0, ""
	}
}

func (e *Engine) volumeContribution(in Input) (float64, string) {
	sig, ok := findSignal(in.Index, "liquidity_breadth")
	if !ok || sig.Degraded || sig.Bias == fusion.BiasBearish {
		return 0, ""
	}
	if sig.Normalized <= 0.6 {
		return 0, ""
	}
	return e.cfg.Caps.Volume * sig.Normalized, fmt.Sprintf("volume confirmation %.2fx", sig.Raw)
}

// riskPenalty subtracts when volatility sits above the configured band.
func (e *Engine) riskPenalty(in Input) (float64, string) {
	vol, ok := in.Bundle.Float("volatility_index")
	if !ok || vol <= e.cfg.RiskBandVolatility {
		return 0, ""
	}
	excess := vol/e.cfg.RiskBandVolatility - 1
	if excess > 1 {
		excess = 1
	}
	return -e.cfg.Caps.RiskPenalty * excess, fmt.Sprintf("volatility %.1f%% above risk band", vol)
}

func (e *Engine) positionAdjustment(in Input) (float64, string) {
	pos := in.Position
	if pos == nil || pos.Quantity == 0 {
		return 0, ""
	}
	if pos.AvgPrice <= 0 || in.Price <= 0 {
		return 0, ""
	}
	pnl := (in.Price - pos.AvgPrice) / pos.AvgPrice
	if pos.Side == ladder.SideShort {
		pnl = -pnl
	}
	switch {
	case pnl > 0:
		return e.cfg.Caps.Position * 0.5, fmt.Sprintf("position in profit %+.1f%%", pnl*100)
	case pnl < -0.02:
		return -e.cfg.Caps.Position, fmt.Sprintf("position underwater %+.1f%%", pnl*100)
	default:
		return 0, ""
	}
}

// decide applies the ordered override rules, then the score/bias table.
// The function is total: every input lands on exactly one label.
func (e *Engine) decide(score float64, in Input) (Decision, []string) {
	pos := in.Position

	// Override 1: stop-loss breach on an existing position wins over any
	// technical read.
	if pos != nil && pos.Quantity != 0 && pos.StopPrice > 0 {
		breached := in.Price <= pos.StopPrice
		if pos.Side == ladder.SideShort {
			breached = in.Price >= pos.StopPrice
		}
		if breached {
			return DecisionExit, []string{fmt.Sprintf("[override] stop-loss %.4f breached", pos.StopPrice)}
		}
	}

	// Override 2: an active risk veto suppresses fresh entries.
	if pos != nil && pos.RiskVeto && (pos.Quantity == 0) {
		reason := pos.RiskVetoReason
		if reason == "" {
			reason = "risk veto active"
		}
		return DecisionAvoid, []string{"[override] " + reason}
	}

	hasPosition := pos != nil && pos.Quantity != 0
	switch {
	case score >= e.cfg.BuyThreshold && in.Index.Bias == fusion.BiasBullish && !hasPosition:
		return DecisionBuy, nil
	case score >= e.cfg.AddThreshold && in.Index.Bias == fusion.BiasBullish && hasPosition:
		return DecisionAdd, nil
	case hasPosition && in.Index.Bias == fusion.BiasBearish && score <= e.cfg.ExitThreshold:
		return DecisionExit, []string{"[decision] bearish reversal against open position"}
	case !hasPosition && in.Index.Bias == fusion.BiasBearish && score <= e.cfg.AvoidThreshold:
		return DecisionAvoid, []string{"[decision] bearish conditions, stand aside"}
	default:
		return DecisionHold, nil
	}
}

// confidence starts high and loses a step per degraded sub-signal. A
// degraded bundle also appends an explicit reason so the row is never
// silently weakened.
func (e *Engine) confidence(in Input, reasons *[]string) float64 {
	conf := 0.9 - 0.1*float64(in.Index.Degraded)
	if conf < 0.3 {
		conf = 0.3
	}
	if in.Index.Degraded > 0 {
		*reasons = append(*reasons, fmt.Sprintf("[degraded] %d sub-signals unavailable, confidence lowered", in.Index.Degraded))
	}
	return conf
}

func (e *Engine) urgency(score float64, in Input) Urgency {
	if in.Index.Confluence.Triggered || (in.Ladder != nil && in.Ladder.WRBConfirmed) {
		return UrgencyHigh
	}
	if score >= e.cfg.AddThreshold || score <= e.cfg.AvoidThreshold {
		return UrgencyNormal
	}
	return UrgencyLow
}

func findSignal(idx fusion.TacticalIndex, name string) (fusion.SubSignal, bool) {
	for _, s := range idx.Signals {
		if s.Name == name {
			return s, true
		}
	}
	return fusion.SubSignal{}, false
}
