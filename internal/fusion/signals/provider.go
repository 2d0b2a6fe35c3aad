package signals

import "tactix/internal/feature"

const source = "fusion/signals"

// Provider registers every built-in sub-signal computation. Registration
// is explicit: new signals are added here, not discovered by scanning.
func Provider(r *feature.Registry) {
	r.Register("trend_strength", source, TrendStrength)
	r.Register("volatility_index", source, VolatilityIndex)
	r.Register("liquidity_breadth", source, LiquidityBreadth)
	r.Register("momentum_vector", source, MomentumVector)
	r.Register("divergence", source, Divergence)
	r.Register("squeeze", source, Squeeze)
	r.Register("reversal_confluence", source, ReversalConfluence)
	r.Register("absorption", source, Absorption)
	r.Register("liquidity_trap", source, LiquidityTrap)

	// Plain indicator values consumed by scoring, ladder sizing and
	// alert rule references.
	r.Register("rsi", source, RSIValue)
	r.Register("atr", source, ATRValue)
}
