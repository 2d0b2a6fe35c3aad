package signals

import (
	"fmt"

	"tactix/internal/feature"
	"tactix/internal/market"

	talib "github.com/markcheno/go-talib"
)

// LiquidityBreadth relates current volume to its moving average, with MFI
// deciding whether the flow leans bullish or bearish.
func LiquidityBreadth(in feature.Input) (feature.Output, error) {
	period := intParam(in.Params, "period", 20)
	mfiPeriod := intParam(in.Params, "mfi_period", 14)
	if err := requireCandles(in.Candles, period+mfiPeriod, "liquidity_breadth"); err != nil {
		return feature.Output{}, err
	}
	volumes := market.Volumes(in.Candles)
	volMA := talib.Sma(volumes, period)
	if len(volMA) == 0 {
		return feature.Output{}, fmt.Errorf("liquidity_breadth: volume sma empty")
	}
	series := make([]float64, len(volumes))
	for i := range volumes {
		if volMA[i] > 0 {
			series[i] = volumes[i] / volMA[i]
		}
	}
	mfi := talib.Mfi(market.Highs(in.Candles), market.Lows(in.Candles), market.Closes(in.Candles), volumes, mfiPeriod)

	val := last(series)
	bias := "neutral"
	reasons := []string{fmt.Sprintf("volume %.2fx of sma(%d)", val, period)}
	if m := last(mfi); m >= 60 && val > 1 {
		bias = "bullish"
		reasons = append(reasons, fmt.Sprintf("mfi=%.0f inflow", m))
	} else if m := last(mfi); m <= 40 && val > 1 {
		bias = "bearish"
		reasons = append(reasons, fmt.Sprintf("mfi=%.0f outflow", m))
	}
	return feature.Output{
		Value:   feature.Numeric(val),
		Series:  series,
		Bias:    bias,
		Reasons: reasons,
	}, nil
}

// LiquidityTrap detects stop-run bars: a wick pierces the recent extreme
// and the bar closes back inside the prior range. Score is signed, +1 for
// a trapped sell-off (bullish), -1 for a trapped rally.
func LiquidityTrap(in feature.Input) (feature.Output, error) {
	lookback := intParam(in.Params, "lookback", 20)
	if err := requireCandles(in.Candles, lookback+2, "liquidity_trap"); err != nil {
		return feature.Output{}, err
	}
	n := len(in.Candles)
	bar := in.Candles[n-1]
	window := in.Candles[n-1-lookback : n-1]

	hi, lo := window[0].High, window[0].Low
	for _, c := range window {
		if c.High > hi {
			hi = c.High
		}
		if c.Low < lo {
			lo = c.Low
		}
	}

	score := 0.0
	bias := "neutral"
	var reasons []string
	switch {
	case bar.Low < lo && bar.Close > lo:
		score = 1
		bias = "bullish"
		reasons = append(reasons, fmt.Sprintf("swept low %.4f and closed back inside", lo))
	case bar.High > hi && bar.Close < hi:
		score = -1
		bias = "bearish"
		reasons = append(reasons, fmt.Sprintf("swept high %.4f and closed back inside", hi))
	}
	return feature.Output{
		Value:   feature.Numeric(score),
		Bias:    bias,
		Reasons: reasons,
	}, nil
}
