package signals

import (
	"fmt"

	"tactix/internal/feature"
	"tactix/internal/market"

	talib "github.com/markcheno/go-talib"
)

// ReversalConfluence scores rejection bars that coincide with an RSI
// extreme: a long lower wick at an oversold reading scores +1, a long
// upper wick at an overbought reading scores -1.
func ReversalConfluence(in feature.Input) (feature.Output, error) {
	rsiPeriod := intParam(in.Params, "rsi_period", 14)
	oversold := floatParam(in.Params, "oversold", 30)
	overbought := floatParam(in.Params, "overbought", 70)
	wickRatio := floatParam(in.Params, "wick_ratio", 2.0)
	if err := requireCandles(in.Candles, rsiPeriod+2, "reversal_confluence"); err != nil {
		return feature.Output{}, err
	}
	rsi := talib.Rsi(market.Closes(in.Candles), rsiPeriod)
	bar := in.Candles[len(in.Candles)-1]

	body := bar.Body()
	if body <= 0 {
		body = bar.Range() * 0.1
	}
	lowerWick := minFloat(bar.Open, bar.Close) - bar.Low
	upperWick := bar.High - maxFloat(bar.Open, bar.Close)

	score := 0.0
	bias := "neutral"
	var reasons []string
	switch {
	case body > 0 && lowerWick >= body*wickRatio && last(rsi) <= oversold:
		score = 1
		bias = "bullish"
		reasons = append(reasons, fmt.Sprintf("lower-wick rejection at rsi=%.0f", last(rsi)))
	case body > 0 && upperWick >= body*wickRatio && last(rsi) >= overbought:
		score = -1
		bias = "bearish"
		reasons = append(reasons, fmt.Sprintf("upper-wick rejection at rsi=%.0f", last(rsi)))
	}
	return feature.Output{
		Value:   feature.Numeric(score),
		Bias:    bias,
		Reasons: reasons,
	}, nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
