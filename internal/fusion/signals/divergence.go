package signals

import (
	"fmt"

	"tactix/internal/feature"
	"tactix/internal/market"

	talib "github.com/markcheno/go-talib"
)

// Divergence compares price swing extremes against RSI extremes over a
// lookback window. Price making a higher high while RSI makes a lower high
// scores bearish; the mirror case scores bullish.
func Divergence(in feature.Input) (feature.Output, error) {
	period := intParam(in.Params, "rsi_period", 14)
	lookback := intParam(in.Params, "lookback", 30)
	if err := requireCandles(in.Candles, period+lookback+1, "divergence"); err != nil {
		return feature.Output{}, err
	}
	closes := market.Closes(in.Candles)
	rsi := talib.Rsi(closes, period)
	if len(rsi) < lookback {
		return feature.Output{}, fmt.Errorf("divergence: rsi series too short")
	}

	n := len(closes)
	half := lookback / 2
	recentFrom, recentTo := n-half, n-1
	priorFrom, priorTo := n-lookback, n-half-1

	score := 0.0
	reasons := []string{}
	bias := "neutral"

	recentHi := highestIdx(closes, recentFrom, recentTo)
	priorHi := highestIdx(closes, priorFrom, priorTo)
	if closes[recentHi] > closes[priorHi] && rsi[recentHi] < rsi[priorHi] {
		score = -1
		bias = "bearish"
		reasons = append(reasons, fmt.Sprintf("bearish divergence: price %.4f>%.4f rsi %.1f<%.1f",
			closes[recentHi], closes[priorHi], rsi[recentHi], rsi[priorHi]))
	}

	recentLo := lowestIdx(closes, recentFrom, recentTo)
	priorLo := lowestIdx(closes, priorFrom, priorTo)
	if closes[recentLo] < closes[priorLo] && rsi[recentLo] > rsi[priorLo] {
		score = 1
		bias = "bullish"
		reasons = append(reasons, fmt.Sprintf("bullish divergence: price %.4f<%.4f rsi %.1f>%.1f",
			closes[recentLo], closes[priorLo], rsi[recentLo], rsi[priorLo]))
	}

	return feature.Output{
		Value:   feature.Numeric(score),
		Bias:    bias,
		Reasons: reasons,
	}, nil
}
