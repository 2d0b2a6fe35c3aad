package signals

import (
	"fmt"

	"tactix/internal/feature"
	"tactix/internal/market"

	talib "github.com/markcheno/go-talib"
)

// MomentumVector combines the MACD histogram with a rate-of-change check;
// the histogram series carries the magnitude, ROC decides the bias.
func MomentumVector(in feature.Input) (feature.Output, error) {
	fast := intParam(in.Params, "fast", 12)
	slow := intParam(in.Params, "slow", 26)
	signal := intParam(in.Params, "signal", 9)
	rocPeriod := intParam(in.Params, "roc_period", 10)
	if err := requireCandles(in.Candles, slow+signal+1, "momentum_vector"); err != nil {
		return feature.Output{}, err
	}
	closes := market.Closes(in.Candles)
	_, _, hist := talib.Macd(closes, fast, slow, signal)
	if len(hist) == 0 {
		return feature.Output{}, fmt.Errorf("momentum_vector: macd output empty")
	}
	roc := talib.Roc(closes, rocPeriod)

	val := last(hist)
	bias := "neutral"
	reasons := []string{fmt.Sprintf("macd_hist=%.4f", val)}
	switch {
	case val > 0 && last(roc) > 0:
		bias = "bullish"
		reasons = append(reasons, fmt.Sprintf("roc(%d)=%.2f%% up", rocPeriod, last(roc)))
	case val < 0 && last(roc) < 0:
		bias = "bearish"
		reasons = append(reasons, fmt.Sprintf("roc(%d)=%.2f%% down", rocPeriod, last(roc)))
	}
	return feature.Output{
		Value:   feature.Numeric(val),
		Series:  hist,
		Bias:    bias,
		Reasons: reasons,
	}, nil
}

// RSIValue exposes plain RSI for scoring and alert references.
func RSIValue(in feature.Input) (feature.Output, error) {
	period := intParam(in.Params, "period", 14)
	if err := requireCandles(in.Candles, period+1, "rsi"); err != nil {
		return feature.Output{}, err
	}
	series := talib.Rsi(market.Closes(in.Candles), period)
	if len(series) == 0 {
		return feature.Output{}, fmt.Errorf("rsi: talib output empty")
	}
	val := last(series)
	bias := "neutral"
	if val >= 70 {
		bias = "bearish"
	} else if val <= 30 {
		bias = "bullish"
	}
	return feature.Output{
		Value:  feature.Numeric(val),
		Series: series,
		Bias:   bias,
	}, nil
}
