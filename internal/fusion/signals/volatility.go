package signals

import (
	"fmt"

	"tactix/internal/feature"
	"tactix/internal/market"

	talib "github.com/markcheno/go-talib"
)

// VolatilityIndex is ATR expressed as a percentage of the close, so the
// series is comparable across symbols of any price magnitude.
func VolatilityIndex(in feature.Input) (feature.Output, error) {
	period := intParam(in.Params, "period", 14)
	if err := requireCandles(in.Candles, period+1, "volatility_index"); err != nil {
		return feature.Output{}, err
	}
	highs := market.Highs(in.Candles)
	lows := market.Lows(in.Candles)
	closes := market.Closes(in.Candles)
	atr := talib.Atr(highs, lows, closes, period)
	if len(atr) == 0 {
		return feature.Output{}, fmt.Errorf("volatility_index: atr output empty")
	}
	series := make([]float64, len(atr))
	for i := range atr {
		if closes[i] > 0 {
			series[i] = atr[i] / closes[i] * 100
		}
	}
	val := last(series)
	return feature.Output{
		Value:   feature.Numeric(val),
		Series:  series,
		Bias:    "neutral",
		Reasons: []string{fmt.Sprintf("atr(%d)=%.2f%% of price", period, val)},
	}, nil
}

// ATRValue exposes the raw ATR for ladder extension and WRB detection.
func ATRValue(in feature.Input) (feature.Output, error) {
	period := intParam(in.Params, "period", 14)
	if err := requireCandles(in.Candles, period+1, "atr"); err != nil {
		return feature.Output{}, err
	}
	atr := talib.Atr(market.Highs(in.Candles), market.Lows(in.Candles), market.Closes(in.Candles), period)
	if len(atr) == 0 {
		return feature.Output{}, fmt.Errorf("atr: talib output empty")
	}
	return feature.Output{
		Value:  feature.Numeric(last(atr)),
		Series: atr,
		Bias:   "neutral",
	}, nil
}
