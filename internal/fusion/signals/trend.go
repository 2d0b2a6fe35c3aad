package signals

import (
	"fmt"

	"tactix/internal/feature"
	"tactix/internal/market"

	talib "github.com/markcheno/go-talib"
)

// TrendStrength measures regime/trend strength via ADX, with EMA alignment
// deciding the directional bias.
func TrendStrength(in feature.Input) (feature.Output, error) {
	period := intParam(in.Params, "period", 14)
	fast := intParam(in.Params, "fast_ema", 20)
	slow := intParam(in.Params, "slow_ema", 50)
	need := slow + period + 1
	if err := requireCandles(in.Candles, need, "trend_strength"); err != nil {
		return feature.Output{}, err
	}
	highs := market.Highs(in.Candles)
	lows := market.Lows(in.Candles)
	closes := market.Closes(in.Candles)

	adx := talib.Adx(highs, lows, closes, period)
	if len(adx) == 0 {
		return feature.Output{}, fmt.Errorf("trend_strength: adx output empty")
	}
	fastEMA := talib.Ema(closes, fast)
	slowEMA := talib.Ema(closes, slow)

	val := last(adx)
	price := last(closes)
	bias := "neutral"
	reasons := []string{fmt.Sprintf("adx(%d)=%.1f", period, val)}
	switch {
	case last(fastEMA) > last(slowEMA) && price > last(fastEMA):
		bias = "bullish"
		reasons = append(reasons, fmt.Sprintf("price above ema%d>ema%d", fast, slow))
	case last(fastEMA) < last(slowEMA) && price < last(fastEMA):
		bias = "bearish"
		reasons = append(reasons, fmt.Sprintf("price below ema%d<ema%d", fast, slow))
	}
	return feature.Output{
		Value:   feature.Numeric(val),
		Series:  adx,
		Bias:    bias,
		Reasons: reasons,
	}, nil
}
