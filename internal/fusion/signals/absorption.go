package signals

import (
	"fmt"
	"math"

	"tactix/internal/feature"
	"tactix/internal/market"

	talib "github.com/markcheno/go-talib"
)

// Absorption flags bars where heavy volume produced little price travel:
// passive orders soaking up aggression. Signed by close position within
// the bar, +1 when absorbed near the low (bullish), -1 near the high.
func Absorption(in feature.Input) (feature.Output, error) {
	period := intParam(in.Params, "period", 20)
	volFactor := floatParam(in.Params, "volume_factor", 1.5)
	if err := requireCandles(in.Candles, period+1, "absorption"); err != nil {
		return feature.Output{}, err
	}
	volumes := market.Volumes(in.Candles)
	volMA := talib.Sma(volumes, period)

	n := len(in.Candles)
	bar := in.Candles[n-1]
	avgRange := 0.0
	for _, c := range in.Candles[n-period-1 : n-1] {
		avgRange += c.Range()
	}
	avgRange /= float64(period)

	score := 0.0
	bias := "neutral"
	var reasons []string
	heavyVolume := volMA[n-1] > 0 && bar.Volume >= volMA[n-1]*volFactor
	narrow := avgRange > 0 && bar.Range() <= avgRange*0.7
	if heavyVolume && narrow && bar.Range() > 0 {
		closePos := (bar.Close - bar.Low) / bar.Range()
		if closePos >= 0.6 {
			score = 1
			bias = "bullish"
			reasons = append(reasons, fmt.Sprintf("absorption: %.1fx volume, narrow bar closed high", bar.Volume/math.Max(volMA[n-1], 1e-12)))
		} else if closePos <= 0.4 {
			score = -1
			bias = "bearish"
			reasons = append(reasons, fmt.Sprintf("absorption: %.1fx volume, narrow bar closed low", bar.Volume/math.Max(volMA[n-1], 1e-12)))
		}
	}
	return feature.Output{
		Value:   feature.Numeric(score),
		Bias:    bias,
		Reasons: reasons,
	}, nil
}
