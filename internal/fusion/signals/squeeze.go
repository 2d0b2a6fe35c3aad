package signals

import (
	"fmt"

	"tactix/internal/feature"
	"tactix/internal/market"

	talib "github.com/markcheno/go-talib"
)

// Squeeze tracks Bollinger bandwidth compression. The series is the
// bandwidth itself; a release (bandwidth expanding off a compressed base
// with a directional close) sets the bias.
func Squeeze(in feature.Input) (feature.Output, error) {
	period := intParam(in.Params, "period", 20)
	dev := floatParam(in.Params, "dev", 2.0)
	if err := requireCandles(in.Candles, period*2, "squeeze"); err != nil {
		return feature.Output{}, err
	}
	closes := market.Closes(in.Candles)
	upper, middle, lower := talib.BBands(closes, period, dev, dev, talib.SMA)
	if len(middle) == 0 {
		return feature.Output{}, fmt.Errorf("squeeze: bbands output empty")
	}
	width := make([]float64, len(middle))
	for i := range middle {
		if middle[i] > 0 {
			width[i] = (upper[i] - lower[i]) / middle[i] * 100
		}
	}

	cur := last(width)
	prev := width[len(width)-2]
	// Compressed base: current width in the bottom quartile of the window.
	lo, hi := cur, cur
	for _, w := range tail(width, period) {
		if w <= 0 {
			continue
		}
		if w < lo {
			lo = w
		}
		if w > hi {
			hi = w
		}
	}
	compressed := hi > lo && cur <= lo+(hi-lo)*0.25

	bias := "neutral"
	reasons := []string{fmt.Sprintf("bb_width=%.2f%%", cur)}
	if prev < cur && compressed == false && width[len(width)-2] <= lo+(hi-lo)*0.25 {
		// Width expanding off a compressed base: squeeze release.
		if last(closes) > last(middle) {
			bias = "bullish"
			reasons = append(reasons, "squeeze release upward")
		} else {
			bias = "bearish"
			reasons = append(reasons, "squeeze release downward")
		}
	} else if compressed {
		reasons = append(reasons, "squeeze on")
	}

	return feature.Output{
		Value:   feature.Numeric(cur),
		Series:  width,
		Bias:    bias,
		Reasons: reasons,
	}, nil
}
