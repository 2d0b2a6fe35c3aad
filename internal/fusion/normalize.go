package fusion

import "math"

const neutralNormalized = 0.5

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalize maps a raw sub-signal value onto [0,1] using the configured norm
// mode. Combination never mixes unnormalized scales.
func normalize(mode string, raw float64, series []float64, window int) float64 {
	switch mode {
	case "signed":
		// Raw already lives on [-1,1].
		return clamp01((raw + 1) / 2)
	case "zscore":
		mean, std := meanStd(tailWindow(series, window))
		if std <= 0 {
			return neutralNormalized
		}
		z := (raw - mean) / std
		return clamp01((z + 3) / 6)
	default: // minmax
		lo, hi, ok := minMax(tailWindow(series, window))
		if !ok || hi <= lo {
			return neutralNormalized
		}
		return clamp01((raw - lo) / (hi - lo))
	}
}

func tailWindow(series []float64, window int) []float64 {
	if window <= 0 || len(series) <= window {
		return series
	}
	return series[len(series)-window:]
}

func minMax(series []float64) (lo, hi float64, ok bool) {
	for _, v := range series {
		if math.IsNaN(v) {
			continue
		}
		if !ok {
			lo, hi, ok = v, v, true
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, ok
}

func meanStd(series []float64) (mean, std float64) {
	n := 0
	for _, v := range series {
		if math.IsNaN(v) {
			continue
		}
		mean += v
		n++
	}
	if n == 0 {
		return 0, 0
	}
	mean /= float64(n)
	for _, v := range series {
		if math.IsNaN(v) {
			continue
		}
		d := v - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(n))
	return mean, std
}
