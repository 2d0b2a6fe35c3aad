package signals

import (
	"fmt"

	"tactix/internal/market"
)

func intParam(params map[string]any, key string, def int) int {
	if params == nil {
		return def
	}
	switch v := params[key].(type) {
	case int:
		if v > 0 {
			return v
		}
	case int64:
		if v > 0 {
			return int(v)
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return def
}

func floatParam(params map[string]any, key string, def float64) float64 {
	if params == nil {
		return def
	}
	switch v := params[key].(type) {
	case float64:
		if v > 0 {
			return v
		}
	case int:
		if v > 0 {
			return float64(v)
		}
	}
	return def
}

func requireCandles(candles []market.Candle, need int, name string) error {
	if len(candles) < need {
		return fmt.Errorf("%s: insufficient candles need %d got %d", name, need, len(candles))
	}
	return nil
}

func last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

func tail(series []float64, n int) []float64 {
	if n <= 0 || len(series) == 0 {
		return nil
	}
	if len(series) <= n {
		return append([]float64(nil), series...)
	}
	return append([]float64(nil), series[len(series)-n:]...)
}

// highestIdx returns the index of the maximum over the closed range [from, to].
func highestIdx(series []float64, from, to int) int {
	best := from
	for i := from; i <= to && i < len(series); i++ {
		if series[i] > series[best] {
			best = i
		}
	}
	return best
}

func lowestIdx(series []float64, from, to int) int {
	best := from
	for i := from; i <= to && i < len(series); i++ {
		if series[i] < series[best] {
			best = i
		}
	}
	return best
}
