package scoring

import (
	"math"

	"github.com/shopspring/decimal"
)

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

// deriveLevels computes the entry band, protective stop and T1..T3 from
// price and ATR. Decimal arithmetic keeps the published levels free of
// float drift that would otherwise leak into ladder comparisons.
func deriveLevels(cfg Config, price, atr float64) (EntryRange, float64, []float64) {
	if price <= 0 {
		return EntryRange{}, 0, nil
	}
	p := decFromFloat(price)
	a := decFromFloat(atr)

	band := a.Mul(decFromFloat(cfg.EntryBandATR))
	entry := EntryRange{
		Low:  decToFloat(p.Sub(band)),
		High: decToFloat(p.Add(band)),
	}
	stop := decToFloat(p.Sub(a.Mul(decFromFloat(cfg.StopATR))))
	if stop < 0 {
		stop = 0
	}
	targets := make([]float64, 0, len(cfg.TargetATRMultiples))
	for _, mult := range cfg.TargetATRMultiples {
		targets = append(targets, decToFloat(p.Add(a.Mul(decFromFloat(mult)))))
	}
	return entry, stop, targets
}
