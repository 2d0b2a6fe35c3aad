package fusion

import (
	"fmt"
	"time"

	"tactix/internal/feature"
	"tactix/internal/logger"
)

// Engine fuses the configured sub-signals into one Tactical Index.
// One engine serves one timeframe's weight table; engines are safe for
// concurrent use across symbols.
type Engine struct {
	reg     *feature.Registry
	cfg     Config
	tracker *confluenceTracker
	log     logger.ComponentLogger
}

// NewEngine validates the weight table up front so a malformed
// configuration fails at startup, not mid-cycle.
func NewEngine(reg *feature.Registry, cfg Config) (*Engine, error) {
	if reg == nil {
		return nil, fmt.Errorf("fusion: registry is required")
	}
	if len(cfg.Signals) == 0 {
		return nil, fmt.Errorf("fusion: at least one sub-signal required")
	}
	total := 0.0
	for i, spec := range cfg.Signals {
		if spec.Name == "" {
			return nil, fmt.Errorf("fusion: signal #%d has no name", i+1)
		}
		if spec.Weight < 0 {
			return nil, fmt.Errorf("fusion: signal %s has negative weight", spec.Name)
		}
		total += spec.Weight
	}
	if total <= 0 {
		return nil, fmt.Errorf("fusion: weight table sums to zero")
	}
	if cfg.BullishThreshold <= cfg.BearishThreshold {
		return nil, fmt.Errorf("fusion: bullish_threshold must exceed bearish_threshold")
	}
	return &Engine{
		reg:     reg,
		cfg:     cfg,
		tracker: newConfluenceTracker(),
		log:     logger.Component("fusion"),
	}, nil
}

// Evaluate computes the Tactical Index for one bundle. A sub-signal whose
// inputs are unavailable contributes the neutral value flagged degraded;
// fusion itself never fails on data problems.
func (e *Engine) Evaluate(in feature.Input) TacticalIndex {
	signals := make([]SubSignal, 0, len(e.cfg.Signals))
	weightSum := 0.0
	for _, spec := range e.cfg.Signals {
		weightSum += spec.Weight
	}

	degraded := 0
	for _, spec := range e.cfg.Signals {
		weight := spec.Weight / weightSum
		sub := SubSignal{Name: feature.Normalize(spec.Name), Weight: weight}

		out, err := e.compute(spec, in)
		if err != nil {
			sub.Degraded = true
			sub.Normalized = neutralNormalized
			sub.Bias = BiasNeutral
			sub.Reasons = []string{"degraded: " + err.Error()}
			degraded++
		} else {
			raw, _ := out.Value.Float()
			sub.Raw = raw
			sub.Normalized = normalize(spec.Norm, raw, out.Series, spec.Window)
			sub.Bias = ParseBias(out.Bias)
			sub.Reasons = out.Reasons
		}
		sub.Contribution = sub.Weight * sub.Normalized
		signals = append(signals, sub)
	}

	value := 0.0
	for _, s := range signals {
		value += s.Contribution
	}
	value = clamp01(value)

	idx := TacticalIndex{
		Value:    value,
		Bias:     e.classify(value),
		Signals:  signals,
		Degraded: degraded,
	}
	idx.Confluence = e.tracker.observe(
		in.Symbol+"|"+in.Timeframe,
		e.cfg.Confluence,
		barCloseTime(in),
		barInterval(in),
		signals,
	)
	if degraded > 0 {
		e.log.Debugf("%s %s fused=%.3f with %d degraded sub-signals", in.Symbol, in.Timeframe, value, degraded)
	}
	return idx
}

func (e *Engine) compute(spec SignalSpec, in feature.Input) (feature.Output, error) {
	fn, err := e.reg.Get(spec.Name)
	if err != nil {
		return feature.Output{}, err
	}
	child := in
	child.Params = spec.Params
	return fn(child)
}

// classify applies the threshold ladder. Both boundaries are inclusive:
// value >= bullish => Bullish, value <= bearish => Bearish.
func (e *Engine) classify(value float64) Bias {
	switch {
	case value >= e.cfg.BullishThreshold:
		return BiasBullish
	case value <= e.cfg.BearishThreshold:
		return BiasBearish
	default:
		return BiasNeutral
	}
}

func barCloseTime(in feature.Input) time.Time {
	if n := len(in.Candles); n > 0 {
		return in.Candles[n-1].CloseTimestamp()
	}
	if in.Bundle != nil {
		return in.Bundle.Timestamp
	}
	return time.Time{}
}

func barInterval(in feature.Input) time.Duration {
	if n := len(in.Candles); n >= 2 {
		d := in.Candles[n-1].CloseTimestamp().Sub(in.Candles[n-2].CloseTimestamp())
		if d > 0 {
			return d
		}
	}
	return 0
}
