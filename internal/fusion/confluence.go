package fusion

import (
	"sync"
	"time"
)

// ConfluenceScore counts how many distinct sub-signal types currently
// agree within the lookback window. Triggered is set only on the bar the
// count first reaches the threshold, so crossing is itself an event.
type ConfluenceScore struct {
	Count     int  `json:"count"`
	Direction Bias `json:"direction"`
	Triggered bool `json:"triggered"`
}

type firing struct {
	name    string
	bias    Bias
	barTime time.Time
}

// confluenceTracker keeps the short per-key history of non-neutral
// sub-signal firings that the agreement count is derived from.
type confluenceTracker struct {
	mu   sync.Mutex
	hist map[string][]firing
	met  map[string]bool // key -> count was at/above threshold last bar
}

func newConfluenceTracker() *confluenceTracker {
	return &confluenceTracker{
		hist: make(map[string][]firing),
		met:  make(map[string]bool),
	}
}

// observe records this bar's non-neutral signals and returns the capped
// agreement score for the dominant direction.
func (t *confluenceTracker) observe(key string, cfg ConfluenceConfig, barTime time.Time, barInterval time.Duration, signals []SubSignal) ConfluenceScore {
	cfg = cfg.withDefaults()
	if barInterval <= 0 {
		barInterval = time.Minute
	}
	cutoff := barTime.Add(-time.Duration(cfg.LookbackBars) * barInterval)

	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.hist[key][:0]
	for _, f := range t.hist[key] {
		if f.barTime.After(cutoff) && f.barTime.Before(barTime) {
			kept = append(kept, f)
		}
	}
	for _, s := range signals {
		if s.Degraded || s.Bias == BiasNeutral {
			continue
		}
		kept = append(kept, firing{name: s.Name, bias: s.Bias, barTime: barTime})
	}
	t.hist[key] = kept

	// Distinct signal types per direction across the window.
	bulls := make(map[string]struct{})
	bears := make(map[string]struct{})
	for _, f := range kept {
		switch f.bias {
		case BiasBullish:
			bulls[f.name] = struct{}{}
		case BiasBearish:
			bears[f.name] = struct{}{}
		}
	}
	score := ConfluenceScore{Direction: BiasNeutral}
	switch {
	case len(bulls) > len(bears):
		score.Count = len(bulls)
		score.Direction = BiasBullish
	case len(bears) > len(bulls):
		score.Count = len(bears)
		score.Direction = BiasBearish
	default:
		score.Count = len(bulls)
	}
	if score.Count > cfg.Cap {
		score.Count = cfg.Cap
	}
	met := score.Count >= cfg.Threshold && score.Direction != BiasNeutral
	score.Triggered = met && !t.met[key]
	t.met[key] = met
	return score
}
