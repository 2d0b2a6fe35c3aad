package alert

import (
	"context"
	"testing"
	"time"

	"tactix/internal/feature"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func level(v float64) *float64 { return &v }

func sampleWith(t *testing.T, price float64, features map[string]float64, at time.Time) Sample {
	t.Helper()
	b := feature.NewBundle("BTCUSDT", "1h", at)
	for name, v := range features {
		b.Set(name, feature.Numeric(v))
	}
	b.Seal()
	return Sample{Price: price, Bundle: b, At: at}
}

func TestEvaluateThresholdOperators(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cur := sampleWith(t, 50000, map[string]float64{"rsi": 76}, now)

	rule := Rule{ID: "r", Kind: KindIndicator, Operator: OpGTE, Feature: "rsi", Level: level(75)}
	fired, meta := Evaluate(rule, Sample{}, cur)
	assert.True(t, fired)
	assert.Equal(t, 76.0, meta["value"])

	rule.Operator = OpLT
	fired, _ = Evaluate(rule, Sample{}, cur)
	assert.False(t, fired)
}

func TestEvaluateCrossFiresOnSignChangeOnly(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rule := Rule{ID: "x", Kind: KindIndicator, Operator: OpCrossAbove, Feature: "rsi", Level: level(50)}

	below := sampleWith(t, 0, map[string]float64{"rsi": 48}, now)
	above := sampleWith(t, 0, map[string]float64{"rsi": 52}, now.Add(time.Hour))
	higher := sampleWith(t, 0, map[string]float64{"rsi": 60}, now.Add(2*time.Hour))

	fired, _ := Evaluate(rule, below, above)
	assert.True(t, fired)

	// The condition persisting does not re-fire.
	fired, _ = Evaluate(rule, above, higher)
	assert.False(t, fired)

	// Landing exactly on the level counts as a crossing.
	exact := sampleWith(t, 0, map[string]float64{"rsi": 50}, now.Add(time.Hour))
	fired, _ = Evaluate(rule, below, exact)
	assert.True(t, fired)

	down := Rule{ID: "y", Kind: KindIndicator, Operator: OpCrossBelow, Feature: "rsi", Level: level(50)}
	fired, _ = Evaluate(down, above, below)
	assert.True(t, fired)
	fired, _ = Evaluate(down, below, below)
	assert.False(t, fired)
}

func TestEvaluateMissingReference(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cur := sampleWith(t, 50000, nil, now)

	rule := Rule{ID: "m", Kind: KindIndicator, Operator: OpGT, Feature: "macd_hist", Level: level(0)}
	fired, meta := Evaluate(rule, Sample{}, cur)
	assert.False(t, fired)
	assert.Equal(t, true, meta["missing_reference"])

	// Cross with an unavailable previous sample resolves quietly too.
	rule = Rule{ID: "c", Kind: KindIndicator, Operator: OpCrossAbove, Feature: "rsi", Level: level(50)}
	cur = sampleWith(t, 0, map[string]float64{"rsi": 55}, now)
	fired, meta = Evaluate(rule, Sample{}, cur)
	assert.False(t, fired)
	assert.Equal(t, true, meta["missing_reference"])
}

func TestEvaluatePriceAgainstFeature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rule := Rule{ID: "p", Kind: KindPrice, Operator: OpCrossAbove, Feature: "ema_50"}

	prev := sampleWith(t, 99, map[string]float64{"ema_50": 100}, now)
	cur := sampleWith(t, 103, map[string]float64{"ema_50": 101}, now.Add(time.Hour))
	fired, _ := Evaluate(rule, prev, cur)
	assert.True(t, fired)
}

func TestBatchCooldownAnchorsAtOriginalFire(t *testing.T) {
	store := NewMemoryCooldownStore()
	ev, err := NewEvaluator(store)
	require.NoError(t, err)

	t0 := time.Unix(1700000000, 0)
	rule := Rule{ID: "hot", Kind: KindIndicator, Operator: OpGT, Feature: "rsi", Level: level(70), CooldownSeconds: 3600}
	hot := sampleWith(t, 0, map[string]float64{"rsi": 80}, t0)

	events := ev.EvaluateBatch(context.Background(), "BTCUSDT", []Rule{rule}, Sample{}, hot, t0)
	require.Len(t, events, 1)
	assert.Equal(t, "hot", events[0].RuleID)

	// Inside the window: suppressed, and the suppression itself is not
	// recorded, so the window stays anchored at t0.
	events = ev.EvaluateBatch(context.Background(), "BTCUSDT", []Rule{rule}, Sample{}, hot, t0.Add(30*time.Minute))
	assert.Empty(t, events)

	last, found, err := store.LastFire(context.Background(), "BTCUSDT", "hot")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, t0, last)

	// At exactly t0+cooldown the rule may fire again.
	events = ev.EvaluateBatch(context.Background(), "BTCUSDT", []Rule{rule}, Sample{}, hot, t0.Add(time.Hour))
	assert.Len(t, events, 1)
}

func TestBatchSkipsInvalidRules(t *testing.T) {
	ev, err := NewEvaluator(NewMemoryCooldownStore())
	require.NoError(t, err)

	t0 := time.Unix(1700000000, 0)
	hot := sampleWith(t, 0, map[string]float64{"rsi": 80}, t0)
	rules := []Rule{
		{ID: "", Kind: KindIndicator, Operator: OpGT, Feature: "rsi", Level: level(70)},
		{ID: "ok", Kind: KindIndicator, Operator: OpGT, Feature: "rsi", Level: level(70)},
	}
	events := ev.EvaluateBatch(context.Background(), "BTCUSDT", rules, Sample{}, hot, t0)
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].RuleID)
}

func TestLevellessIndicatorRuleNeverFires(t *testing.T) {
	ev, err := NewEvaluator(NewMemoryCooldownStore())
	require.NoError(t, err)

	t0 := time.Unix(1700000000, 0)
	oversold := sampleWith(t, 0, map[string]float64{"rsi": 12}, t0)
	rule := Rule{ID: "bare", Kind: KindIndicator, Operator: OpGT, Feature: "rsi"}

	// Direct evaluation resolves the missing level as unavailable, not
	// as an implicit zero that rsi > 0 would always satisfy.
	fired, meta := Evaluate(rule, Sample{}, oversold)
	assert.False(t, fired)
	assert.Equal(t, true, meta["missing_reference"])

	// The batch drops it at validation.
	events := ev.EvaluateBatch(context.Background(), "BTCUSDT", []Rule{rule}, Sample{}, oversold, t0)
	assert.Empty(t, events)
}

func TestRuleValidate(t *testing.T) {
	valid := Rule{ID: "a", Kind: KindIndicator, Operator: OpGT, Feature: "rsi", Level: level(1)}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.Kind = "volume"
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Operator = "between"
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Feature = ""
	assert.Error(t, bad.Validate())

	bad = valid
	bad.CooldownSeconds = -1
	assert.Error(t, bad.Validate())

	// Indicator and pattern rules need a literal level; without one the
	// comparison would silently run against zero.
	bad = valid
	bad.Level = nil
	assert.Error(t, bad.Validate())
	bad.Kind = KindPattern
	assert.Error(t, bad.Validate())

	price := Rule{ID: "p", Kind: KindPrice, Operator: OpGT}
	assert.Error(t, price.Validate())
	price.Level = level(100)
	assert.NoError(t, price.Validate())
}
