package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tactix/internal/alert"
	"tactix/internal/feature"
	"tactix/internal/fusion"
	"tactix/internal/ladder"
	"tactix/internal/market"
	"tactix/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	candles map[string][]market.Candle
	err     error
}

func (f *fakeSource) FetchHistory(_ context.Context, symbol, _ string, _ int) ([]market.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.candles[symbol], nil
}

func hourlyCandles(n int, start float64, until time.Time) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		closeAt := until.Add(-time.Duration(n-1-i) * time.Hour)
		price := start + float64(i)
		out[i] = market.Candle{
			OpenTime:  closeAt.Add(-time.Hour).UnixMilli(),
			CloseTime: closeAt.UnixMilli() - 1,
			Open:      price - 0.5,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    100,
		}
	}
	return out
}

func testProvider(r *feature.Registry) {
	numeric := func(name string, v float64, bias string) {
		r.Register(name, "test", func(in feature.Input) (feature.Output, error) {
			return feature.Output{Value: feature.Numeric(v), Bias: bias}, nil
		})
	}
	numeric("rsi", 60, "")
	numeric("atr", 2, "")
	numeric("volatility_index", 1.5, "")
	numeric("up", 0.8, "bullish")
	r.Register("momentum_vector", "test", func(in feature.Input) (feature.Output, error) {
		if len(in.Candles) == 0 {
			return feature.Output{}, fmt.Errorf("no candles")
		}
		return feature.Output{Value: feature.Numeric(in.Candles[len(in.Candles)-1].Close - 100)}, nil
	})
}

func newTestEngine(t *testing.T, src market.Source) *Engine {
	t.Helper()
	reg := feature.NewRegistry(testProvider)
	reg.Build(false)

	fus, err := fusion.NewEngine(reg, fusion.Config{
		Signals:          []fusion.SignalSpec{{Name: "up", Weight: 1, Norm: "signed"}},
		BullishThreshold: 0.6,
		BearishThreshold: 0.4,
	})
	require.NoError(t, err)

	machine, err := ladder.NewMachine(ladder.Config{}, ladder.NewMemoryStore(), market.UTCSessionClock{})
	require.NoError(t, err)

	evaluator, err := alert.NewEvaluator(alert.NewMemoryCooldownStore())
	require.NoError(t, err)

	eng, err := New(Config{
		Symbols:     []string{"BTCUSDT"},
		Timeframe:   "1h",
		HistoryBars: 50,
	}, Deps{
		Source:    src,
		Registry:  reg,
		Fusion:    fus,
		Scorer:    scoring.NewEngine(scoring.Config{}),
		Ladders:   machine,
		Evaluator: evaluator,
	})
	require.NoError(t, err)
	return eng
}

func TestRunCycleProducesRows(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)
	src := &fakeSource{candles: map[string][]market.Candle{
		"BTCUSDT": hourlyCandles(50, 100, now),
	}}
	eng := newTestEngine(t, src)

	eng.RunCycle(context.Background())

	rows := eng.Rows()
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "BTCUSDT", row.Symbol)
	assert.Equal(t, 149.0, row.CurrentPrice)
	assert.GreaterOrEqual(t, row.Score, 0.0)
	assert.LessOrEqual(t, row.Score, 10.0)
	assert.Equal(t, fusion.BiasBullish, row.Bias)
	assert.False(t, eng.LastCycle().IsZero())
}

func TestRunCycleAdvancesLadderAsPriceRises(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)
	src := &fakeSource{candles: map[string][]market.Candle{
		"BTCUSDT": hourlyCandles(50, 100, now),
	}}
	eng := newTestEngine(t, src)

	eng.RunCycle(context.Background())
	st, ok := eng.ladders.Peek(context.Background(), "BTCUSDT", ladder.SideLong)
	require.True(t, ok)
	assert.Equal(t, 0, st.Stage)
	anchoredT1 := st.Targets[0]
	require.Greater(t, anchoredT1, 149.0)

	// The next cycle's rally breaches the anchored ladder; targets do
	// not chase the new price, so the stage can actually move.
	src.candles["BTCUSDT"] = hourlyCandles(50, 110, now)
	eng.RunCycle(context.Background())
	st, ok = eng.ladders.Peek(context.Background(), "BTCUSDT", ladder.SideLong)
	require.True(t, ok)
	assert.Equal(t, anchoredT1, st.Targets[0])
	assert.Greater(t, st.Stage, 0)
	assert.Greater(t, st.TrailingStop, 0.0)
}

func TestRunCycleFailingSymbolDoesNotBlock(t *testing.T) {
	src := &fakeSource{err: fmt.Errorf("rest unavailable")}
	eng := newTestEngine(t, src)

	eng.RunCycle(context.Background())
	assert.Empty(t, eng.Rows())
	assert.False(t, eng.LastCycle().IsZero())
}

func TestBuildBundleSetsPrevMomentum(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)
	src := &fakeSource{candles: map[string][]market.Candle{
		"BTCUSDT": hourlyCandles(50, 100, now),
	}}
	eng := newTestEngine(t, src)

	candles := src.candles["BTCUSDT"]
	bundle := eng.buildBundle("BTCUSDT", candles, now)

	cur, ok := bundle.Float("momentum_vector")
	require.True(t, ok)
	prev, ok := bundle.Float("momentum_vector_prev")
	require.True(t, ok)
	assert.Equal(t, cur-1, prev)

	// Sealed after construction.
	bundle.Set("extra", feature.Numeric(1))
	_, ok = bundle.Get("extra")
	assert.False(t, ok)
}

func TestStaticPositions(t *testing.T) {
	src := NewStaticPositions([]PositionEntry{
		{Symbol: "btcusdt", Side: "short", Quantity: 2, AvgPrice: 50000, StopPrice: 52000},
		{Symbol: " "},
	})
	pos, ok := src.Position("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, ladder.SideShort, pos.Side)
	assert.Equal(t, 2.0, pos.Quantity)

	_, ok = src.Position("ETHUSDT")
	assert.False(t, ok)
}
