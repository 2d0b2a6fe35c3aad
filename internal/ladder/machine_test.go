package ladder

import (
	"context"
	"errors"
	"testing"
	"time"

	"tactix/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMachine(t *testing.T) (*Machine, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	m, err := NewMachine(Config{}, store, market.UTCSessionClock{})
	require.NoError(t, err)
	return m, store
}

func flatBar(close float64) market.Candle {
	return market.Candle{
		OpenTime:  1700000000000,
		CloseTime: 1700003599999,
		Open:      close,
		High:      close + 1,
		Low:       close - 1,
		Close:     close,
		Volume:    10,
	}
}

func baseInput(price float64, now time.Time) Input {
	return Input{
		Symbol:    "BTCUSDT",
		Side:      SideLong,
		Price:     price,
		Targets:   [3]float64{105, 110, 115},
		ATR:       5,
		LastBar:   flatBar(price),
		PrevClose: price,
		Now:       now,
	}
}

func TestAdvanceToHighestSatisfiedTarget(t *testing.T) {
	m, _ := newTestMachine(t)
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	res, err := m.Evaluate(context.Background(), baseInput(100, now))
	require.NoError(t, err)
	assert.Equal(t, 0, res.State.Stage)

	res, err = m.Evaluate(context.Background(), baseInput(106, now.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 1, res.State.Stage)
	assert.True(t, res.State.Hits[0])

	// Skipping straight through several targets lands on the highest.
	res, err = m.Evaluate(context.Background(), baseInput(112, now.Add(2*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 2, res.State.Stage)
}

func TestStageNeverRegresses(t *testing.T) {
	m, _ := newTestMachine(t)
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	res, err := m.Evaluate(context.Background(), baseInput(112, now))
	require.NoError(t, err)
	assert.Equal(t, 2, res.State.Stage)

	// Retrace below T1: stage holds.
	res, err = m.Evaluate(context.Background(), baseInput(101, now.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 2, res.State.Stage)
	assert.True(t, res.State.Hits[0])
	assert.True(t, res.State.Hits[1])
}

func TestExtendedTargetsBeyondT3(t *testing.T) {
	m, _ := newTestMachine(t)
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	res, err := m.Evaluate(context.Background(), baseInput(100, now))
	require.NoError(t, err)
	// T4..T6 = T3 + 1,2,3 ATR.
	assert.Equal(t, 120.0, res.State.Targets[3])
	assert.Equal(t, 125.0, res.State.Targets[4])
	assert.Equal(t, 130.0, res.State.Targets[5])

	short := baseInput(100, now)
	short.Side = SideShort
	short.Targets = [3]float64{95, 90, 85}
	res, err = m.Evaluate(context.Background(), short)
	require.NoError(t, err)
	assert.Equal(t, 80.0, res.State.Targets[3])
	assert.Equal(t, 75.0, res.State.Targets[4])
	assert.Equal(t, 70.0, res.State.Targets[5])
}

func TestTargetsAnchorForSession(t *testing.T) {
	m, _ := newTestMachine(t)
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	res, err := m.Evaluate(context.Background(), baseInput(100, now))
	require.NoError(t, err)
	require.Equal(t, 105.0, res.State.Targets[0])

	// Later cycles arrive with targets re-derived from the risen price;
	// the stored ladder holds so the move can actually breach T1.
	in := baseInput(106, now.Add(time.Hour))
	in.Targets = [3]float64{111, 116, 121}
	res, err = m.Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 105.0, res.State.Targets[0])
	assert.Equal(t, 1, res.State.Stage)

	// The next session re-anchors at that day's sizing.
	day2 := time.Date(2026, 8, 31, 1, 0, 0, 0, time.UTC)
	in = baseInput(100, day2)
	in.Targets = [3]float64{103, 106, 109}
	res, err = m.Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.Reset)
	assert.Equal(t, 103.0, res.State.Targets[0])
}

func TestDailyResetExactlyOnce(t *testing.T) {
	m, store := newTestMachine(t)
	day1 := time.Date(2026, 8, 30, 22, 0, 0, 0, time.UTC)

	res, err := m.Evaluate(context.Background(), baseInput(112, day1))
	require.NoError(t, err)
	assert.Equal(t, 2, res.State.Stage)

	// First evaluation of the next UTC day resets stage, hits and trail
	// atomically before any transition runs.
	day2 := day1.Add(3 * time.Hour)
	res, err = m.Evaluate(context.Background(), baseInput(100, day2))
	require.NoError(t, err)
	assert.True(t, res.Reset)
	assert.Equal(t, 0, res.State.Stage)
	assert.Equal(t, [StageCount]bool{}, res.State.Hits)
	assert.Equal(t, "2026-08-31", res.State.TradingDate)

	res, err = m.Evaluate(context.Background(), baseInput(100, day2.Add(time.Hour)))
	require.NoError(t, err)
	assert.False(t, res.Reset)

	st, ok, err := store.GetLadderState(context.Background(), Key("BTCUSDT", SideLong))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2026-08-31", st.TradingDate)
}

func TestTrailingFollowsLadder(t *testing.T) {
	m, _ := newTestMachine(t)
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	res, err := m.Evaluate(context.Background(), baseInput(111, now))
	require.NoError(t, err)
	require.Equal(t, 2, res.State.Stage)
	// Stage 2: stop rides at T1.
	assert.Equal(t, 105.0, res.State.TrailingStop)
	assert.True(t, res.TrailingMoved)
}

func TestWRBRebasesTrailing(t *testing.T) {
	m, _ := newTestMachine(t)
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	in := baseInput(113, now)
	// Wide-range bullish bar: range 10.5 >= 1.5*ATR(5), body share 9/10.5.
	in.LastBar = market.Candle{
		Open: 104, High: 114, Low: 103.5, Close: 113,
		OpenTime: 1700000000000, CloseTime: 1700003599999,
	}
	in.PrevClose = 104
	res, err := m.Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.WRB)
	assert.True(t, res.State.WRBConfirmed)
	// Stage 2 trail would sit at T1=105; the WRB rebases it to close-ATR.
	assert.Equal(t, 108.0, res.State.TrailingStop)
	assert.True(t, res.TrailingMoved)
}

func TestWRBFlagClearsOnNextBar(t *testing.T) {
	m, _ := newTestMachine(t)
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	in := baseInput(113, now)
	in.LastBar = market.Candle{
		Open: 104, High: 114, Low: 103.5, Close: 113,
		OpenTime: 1700000000000, CloseTime: 1700003599999,
	}
	in.PrevClose = 104
	res, err := m.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.True(t, res.State.WRBConfirmed)
	require.Equal(t, 108.0, res.State.TrailingStop)

	// An ordinary follow-up bar drops the flag; the rebased trail holds.
	res, err = m.Evaluate(context.Background(), baseInput(113, now.Add(time.Hour)))
	require.NoError(t, err)
	assert.False(t, res.WRB)
	assert.False(t, res.State.WRBConfirmed)
	assert.Equal(t, 108.0, res.State.TrailingStop)
}

func TestNarrowBarIsNotWRB(t *testing.T) {
	m, _ := newTestMachine(t)
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	res, err := m.Evaluate(context.Background(), baseInput(100, now))
	require.NoError(t, err)
	assert.False(t, res.WRB)
	assert.False(t, res.State.WRBConfirmed)
}

type corruptReadStore struct {
	*MemoryStore
	failNext bool
}

func (s *corruptReadStore) GetLadderState(ctx context.Context, key string) (State, bool, error) {
	if s.failNext {
		s.failNext = false
		return State{}, false, errors.New("ladder state: unexpected end of JSON input")
	}
	return s.MemoryStore.GetLadderState(ctx, key)
}

func TestCorruptStateFallsBackToDefault(t *testing.T) {
	store := &corruptReadStore{MemoryStore: NewMemoryStore(), failNext: true}
	m, err := NewMachine(Config{}, store, market.UTCSessionClock{})
	require.NoError(t, err)

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	res, err := m.Evaluate(context.Background(), baseInput(100, now))
	require.NoError(t, err)
	// Unreadable record degrades to a fresh stage-0 state, not a failure.
	assert.Equal(t, 0, res.State.Stage)
	assert.Equal(t, "2026-08-30", res.State.TradingDate)
}

func TestStateRoundTrip(t *testing.T) {
	st := NewState("btcusdt", SideShort, "2026-08-30")
	st.Stage = 4
	st.Targets = [StageCount]float64{95, 90, 85, 80, 75, 70}
	st.Hits = [StageCount]bool{true, true, true, true, false, false}
	st.TrailingStop = 82.5
	st.WRBConfirmed = true
	st.UpdatedAt = 1700000000

	decoded, err := Decode(Encode(st))
	require.NoError(t, err)
	assert.Equal(t, st, decoded)
}

func TestDecodeRejectsCorrupt(t *testing.T) {
	_, err := Decode("")
	assert.Error(t, err)
	_, err = Decode("{not json")
	assert.Error(t, err)
	_, err = Decode(`{"symbol":"X","stage":9}`)
	assert.Error(t, err)
}
