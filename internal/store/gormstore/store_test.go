package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tactix/internal/ladder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := NewGormStore(filepath.Join(t.TempDir(), "tactix.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLadderStateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st := ladder.NewState("BTCUSDT", ladder.SideLong, "2026-08-30")
	st.Stage = 2
	st.Targets = [ladder.StageCount]float64{105, 110, 115, 120, 125, 130}
	st.Hits = [ladder.StageCount]bool{true, true}
	st.TrailingStop = 105
	st.UpdatedAt = 1700000000

	require.NoError(t, s.PutLadderState(ctx, st))

	got, found, err := s.GetLadderState(ctx, st.Key())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, st, got)

	_, found, err = s.GetLadderState(ctx, ladder.Key("ETHUSDT", ladder.SideLong))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPutLadderStateLastWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st := ladder.NewState("BTCUSDT", ladder.SideLong, "2026-08-30")
	require.NoError(t, s.PutLadderState(ctx, st))

	st.Stage = 3
	st.TradingDate = "2026-08-31"
	require.NoError(t, s.PutLadderState(ctx, st))

	got, found, err := s.GetLadderState(ctx, st.Key())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3, got.Stage)
	assert.Equal(t, "2026-08-31", got.TradingDate)

	states, err := s.ListLadderStates(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 1)
}

func TestLadderKeysAreIndependentPerSide(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	long := ladder.NewState("BTCUSDT", ladder.SideLong, "2026-08-30")
	long.Stage = 1
	short := ladder.NewState("BTCUSDT", ladder.SideShort, "2026-08-30")
	short.Stage = 4
	require.NoError(t, s.PutLadderState(ctx, long))
	require.NoError(t, s.PutLadderState(ctx, short))

	got, _, err := s.GetLadderState(ctx, short.Key())
	require.NoError(t, err)
	assert.Equal(t, 4, got.Stage)
}

func TestCooldownRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, found, err := s.LastFire(ctx, "BTCUSDT", "rsi-overbought")
	require.NoError(t, err)
	assert.False(t, found)

	t0 := time.Unix(1700000000, 0).UTC()
	require.NoError(t, s.RecordFire(ctx, "btcusdt", "rsi-overbought", t0))

	last, found, err := s.LastFire(ctx, "BTCUSDT", "rsi-overbought")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, t0, last)
}

func TestRecordFireNeverMovesBackwards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t0 := time.Unix(1700000000, 0).UTC()
	require.NoError(t, s.RecordFire(ctx, "BTCUSDT", "r", t0))
	require.NoError(t, s.RecordFire(ctx, "BTCUSDT", "r", t0.Add(-time.Hour)))

	last, found, err := s.LastFire(ctx, "BTCUSDT", "r")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, t0, last)
}
