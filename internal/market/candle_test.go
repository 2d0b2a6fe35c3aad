package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCandleGeometry(t *testing.T) {
	c := Candle{Open: 100, High: 110, Low: 95, Close: 108}
	assert.Equal(t, 15.0, c.Range())
	assert.Equal(t, 8.0, c.Body())
	assert.True(t, c.Bullish())

	// Gap over the prior close widens the true range.
	assert.Equal(t, 15.0, c.TrueRange(100))
	assert.Equal(t, 30.0, c.TrueRange(80))
	assert.Equal(t, 25.0, c.TrueRange(120))
}

func TestDropUnclosed(t *testing.T) {
	now := time.Unix(1700003600, 0)
	closed := Candle{CloseTime: 1700003599999}
	forming := Candle{CloseTime: 1700007199999}

	out := DropUnclosed([]Candle{closed, forming}, time.Hour, now)
	assert.Len(t, out, 1)
	assert.Equal(t, closed, out[0])

	out = DropUnclosed([]Candle{closed}, time.Hour, now)
	assert.Len(t, out, 1)

	assert.Empty(t, DropUnclosed(nil, time.Hour, now))
}

func TestParseIntervalDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"1m":  time.Minute,
		"15m": 15 * time.Minute,
		"1h":  time.Hour,
		"4h":  4 * time.Hour,
		"1d":  24 * time.Hour,
	}
	for raw, want := range cases {
		got, ok := ParseIntervalDuration(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	for _, raw := range []string{"", "h", "0m", "-5m", "1w2"} {
		_, ok := ParseIntervalDuration(raw)
		assert.False(t, ok, raw)
	}
}

func TestSessionClocks(t *testing.T) {
	ts := time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-08-30", UTCSessionClock{}.TradingDate(ts))

	// A +8h settlement boundary keeps 02:00 UTC in the prior session.
	shifted := OffsetSessionClock{Offset: 8 * time.Hour}
	assert.Equal(t, "2026-08-29", shifted.TradingDate(ts))
}
