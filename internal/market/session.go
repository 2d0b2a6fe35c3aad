package market

import "time"

// SessionClock resolves the trading date for a timestamp. The ladder state
// machine only consumes it to detect day rollover; it never gates evaluation.
type SessionClock interface {
	TradingDate(ts time.Time) string
}

// UTCSessionClock treats each UTC calendar day as one trading session,
// which matches perpetual crypto markets.
type UTCSessionClock struct{}

func (UTCSessionClock) TradingDate(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}

// OffsetSessionClock shifts the session boundary by a fixed offset from
// midnight UTC, for venues whose daily settlement is not at 00:00.
type OffsetSessionClock struct {
	Offset time.Duration
}

func (c OffsetSessionClock) TradingDate(ts time.Time) string {
	return ts.UTC().Add(-c.Offset).Format("2006-01-02")
}
