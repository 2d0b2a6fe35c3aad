package market

import "time"

type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades"`
}

// Range is high minus low.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Body is the absolute open-to-close distance.
func (c Candle) Body() float64 {
	body := c.Close - c.Open
	if body < 0 {
		return -body
	}
	return body
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// TrueRange computes the Wilder true range against the previous close.
func (c Candle) TrueRange(prevClose float64) float64 {
	tr := c.Range()
	if prevClose > 0 {
		if d := c.High - prevClose; d > tr {
			tr = d
		}
		if d := prevClose - c.Low; d > tr {
			tr = d
		}
	}
	return tr
}

// CloseTimestamp returns the close time as a time.Time (UTC).
func (c Candle) CloseTimestamp() time.Time {
	ts := c.CloseTime
	if ts == 0 {
		ts = c.OpenTime
	}
	return time.UnixMilli(ts).UTC()
}

func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// DropUnclosed removes a trailing candle whose close time is still in the
// future relative to now; exchanges stream the forming bar alongside history.
func DropUnclosed(candles []Candle, interval time.Duration, now time.Time) []Candle {
	if len(candles) == 0 || interval <= 0 {
		return candles
	}
	last := candles[len(candles)-1]
	if last.CloseTimestamp().After(now) {
		return candles[:len(candles)-1]
	}
	return candles
}
