package market

import "context"

// Source supplies historical candle windows. The decision core never calls
// a Source directly; the engine fetches a window up front and hands the
// already-resident slice to each component.
type Source interface {
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// SourceStats tracks fetch outcomes for diagnostics.
type SourceStats struct {
	Requests int64 `json:"requests"`
	Failures int64 `json:"failures"`
}
