package ladder

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StageCount is the number of staged targets tracked per (symbol, side).
const StageCount = 6

// Side of the tracked (open or hypothetical) position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// ParseSide normalizes loose side strings; anything unrecognized is long.
func ParseSide(raw string) Side {
	if strings.EqualFold(strings.TrimSpace(raw), string(SideShort)) {
		return SideShort
	}
	return SideLong
}

// State is the persistent staged target/trailing record for one
// (symbol, side). Stage is monotonic non-decreasing for a fixed
// TradingDate and resets exactly once on session rollover.
type State struct {
	Symbol       string              `json:"symbol"`
	Side         Side                `json:"side"`
	TradingDate  string              `json:"trading_date"`
	Stage        int                 `json:"stage"`
	Targets      [StageCount]float64 `json:"targets"`
	Hits         [StageCount]bool    `json:"hits"`
	TrailingStop float64             `json:"trailing_stop"`
	WRBConfirmed bool                `json:"wrb_confirmed"`
	UpdatedAt    int64               `json:"updated_at"`
}

// NewState returns the fresh stage-0 record for a key and session.
func NewState(symbol string, side Side, tradingDate string) State {
	return State{
		Symbol:      strings.ToUpper(strings.TrimSpace(symbol)),
		Side:        side,
		TradingDate: tradingDate,
	}
}

// Key is the persistence key, SYMBOL|side.
func (s State) Key() string {
	return Key(s.Symbol, s.Side)
}

func Key(symbol string, side Side) string {
	return strings.ToUpper(strings.TrimSpace(symbol)) + "|" + string(side)
}

// resetForDate clears per-session fields atomically before any transition
// logic runs for the new trading date.
func (s *State) resetForDate(tradingDate string) {
	s.TradingDate = tradingDate
	s.Stage = 0
	s.Hits = [StageCount]bool{}
	s.TrailingStop = 0
	s.WRBConfirmed = false
}

// Encode serializes the state for storage.
func Encode(s State) string {
	raw, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// Decode restores a stored state. A corrupt payload is an error the
// caller converts into a fresh default, never a cycle failure.
func Decode(raw string) (State, error) {
	var s State
	if strings.TrimSpace(raw) == "" {
		return s, fmt.Errorf("ladder state: empty payload")
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return State{}, fmt.Errorf("ladder state: %w", err)
	}
	if s.Stage < 0 || s.Stage > StageCount {
		return State{}, fmt.Errorf("ladder state: stage %d out of range", s.Stage)
	}
	return s, nil
}
