package engine

import (
	"strings"
	"sync"

	"tactix/internal/ladder"
	"tactix/internal/scoring"
)

// PositionSource supplies the optional existing-position context per
// symbol. The engine treats a missing entry as flat.
type PositionSource interface {
	Position(symbol string) (scoring.PositionContext, bool)
}

// StaticPositions is a config-declared position book. It covers manual
// and paper setups where no execution venue reports positions back.
type StaticPositions struct {
	mu        sync.RWMutex
	positions map[string]scoring.PositionContext
}

// PositionEntry is the YAML shape of one declared position.
type PositionEntry struct {
	Symbol         string  `mapstructure:"symbol"`
	Side           string  `mapstructure:"side"`
	Quantity       float64 `mapstructure:"quantity"`
	AvgPrice       float64 `mapstructure:"avg_price"`
	StopPrice      float64 `mapstructure:"stop_price"`
	RiskVeto       bool    `mapstructure:"risk_veto"`
	RiskVetoReason string  `mapstructure:"risk_veto_reason"`
}

func NewStaticPositions(entries []PositionEntry) *StaticPositions {
	s := &StaticPositions{positions: make(map[string]scoring.PositionContext, len(entries))}
	for _, e := range entries {
		symbol := strings.ToUpper(strings.TrimSpace(e.Symbol))
		if symbol == "" {
			continue
		}
		s.positions[symbol] = scoring.PositionContext{
			Side:           ladder.ParseSide(e.Side),
			Quantity:       e.Quantity,
			AvgPrice:       e.AvgPrice,
			StopPrice:      e.StopPrice,
			RiskVeto:       e.RiskVeto,
			RiskVetoReason: e.RiskVetoReason,
		}
	}
	return s
}

func (s *StaticPositions) Position(symbol string) (scoring.PositionContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[strings.ToUpper(strings.TrimSpace(symbol))]
	return pos, ok
}

// Set replaces one symbol's entry; used by tests and future live books.
func (s *StaticPositions) Set(symbol string, pos scoring.PositionContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[strings.ToUpper(strings.TrimSpace(symbol))] = pos
}
