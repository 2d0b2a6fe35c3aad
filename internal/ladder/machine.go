package ladder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tactix/internal/logger"
	"tactix/internal/market"

	"github.com/shopspring/decimal"
)

// Config holds the tuned ladder parameters. All are injected; nothing is
// hardcoded at call sites.
type Config struct {
	// ExtensionMultipliers derive T4..T6 beyond T3 in ATR units.
	ExtensionMultipliers [3]float64 `mapstructure:"extension_multipliers"`
	// WRBATRMultiplier qualifies a bar's true range against the ATR.
	WRBATRMultiplier float64 `mapstructure:"wrb_atr_multiplier"`
	// WRBBodyRatio is the minimum body/range share for a WRB.
	WRBBodyRatio float64 `mapstructure:"wrb_body_ratio"`
	// TrailATRMultiplier sets the re-based trailing distance after a WRB.
	TrailATRMultiplier float64 `mapstructure:"trail_atr_multiplier"`
}

func (c Config) withDefaults() Config {
	if c.ExtensionMultipliers == [3]float64{} {
		c.ExtensionMultipliers = [3]float64{1.0, 2.0, 3.0}
	}
	if c.WRBATRMultiplier <= 0 {
		c.WRBATRMultiplier = 1.5
	}
	if c.WRBBodyRatio <= 0 {
		c.WRBBodyRatio = 0.6
	}
	if c.TrailATRMultiplier <= 0 {
		c.TrailATRMultiplier = 1.0
	}
	return c
}

// Input is everything one evaluation consumes. Targets carries T1..T3
// from initial risk sizing; T4..T6 are extrapolated here. The supplied
// targets are consulted only when the state is fresh or just reset.
type Input struct {
	Symbol    string
	Side      Side
	Price     float64
	Targets   [3]float64
	ATR       float64
	LastBar   market.Candle
	PrevClose float64
	Now       time.Time
}

// Result reports what one evaluation did to the state.
type Result struct {
	State         State
	PrevStage     int
	Reset         bool
	WRB           bool
	TrailingMoved bool
}

// Machine advances ladder states. Updates for one (symbol, side) are
// strictly serialized through a per-key mutex; cycles for different keys
// proceed concurrently.
type Machine struct {
	cfg   Config
	store Store
	clock market.SessionClock
	log   logger.ComponentLogger

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func NewMachine(cfg Config, store Store, clock market.SessionClock) (*Machine, error) {
	if store == nil {
		return nil, fmt.Errorf("ladder: store is required")
	}
	if clock == nil {
		clock = market.UTCSessionClock{}
	}
	return &Machine{
		cfg:   cfg.withDefaults(),
		store: store,
		clock: clock,
		log:   logger.Component("ladder"),
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Evaluate runs one read-modify-write cycle for (symbol, side).
func (m *Machine) Evaluate(ctx context.Context, in Input) (Result, error) {
	if in.Price <= 0 {
		return Result{}, fmt.Errorf("ladder: price must be positive")
	}
	key := Key(in.Symbol, in.Side)
	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	tradingDate := m.clock.TradingDate(now)

	st, found, err := m.store.GetLadderState(ctx, key)
	if err != nil {
		// Unreadable persisted record: fall back to a fresh default for
		// this key instead of failing the cycle.
		m.log.Warnf("%s state unreadable, reinitializing: %v", key, err)
		st = NewState(in.Symbol, in.Side, tradingDate)
		found = true
	}
	if !found {
		st = NewState(in.Symbol, in.Side, tradingDate)
	}

	res := Result{PrevStage: st.Stage}
	if st.TradingDate != tradingDate {
		st.resetForDate(tradingDate)
		res.Reset = true
		res.PrevStage = 0
	}

	// Targets anchor once per session from the initial risk sizing;
	// later cycles keep the stored ladder so price can progress through
	// it instead of chasing levels re-derived from the live price.
	if res.Reset || st.Targets == ([StageCount]float64{}) {
		st.Targets = m.extendTargets(in)
	}
	m.advance(&st, in.Price)
	if st.Stage > res.PrevStage {
		m.defaultTrail(&st)
	}
	// WRBConfirmed tracks the latest completed bar only; a stale flag
	// would keep every later cycle of the day reading as urgent.
	st.WRBConfirmed = m.confirmWRB(in)
	if st.WRBConfirmed {
		res.WRB = true
		if m.rebaseTrailing(&st, in) {
			res.TrailingMoved = true
		}
	}
	if st.Stage > res.PrevStage {
		res.TrailingMoved = true
		m.log.Infof("%s advanced stage %d -> %d at price %.4f", key, res.PrevStage, st.Stage, in.Price)
	}

	st.UpdatedAt = now.Unix()
	if err := m.store.PutLadderState(ctx, st); err != nil {
		return Result{}, fmt.Errorf("ladder: persist %s: %w", key, err)
	}
	res.State = st
	return res, nil
}

// Peek returns the stored state without mutating it.
func (m *Machine) Peek(ctx context.Context, symbol string, side Side) (State, bool) {
	st, ok, err := m.store.GetLadderState(ctx, Key(symbol, side))
	if err != nil {
		return State{}, false
	}
	return st, ok
}

func (m *Machine) keyLock(key string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	if l, ok := m.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	m.locks[key] = l
	return l
}

// extendTargets keeps T1..T3 as supplied and extrapolates T4..T6 at ATR
// multiples beyond T3, directional per side.
func (m *Machine) extendTargets(in Input) [StageCount]float64 {
	var out [StageCount]float64
	copy(out[:3], in.Targets[:])
	t3 := decimal.NewFromFloat(in.Targets[2])
	atr := decimal.NewFromFloat(in.ATR)
	for i, mult := range m.cfg.ExtensionMultipliers {
		step := atr.Mul(decimal.NewFromFloat(mult))
		var level decimal.Decimal
		if in.Side == SideShort {
			level = t3.Sub(step)
		} else {
			level = t3.Add(step)
		}
		out[3+i], _ = level.Float64()
	}
	return out
}

// advance moves the stage to the highest satisfied target index. The
// stage never regresses within a session even if price retraces.
func (m *Machine) advance(st *State, price float64) {
	highest := st.Stage
	for i := 0; i < StageCount; i++ {
		if st.Targets[i] <= 0 {
			continue
		}
		hit := price >= st.Targets[i]
		if st.Side == SideShort {
			hit = price <= st.Targets[i]
		}
		if hit && i+1 > highest {
			highest = i + 1
		}
	}
	st.Stage = highest
	for i := 0; i < st.Stage; i++ {
		st.Hits[i] = true
	}
}

// defaultTrail advances the trailing stop along the staged ladder: once
// target i is breached, the stop rides at the prior target level.
func (m *Machine) defaultTrail(st *State) {
	if st.Stage < 2 {
		return
	}
	candidate := st.Targets[st.Stage-2]
	if betterStop(st.Side, candidate, st.TrailingStop) {
		st.TrailingStop = candidate
	}
}

// confirmWRB applies the three-way test: true range beyond the ATR
// multiple, dominant body, close direction matching the side.
func (m *Machine) confirmWRB(in Input) bool {
	if in.ATR <= 0 {
		return false
	}
	bar := in.LastBar
	if bar.Range() <= 0 {
		return false
	}
	tr := bar.TrueRange(in.PrevClose)
	if tr < in.ATR*m.cfg.WRBATRMultiplier {
		return false
	}
	if bar.Body()/bar.Range() < m.cfg.WRBBodyRatio {
		return false
	}
	if in.Side == SideShort {
		return !bar.Bullish()
	}
	return bar.Bullish()
}

// rebaseTrailing pulls the stop to one trail-ATR behind the WRB close,
// only ever moving it in the favorable direction.
func (m *Machine) rebaseTrailing(st *State, in Input) bool {
	dist := in.ATR * m.cfg.TrailATRMultiplier
	candidate := in.LastBar.Close - dist
	if st.Side == SideShort {
		candidate = in.LastBar.Close + dist
	}
	if betterStop(st.Side, candidate, st.TrailingStop) {
		st.TrailingStop = candidate
		return true
	}
	return false
}

// betterStop reports whether candidate tightens the stop for the side.
func betterStop(side Side, candidate, current float64) bool {
	if candidate <= 0 {
		return false
	}
	if current == 0 {
		return true
	}
	if side == SideShort {
		return candidate < current
	}
	return candidate > current
}
