package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tactix/internal/alert"
	"tactix/internal/feature"
	"tactix/internal/fusion"
	"tactix/internal/ladder"
	"tactix/internal/logger"
	"tactix/internal/market"
	"tactix/internal/notifier"
	"tactix/internal/scoring"
	"tactix/internal/store/eventlog"

	"golang.org/x/sync/errgroup"
)

// Config tunes one engine instance.
type Config struct {
	Symbols     []string `mapstructure:"symbols"`
	Timeframe   string   `mapstructure:"timeframe"`
	HistoryBars int      `mapstructure:"history_bars"`
	Concurrency int      `mapstructure:"concurrency"`
	// BundleFeatures are computed into the sealed bundle each cycle,
	// beyond what fusion itself evaluates.
	BundleFeatures []string `mapstructure:"bundle_features"`
	// NotifyUrgency pushes high-urgency rows to the text notifier.
	NotifyUrgency bool `mapstructure:"notify_urgency"`
}

func (c Config) withDefaults() Config {
	if c.Timeframe == "" {
		c.Timeframe = "1h"
	}
	if c.HistoryBars <= 0 {
		c.HistoryBars = 200
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if len(c.BundleFeatures) == 0 {
		c.BundleFeatures = []string{"rsi", "atr", "volatility_index", "momentum_vector"}
	}
	return c
}

// Engine drives one evaluation cycle per scheduler tick: fetch candles,
// build the sealed feature bundle, fuse, score, advance the ladder, and
// run the alert batch. Symbols are evaluated concurrently; a failing
// symbol never blocks the rest of the cycle.
type Engine struct {
	cfg       Config
	src       market.Source
	registry  *feature.Registry
	fusion    *fusion.Engine
	scorer    *scoring.Engine
	ladders   *ladder.Machine
	evaluator *alert.Evaluator
	rules     *alert.Registry
	events    *eventlog.Store
	notify    notifier.TextNotifier
	positions PositionSource
	log       logger.ComponentLogger

	mu          sync.RWMutex
	rows        map[string]scoring.ActionableRow
	lastSamples map[string]alert.Sample
	lastCycle   time.Time
}

// Deps collects the engine's collaborators. Rules, events, notify and
// positions are optional.
type Deps struct {
	Source    market.Source
	Registry  *feature.Registry
	Fusion    *fusion.Engine
	Scorer    *scoring.Engine
	Ladders   *ladder.Machine
	Evaluator *alert.Evaluator
	Rules     *alert.Registry
	Events    *eventlog.Store
	Notify    notifier.TextNotifier
	Positions PositionSource
}

func New(cfg Config, deps Deps) (*Engine, error) {
	cfg = cfg.withDefaults()
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("engine: at least one symbol is required")
	}
	if deps.Source == nil || deps.Registry == nil || deps.Fusion == nil || deps.Scorer == nil || deps.Ladders == nil {
		return nil, fmt.Errorf("engine: source, registry, fusion, scorer and ladders are required")
	}
	if _, ok := market.ParseIntervalDuration(cfg.Timeframe); !ok {
		return nil, fmt.Errorf("engine: unsupported timeframe %q", cfg.Timeframe)
	}
	notify := deps.Notify
	if notify == nil {
		notify = notifier.Noop{}
	}
	return &Engine{
		cfg:         cfg,
		src:         deps.Source,
		registry:    deps.Registry,
		fusion:      deps.Fusion,
		scorer:      deps.Scorer,
		ladders:     deps.Ladders,
		evaluator:   deps.Evaluator,
		rules:       deps.Rules,
		events:      deps.Events,
		notify:      notify,
		positions:   deps.Positions,
		log:         logger.Component("engine"),
		rows:        make(map[string]scoring.ActionableRow),
		lastSamples: make(map[string]alert.Sample),
	}, nil
}

// RunCycle evaluates every configured symbol once.
func (e *Engine) RunCycle(ctx context.Context) {
	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for _, symbol := range e.cfg.Symbols {
		symbol := strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}
		g.Go(func() error {
			if err := e.evaluateSymbol(gctx, symbol, started); err != nil {
				e.log.Warnf("%s cycle skipped: %v", symbol, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	e.mu.Lock()
	e.lastCycle = started
	e.mu.Unlock()
	e.log.Infof("cycle done symbols=%d elapsed=%s", len(e.cfg.Symbols), time.Since(started).Truncate(time.Millisecond))
}

func (e *Engine) evaluateSymbol(ctx context.Context, symbol string, now time.Time) error {
	interval, _ := market.ParseIntervalDuration(e.cfg.Timeframe)
	candles, err := e.src.FetchHistory(ctx, symbol, e.cfg.Timeframe, e.cfg.HistoryBars)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}
	candles = market.DropUnclosed(candles, interval, now)
	if len(candles) == 0 {
		return fmt.Errorf("no closed candles")
	}
	last := candles[len(candles)-1]
	price := last.Close

	bundle := e.buildBundle(symbol, candles, now)
	in := feature.Input{
		Symbol:    symbol,
		Timeframe: e.cfg.Timeframe,
		Candles:   candles,
		Bundle:    bundle,
	}
	index := e.fusion.Evaluate(in)

	side := ladder.SideLong
	var position *scoring.PositionContext
	if e.positions != nil {
		if pos, ok := e.positions.Position(symbol); ok {
			position = &pos
			side = pos.Side
		}
	}

	var ladderCtx *scoring.LadderContext
	if st, ok := e.ladders.Peek(ctx, symbol, side); ok {
		ladderCtx = &scoring.LadderContext{
			Stage:        st.Stage,
			TrailingStop: st.TrailingStop,
			WRBConfirmed: st.WRBConfirmed,
		}
	}

	row := e.scorer.Score(scoring.Input{
		Symbol:   symbol,
		Price:    price,
		Bundle:   bundle,
		Index:    index,
		Ladder:   ladderCtx,
		Position: position,
	})

	atr, _ := bundle.Float("atr")
	e.advanceLadder(ctx, symbol, side, row, atr, candles, now)
	e.runAlerts(ctx, symbol, price, bundle, now)

	e.mu.Lock()
	e.rows[symbol] = row
	e.mu.Unlock()

	if e.cfg.NotifyUrgency && row.Urgency == scoring.UrgencyHigh {
		if err := e.notify.SendText(notifier.FormatRow(row, now)); err != nil {
			e.log.Warnf("%s urgency notify failed: %v", symbol, err)
		}
	}
	return nil
}

// buildBundle computes the configured features plus the previous-bar
// momentum value the scorer needs for crossover detection.
func (e *Engine) buildBundle(symbol string, candles []market.Candle, now time.Time) *feature.Bundle {
	bundle := feature.NewBundle(symbol, e.cfg.Timeframe, now)
	in := feature.Input{
		Symbol:    symbol,
		Timeframe: e.cfg.Timeframe,
		Candles:   candles,
		Bundle:    bundle,
	}
	for _, name := range e.cfg.BundleFeatures {
		fn, err := e.registry.Get(name)
		if err != nil {
			e.log.Warnf("%s feature %s unavailable: %v", symbol, name, err)
			continue
		}
		out, err := fn(in)
		if err != nil {
			e.log.Debugf("%s feature %s degraded: %v", symbol, name, err)
			bundle.Set(name, feature.Missing())
			continue
		}
		bundle.Set(name, out.Value)
	}
	if fn, err := e.registry.Get("momentum_vector"); err == nil && len(candles) > 1 {
		prevIn := in
		prevIn.Candles = candles[:len(candles)-1]
		if out, err := fn(prevIn); err == nil {
			bundle.Set("momentum_vector_prev", out.Value)
		}
	}
	bundle.Seal()
	return bundle
}

// advanceLadder feeds the scored targets into the state machine. Ladder
// failures degrade the cycle, never abort it.
func (e *Engine) advanceLadder(ctx context.Context, symbol string, side ladder.Side, row scoring.ActionableRow, atr float64, candles []market.Candle, now time.Time) {
	if len(row.Targets) < 3 || len(candles) == 0 || atr <= 0 {
		return
	}
	prevClose := 0.0
	if len(candles) > 1 {
		prevClose = candles[len(candles)-2].Close
	}
	_, err := e.ladders.Evaluate(ctx, ladder.Input{
		Symbol:    symbol,
		Side:      side,
		Price:     row.CurrentPrice,
		Targets:   [3]float64{row.Targets[0], row.Targets[1], row.Targets[2]},
		ATR:       atr,
		LastBar:   candles[len(candles)-1],
		PrevClose: prevClose,
		Now:       now,
	})
	if err != nil {
		e.log.Warnf("%s ladder evaluate failed: %v", symbol, err)
	}
}

// runAlerts evaluates the declarative batch against (prev, cur) samples
// and appends cleared fires to the event log.
func (e *Engine) runAlerts(ctx context.Context, symbol string, price float64, bundle *feature.Bundle, now time.Time) {
	cur := alert.Sample{Price: price, Bundle: bundle, At: now}

	e.mu.Lock()
	prev := e.lastSamples[symbol]
	e.lastSamples[symbol] = cur
	e.mu.Unlock()

	if e.evaluator == nil || e.rules == nil {
		return
	}
	rules := e.rules.Snapshot().Rules
	if len(rules) == 0 {
		return
	}
	events := e.evaluator.EvaluateBatch(ctx, symbol, rules, prev, cur, now)
	for _, evt := range events {
		if e.events != nil {
			if _, err := e.events.Append(ctx, evt); err != nil {
				e.log.Errorf("%s/%s event append failed: %v", evt.Symbol, evt.RuleID, err)
			}
		}
		if err := e.notify.SendText(notifier.FormatFireEvent(evt)); err != nil {
			e.log.Warnf("%s/%s alert notify failed: %v", evt.Symbol, evt.RuleID, err)
		}
	}
}

// Rows snapshots the latest actionable rows, sorted by symbol upstream.
func (e *Engine) Rows() []scoring.ActionableRow {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]scoring.ActionableRow, 0, len(e.rows))
	for _, row := range e.rows {
		out = append(out, row)
	}
	return out
}

// LastCycle reports when the previous cycle started; zero before the first.
func (e *Engine) LastCycle() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastCycle
}
