package app

import (
	"fmt"
	"time"

	"tactix/internal/alert"
	"tactix/internal/config"
	"tactix/internal/engine"
	"tactix/internal/feature"
	"tactix/internal/fusion"
	"tactix/internal/fusion/signals"
	"tactix/internal/ladder"
	"tactix/internal/logger"
	"tactix/internal/market"
	"tactix/internal/notifier"
	"tactix/internal/scoring"
	"tactix/internal/store/eventlog"
	"tactix/internal/store/gormstore"
	livehttp "tactix/internal/transport/http/live"
)

// build wires every component by hand. Construction order follows the
// dependency chain: stores first, then the registry and engines, the
// orchestrator last. Any failure aborts startup.
func build(cfg *config.Config) (*App, error) {
	store, err := gormstore.NewGormStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	events, err := eventlog.NewStore(cfg.Alerts.EventLogPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open event log: %w", err)
	}

	registry := feature.NewRegistry(signals.Provider)
	registry.Build(false)
	for _, c := range registry.Conflicts() {
		logger.Warnf("feature %s: kept %s, dropped %s", c.Name, c.Kept, c.Losing)
	}

	fusionEngine, err := fusion.NewEngine(registry, cfg.Fusion)
	if err != nil {
		closeAll(store, events)
		return nil, fmt.Errorf("fusion engine: %w", err)
	}

	clock := market.SessionClock(market.UTCSessionClock{})
	if cfg.Ladder.SessionOffsetHours != 0 {
		clock = market.OffsetSessionClock{Offset: time.Duration(cfg.Ladder.SessionOffsetHours) * time.Hour}
	}
	machine, err := ladder.NewMachine(cfg.Ladder.Machine, store, clock)
	if err != nil {
		closeAll(store, events)
		return nil, fmt.Errorf("ladder machine: %w", err)
	}

	evaluator, err := alert.NewEvaluator(store)
	if err != nil {
		closeAll(store, events)
		return nil, fmt.Errorf("alert evaluator: %w", err)
	}

	var rules *alert.Registry
	if cfg.Alerts.RulesPath != "" {
		rules, err = alert.NewRegistry(cfg.Alerts.RulesPath)
		if err != nil {
			closeAll(store, events)
			return nil, fmt.Errorf("alert rules: %w", err)
		}
	}

	var notify notifier.TextNotifier = notifier.Noop{}
	if cfg.Notify.Telegram.Enabled {
		notify = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
	}

	source := market.NewBinanceSource(market.BinanceConfig{
		RESTBaseURL: cfg.Market.RESTBaseURL,
		HTTPTimeout: cfg.Market.HTTPTimeout(),
	})

	eng, err := engine.New(cfg.Engine, engine.Deps{
		Source:    source,
		Registry:  registry,
		Fusion:    fusionEngine,
		Scorer:    scoring.NewEngine(cfg.Scoring),
		Ladders:   machine,
		Evaluator: evaluator,
		Rules:     rules,
		Events:    events,
		Notify:    notify,
		Positions: engine.NewStaticPositions(cfg.Positions),
	})
	if err != nil {
		closeAll(store, events)
		return nil, fmt.Errorf("engine: %w", err)
	}

	var httpSrv *livehttp.Server
	if cfg.HTTP.Enabled {
		httpSrv, err = livehttp.NewServer(livehttp.Config{
			Addr:   cfg.HTTP.Addr,
			Engine: eng,
			Store:  store,
			Events: events,
		})
		if err != nil {
			closeAll(store, events)
			return nil, fmt.Errorf("live http: %w", err)
		}
	}

	return &App{
		cfg:    cfg,
		store:  store,
		events: events,
		engine: eng,
		http:   httpSrv,
	}, nil
}

func closeAll(store *gormstore.GormStore, events *eventlog.Store) {
	if store != nil {
		store.Close()
	}
	if events != nil {
		events.Close()
	}
}
