package app

import (
	"context"
	"fmt"
	"time"

	"tactix/internal/config"
	"tactix/internal/engine"
	"tactix/internal/logger"
	"tactix/internal/market"
	"tactix/internal/scheduler"
	"tactix/internal/store/eventlog"
	"tactix/internal/store/gormstore"
	livehttp "tactix/internal/transport/http/live"

	"golang.org/x/sync/errgroup"
)

// App owns application-level orchestration: config in, wired components
// out, one scheduler loop plus the optional HTTP surface.
type App struct {
	cfg    *config.Config
	store  *gormstore.GormStore
	events *eventlog.Store
	engine *engine.Engine
	http   *livehttp.Server
}

// New builds the application from config without starting it.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return build(cfg)
}

// Run drives the scheduler until ctx cancels.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	interval, ok := market.ParseIntervalDuration(a.cfg.Engine.Timeframe)
	if !ok {
		return fmt.Errorf("unsupported timeframe %q", a.cfg.Engine.Timeframe)
	}
	group, ctx := errgroup.WithContext(ctx)

	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("live http server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		sched := scheduler.NewAlignedScheduler(ctx, interval, time.Duration(a.cfg.Schedule.OffsetSeconds)*time.Second)
		sched.RunImmediately = a.cfg.Schedule.RunImmediately
		sched.Start(a.engine.RunCycle)
		return nil
	})

	return group.Wait()
}

// Engine exposes the orchestrator for replay and test harnesses.
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

// Close releases the stores.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.events != nil {
		a.events.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
