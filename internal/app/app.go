// Package app wires configuration, storage, broker clients, the trading
// engine and the realtime channels into one runnable service.
package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"hansu/internal/bus"
	"hansu/internal/config"
	"hansu/internal/engine"
	"hansu/internal/logger"
	"hansu/internal/scheduler"
	"hansu/internal/store"
	"hansu/internal/store/eventlog"
	"hansu/internal/stream"
	livehttp "hansu/internal/transport/http/live"
)

// App 持有全部已装配的组件，Run 启动并阻塞到退出。
type App struct {
	cfg      *config.Config
	store    store.Store
	events   *eventlog.Store
	bus      *bus.Bus
	trading  *engine.TradingService
	orders   *engine.OrderService
	streams  map[string]*stream.Supervisor
	liveHTTP *livehttp.Server
	summary  *StartupSummary
}

// New builds the application from config without starting anything.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return build(cfg)
}

// Run starts every component and blocks until ctx is canceled or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}

	a.bus.Start()
	defer a.bus.Stop()
	defer a.store.Close()
	if a.events != nil {
		defer a.events.Close()
	}

	// 启动时先用券商余额对齐本地持仓，再进入交易循环。
	for _, id := range a.trading.AccountIDs() {
		syncCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := a.trading.SyncPositions(syncCtx, id); err != nil {
			logger.Warnf("[app] 启动持仓对账失败 account=%s: %v", id, err)
		}
		cancel()
	}

	if a.summary != nil {
		a.summary.Print()
		a.summary.Notify()
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.liveHTTP.Start(ctx); err != nil {
			return fmt.Errorf("live http server error: %w", err)
		}
		return nil
	})

	for id, sup := range a.streams {
		sup := sup
		logger.Infof("[app] 启动实时回报通道 account=%s", id)
		group.Go(func() error {
			sup.Run(ctx)
			return nil
		})
	}

	if a.cfg.Cycle.Enabled {
		interval := time.Duration(a.cfg.Cycle.IntervalHours) * time.Hour
		offset := time.Duration(a.cfg.Cycle.OffsetMinutes) * time.Minute
		sched := scheduler.NewAlignedScheduler(ctx, interval, offset)
		group.Go(func() error {
			sched.Start(func() { a.trading.RunAll(ctx) })
			return nil
		})
	} else {
		logger.Infof("[app] 内置调度器关闭，交易周期由外部触发 (POST /api/cycle/run)")
	}

	return group.Wait()
}

// TradingService exposes the engine for replay and test harnesses.
func (a *App) TradingService() *engine.TradingService {
	if a == nil {
		return nil
	}
	return a.trading
}
