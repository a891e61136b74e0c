package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hansu/internal/bus"
	"hansu/internal/config"
	"hansu/internal/engine"
	"hansu/internal/gateway/kis"
	"hansu/internal/gateway/notifier"
	"hansu/internal/logger"
	"hansu/internal/store"
	"hansu/internal/store/eventlog"
	"hansu/internal/store/gormstore"
	"hansu/internal/strategy"
	"hansu/internal/stream"
	livehttp "hansu/internal/transport/http/live"
	"hansu/internal/types"
)

func build(cfg *config.Config) (*App, error) {
	path := strings.TrimSpace(cfg.Store.Path)
	if path == "" {
		return nil, fmt.Errorf("store.path 未配置，无法初始化存储")
	}
	gormStore, err := gormstore.NewGormStore(path)
	if err != nil {
		return nil, fmt.Errorf("初始化 gorm 存储失败: %w", err)
	}

	var events *eventlog.Store
	if p := strings.TrimSpace(cfg.Store.EventLogPath); p != "" {
		events, err = eventlog.New(p)
		if err != nil {
			return nil, fmt.Errorf("初始化事件审计库失败: %w", err)
		}
	}

	b := bus.New()
	if events != nil {
		events.Attach(b)
	}

	textNotifier := notifier.FromConfig(cfg.Notify)

	gate := engine.NewRiskGate(gormStore, cfg.Risk)
	orders := engine.NewOrderService(gormStore, gate, b, textNotifier)
	engine.NewReconciler(gormStore, b, textNotifier).Attach(b)

	entry, err := strategy.NewEntryStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	accounts, streams, err := buildAccounts(cfg, gormStore, b, orders)
	if err != nil {
		return nil, err
	}

	trading := engine.NewTradingService(cfg, gormStore, orders, entry, b, accounts)

	prices := engine.NewPriceCache()
	prices.Attach(b)

	router := &livehttp.Router{
		Store:   gormStore,
		Trading: trading,
		Orders:  orders,
		Events:  events,
		Streams: streams,
		Prices:  prices,
	}
	server, err := livehttp.NewServer(cfg.App.HTTPAddr, router)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		store:    gormStore,
		events:   events,
		bus:      b,
		trading:  trading,
		orders:   orders,
		streams:  streams,
		liveHTTP: server,
		summary:  buildSummary(cfg, accounts, entry, textNotifier),
	}, nil
}

// buildAccounts creates one broker client and one push supervisor per
// active account. Fills from the push channel land in the order service
// off the read loop so the websocket never stalls on the database.
func buildAccounts(cfg *config.Config, st store.Store, b *bus.Bus, orders *engine.OrderService) ([]*engine.AccountRuntime, map[string]*stream.Supervisor, error) {
	var runtimes []*engine.AccountRuntime
	streams := make(map[string]*stream.Supervisor)
	for _, entry := range cfg.Accounts {
		if !entry.Active {
			logger.Infof("[app] 账户 %s 未激活，跳过", entry.ID)
			continue
		}
		client, err := kis.NewClient(entry, cfg.KIS)
		if err != nil {
			return nil, nil, fmt.Errorf("账户 %s 初始化失败: %w", entry.ID, err)
		}
		runtimes = append(runtimes, &engine.AccountRuntime{Entry: entry, Broker: client})
		sup := stream.NewSupervisor(entry, cfg.Stream, client, func(fill types.Fill) {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := orders.ApplyFill(ctx, fill); err != nil {
					logger.Errorf("[app] 成交回报处理失败 broker_order_id=%s: %v", fill.BrokerOrderID, err)
				}
			}()
		})
		accountID := entry.ID
		// 每次重连重新取一遍持仓标的，行情订阅跟着仓位走。
		sup.SetTicks(func() []string {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			positions, err := st.Positions().ListOpen(ctx, accountID)
			if err != nil {
				logger.Warnf("[app] 行情订阅标的查询失败 %s: %v", accountID, err)
				return nil
			}
			symbols := make([]string, 0, len(positions))
			for _, pos := range positions {
				symbols = append(symbols, pos.Symbol)
			}
			return symbols
		}, func(symbol string, price float64) {
			b.TryPublish(bus.NewEvent(bus.EvtPriceTick, accountID, symbol, bus.PriceTick{Price: price}))
		})
		streams[entry.ID] = sup
	}
	if len(runtimes) == 0 {
		return nil, nil, fmt.Errorf("没有激活的账户")
	}
	return runtimes, streams, nil
}
