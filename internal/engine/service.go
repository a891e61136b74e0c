package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hansu/internal/bus"
	"hansu/internal/config"
	"hansu/internal/gateway"
	"hansu/internal/logger"
	"hansu/internal/store"
	"hansu/internal/store/model"
	"hansu/internal/strategy"
	"hansu/internal/types"
)

// AccountRuntime binds one configured account to its broker client.
type AccountRuntime struct {
	Entry  config.AccountEntry
	Broker gateway.Broker
}

// TradingService drives the periodic trading cycle per account: exit
// management first, then mode-dependent entries. Cycles for the same
// account never overlap; a cycle that is still running makes the next
// trigger a no-op.
type TradingService struct {
	cfg    *config.Config
	store  store.Store
	orders *OrderService
	sizer  *strategy.Sizer
	entry  strategy.EntryStrategy
	dca    *strategy.DCAPlanner
	bus    *bus.Bus

	accounts map[string]*AccountRuntime
	order    []string

	cycleMu sync.Map // accountID -> *sync.Mutex
}

func NewTradingService(cfg *config.Config, st store.Store, orders *OrderService, entry strategy.EntryStrategy, b *bus.Bus, accounts []*AccountRuntime) *TradingService {
	svc := &TradingService{
		cfg:      cfg,
		store:    st,
		orders:   orders,
		sizer:    strategy.NewSizer(cfg.Risk),
		entry:    entry,
		dca:      strategy.NewDCAPlanner(cfg.Strategy.DCA),
		bus:      b,
		accounts: make(map[string]*AccountRuntime, len(accounts)),
	}
	for _, rt := range accounts {
		svc.accounts[rt.Entry.ID] = rt
		svc.order = append(svc.order, rt.Entry.ID)
	}
	return svc
}

func (s *TradingService) Account(id string) (*AccountRuntime, bool) {
	rt, ok := s.accounts[id]
	return rt, ok
}

func (s *TradingService) AccountIDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// RunAll runs one cycle for every active account sequentially.
func (s *TradingService) RunAll(ctx context.Context) {
	for _, id := range s.order {
		if ctx.Err() != nil {
			return
		}
		if err := s.RunTradingCycle(ctx, id); err != nil {
			logger.Errorf("[cycle:%s] 交易周期失败: %v", id, err)
		}
	}
}

// RunTradingCycle runs one full cycle for one account.
func (s *TradingService) RunTradingCycle(ctx context.Context, accountID string) error {
	rt, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("未知账户: %s", accountID)
	}

	mu := s.mutexFor(accountID)
	if !mu.TryLock() {
		logger.Warnf("[cycle:%s] 上一周期仍在运行，跳过本次触发", accountID)
		return nil
	}
	defer mu.Unlock()

	if !rt.Broker.MarketOpen(ctx) {
		logger.Infof("[cycle:%s] 市场休市，跳过", accountID)
		return nil
	}

	start := time.Now()
	logger.Infof("[cycle:%s] 交易周期开始", accountID)

	bal, err := rt.Broker.Balance(ctx)
	if err != nil {
		return fmt.Errorf("余额查询失败: %w", err)
	}

	market, err := s.marketState(ctx, rt)
	if err != nil {
		return fmt.Errorf("市场模式判定失败: %w", err)
	}
	logger.Infof("[cycle:%s] 市场模式 %s，总资产 %.0f，可用 %.0f",
		accountID, market.Mode, bal.TotalAssets, bal.OrderableCash)

	s.manageExits(ctx, rt)

	switch market.Mode {
	case types.ModeShortTerm:
		s.runShortTermEntries(ctx, rt, bal, market)
	case types.ModeAccumulation:
		s.runAccumulation(ctx, rt, bal, market)
	}

	logger.Infof("[cycle:%s] 交易周期结束，耗时 %v", accountID, time.Since(start).Round(time.Millisecond))
	return nil
}

func (s *TradingService) mutexFor(accountID string) *sync.Mutex {
	v, _ := s.cycleMu.LoadOrStore(accountID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *TradingService) marketState(ctx context.Context, rt *AccountRuntime) (types.MarketState, error) {
	period := s.cfg.Strategy.ModeMAPeriod
	days := period * 2
	if days < 120 {
		days = 120
	}
	benchmark, err := rt.Broker.IndexDailyCandles(ctx, s.cfg.Strategy.BenchmarkSymbol, days)
	if err != nil {
		return types.MarketState{}, err
	}
	return types.MarketState{
		Mode:      strategy.DetermineMode(benchmark, period),
		Benchmark: benchmark,
	}, nil
}

// manageExits walks open positions and sells the ones whose stop or
// target is hit. Short-horizon positions honor both levels; long-horizon
// ones only trail the stop.
func (s *TradingService) manageExits(ctx context.Context, rt *AccountRuntime) {
	accountID := rt.Entry.ID
	positions, err := s.store.Positions().ListOpen(ctx, accountID)
	if err != nil {
		logger.Errorf("[cycle:%s] 持仓查询失败: %v", accountID, err)
		return
	}
	for _, pos := range positions {
		quote, err := rt.Broker.Quote(ctx, pos.Symbol)
		if err != nil {
			logger.Warnf("[cycle:%s] 现价查询失败 %s: %v", accountID, pos.Symbol, err)
			continue
		}
		s.trailStop(ctx, &pos, quote.Price)
		reason := exitReason(pos, quote.Price)
		if reason == "" {
			continue
		}
		intent := types.Intent{
			AccountID: accountID,
			Symbol:    pos.Symbol,
			Side:      types.SideSell,
			Quantity:  pos.Quantity,
			Price:     quote.Price,
			Horizon:   pos.Horizon,
			Strategy:  "exit",
			Reason:    reason,
		}
		if _, err := s.orders.Submit(ctx, rt.Broker, intent); err != nil {
			logger.Warnf("[cycle:%s] 离场委托失败 %s: %v", accountID, pos.Symbol, err)
		}
	}
}

// trailStop raises a long-horizon stop as price advances. The stop only
// moves up; pullbacks then hit the raised level in exitReason.
func (s *TradingService) trailStop(ctx context.Context, pos *model.PositionModel, price float64) {
	pct := s.cfg.Strategy.TrailPct
	if pct <= 0 || pct >= 1 || pos.Horizon != types.HorizonLong || pos.StopLoss <= 0 {
		return
	}
	trailed := price * (1 - pct)
	if trailed <= pos.StopLoss {
		return
	}
	old := pos.StopLoss
	pos.StopLoss = trailed
	if err := s.store.Positions().Save(ctx, pos); err != nil {
		logger.Warnf("[cycle:%s] 移动止损保存失败 %s: %v", pos.AccountID, pos.Symbol, err)
		pos.StopLoss = old
		return
	}
	logger.Infof("[cycle:%s] 移动止损上调 %s: %.0f -> %.0f", pos.AccountID, pos.Symbol, old, trailed)
}

func exitReason(pos model.PositionModel, price float64) string {
	if pos.StopLoss > 0 && price <= pos.StopLoss {
		return fmt.Sprintf("止损触发：现价 %.0f <= %.0f", price, pos.StopLoss)
	}
	if pos.Horizon == types.HorizonShort && pos.Target > 0 && price >= pos.Target {
		return fmt.Sprintf("止盈触发：现价 %.0f >= %.0f", price, pos.Target)
	}
	return ""
}

// runShortTermEntries evaluates short-horizon candidates through the
// configured entry strategy and sizes approved entries by stop distance.
func (s *TradingService) runShortTermEntries(ctx context.Context, rt *AccountRuntime, bal types.BalanceSummary, market types.MarketState) {
	accountID := rt.Entry.ID
	cands, err := s.store.Candidates().ListInvestable(ctx, string(types.HorizonShort))
	if err != nil {
		logger.Errorf("[cycle:%s] 候选池查询失败: %v", accountID, err)
		return
	}
	openRisk := s.currentOpenRisk(ctx, accountID)

	for _, row := range cands {
		if ctx.Err() != nil {
			return
		}
		if open, err := s.store.Positions().FindOpen(ctx, accountID, row.Symbol); err != nil || open != nil {
			continue
		}
		cand := candidateFromModel(row)
		history, err := rt.Broker.DailyCandles(ctx, cand.Symbol, 160)
		if err != nil {
			logger.Warnf("[cycle:%s] 日线查询失败 %s: %v", accountID, cand.Symbol, err)
			continue
		}
		signal := s.entry.Evaluate(cand, history, market)
		if !signal.Enter {
			continue
		}
		quote, err := rt.Broker.Quote(ctx, cand.Symbol)
		if err != nil {
			logger.Warnf("[cycle:%s] 现价查询失败 %s: %v", accountID, cand.Symbol, err)
			continue
		}
		stop := cand.StopLoss
		if stop <= 0 {
			if atr, ok := strategy.LastATR(history, s.cfg.Strategy.ATRPeriod); ok {
				stop = quote.Price - atr*s.cfg.Strategy.StopATRMult
			}
		}
		qty := s.sizer.Size(bal.TotalAssets, openRisk, quote.Price, stop)
		if qty <= 0 {
			logger.Debugf("[cycle:%s] %s 风险预算不足，跳过", accountID, cand.Symbol)
			continue
		}
		intent := types.Intent{
			AccountID: accountID,
			Symbol:    cand.Symbol,
			Side:      types.SideBuy,
			Quantity:  qty,
			Price:     quote.Price,
			StopLoss:  stop,
			Target:    cand.Target,
			Horizon:   types.HorizonShort,
			Strategy:  s.entry.Name(),
			Reason:    signal.Reason,
		}
		if _, err := s.orders.Submit(ctx, rt.Broker, intent); err != nil {
			logger.Warnf("[cycle:%s] 入场委托失败 %s: %v", accountID, cand.Symbol, err)
			continue
		}
		openRisk += s.sizer.OpenRisk(qty, quote.Price, stop)
	}
}

// runAccumulation stages one tranche into the weakest long-horizon
// holding, or a fresh long candidate when nothing is held yet.
func (s *TradingService) runAccumulation(ctx context.Context, rt *AccountRuntime, bal types.BalanceSummary, market types.MarketState) {
	accountID := rt.Entry.ID
	symbol := s.pickAccumulationTarget(ctx, accountID)
	if symbol == "" {
		logger.Infof("[cycle:%s] 无可积累标的", accountID)
		return
	}
	history, err := rt.Broker.DailyCandles(ctx, symbol, s.cfg.Strategy.DCA.MAPeriod+40)
	if err != nil {
		logger.Warnf("[cycle:%s] 日线查询失败 %s: %v", accountID, symbol, err)
		return
	}
	quote, err := rt.Broker.Quote(ctx, symbol)
	if err != nil {
		logger.Warnf("[cycle:%s] 现价查询失败 %s: %v", accountID, symbol, err)
		return
	}
	amount, reason, ok := s.dca.Plan(history, quote.Price)
	if !ok {
		logger.Infof("[cycle:%s] %s 未触发分批买入条件", accountID, symbol)
		return
	}
	qty := int64(amount / quote.Price)
	if qty <= 0 {
		return
	}
	intent := types.Intent{
		AccountID: accountID,
		Symbol:    symbol,
		Side:      types.SideBuy,
		Quantity:  qty,
		Price:     quote.Price,
		Horizon:   types.HorizonLong,
		Strategy:  "dca",
		Reason:    reason,
	}
	if _, err := s.orders.Submit(ctx, rt.Broker, intent); err != nil {
		logger.Warnf("[cycle:%s] 分批买入委托失败 %s: %v", accountID, symbol, err)
	}
}

// pickAccumulationTarget prefers the open long-horizon position with the
// smallest invested amount, falling back to a fresh long candidate.
func (s *TradingService) pickAccumulationTarget(ctx context.Context, accountID string) string {
	positions, err := s.store.Positions().ListOpen(ctx, accountID)
	if err != nil {
		logger.Errorf("[cycle:%s] 持仓查询失败: %v", accountID, err)
		return ""
	}
	best := ""
	bestInvested := 0.0
	for _, pos := range positions {
		if pos.Horizon != types.HorizonLong {
			continue
		}
		invested := float64(pos.Quantity) * pos.AvgCost
		if best == "" || invested < bestInvested {
			best, bestInvested = pos.Symbol, invested
		}
	}
	if best != "" {
		return best
	}
	cands, err := s.store.Candidates().ListInvestable(ctx, string(types.HorizonLong))
	if err != nil || len(cands) == 0 {
		return ""
	}
	return cands[0].Symbol
}

func (s *TradingService) currentOpenRisk(ctx context.Context, accountID string) float64 {
	positions, err := s.store.Positions().ListOpen(ctx, accountID)
	if err != nil {
		logger.Errorf("[cycle:%s] 持仓查询失败: %v", accountID, err)
		return 0
	}
	total := 0.0
	for _, pos := range positions {
		total += s.sizer.OpenRisk(pos.Quantity, pos.AvgCost, pos.StopLoss)
	}
	return total
}

func candidateFromModel(m model.CandidateModel) types.Candidate {
	return types.Candidate{
		Symbol:     m.Symbol,
		Name:       m.Name,
		Horizon:    m.Horizon,
		StopLoss:   m.StopLoss,
		Target:     m.Target,
		LastPrice:  m.LastPrice,
		ATR:        m.ATR,
		Investable: m.Investable == 1,
		UpdatedAt:  time.UnixMilli(m.UpdatedAtUnix),
	}
}
