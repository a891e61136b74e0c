package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"hansu/internal/bus"
	"hansu/internal/gateway/notifier"
	"hansu/internal/logger"
	"hansu/internal/store"
	"hansu/internal/store/model"
	"hansu/internal/types"
)

// Reconciler projects executed orders onto positions. It only consumes
// order.executed events; unfilled or failed orders never touch a
// position. Cost basis is the quantity-weighted average of buy fill
// prices, computed with decimals so repeated averaging stays exact.
type Reconciler struct {
	store    store.Store
	bus      *bus.Bus
	notifier notifier.TextNotifier
	locks    *keyedMutex
}

func NewReconciler(st store.Store, b *bus.Bus, tn notifier.TextNotifier) *Reconciler {
	return &Reconciler{store: st, bus: b, notifier: tn, locks: newKeyedMutex()}
}

// Attach subscribes the reconciler to the bus.
func (r *Reconciler) Attach(b *bus.Bus) {
	b.Subscribe(bus.EvtOrderExecuted, func(evt bus.Event) {
		payload, ok := evt.Payload.(bus.OrderEvent)
		if !ok {
			logger.Errorf("对账器收到非法载荷 type=%T", evt.Payload)
			return
		}
		if err := r.Apply(context.Background(), evt.AccountID, evt.Symbol, payload); err != nil {
			logger.Errorf("[recon:%s] 持仓对账失败 %s: %v", evt.AccountID, evt.Symbol, err)
		}
	})
}

// Apply merges one executed order into the open position for
// (accountID, symbol), creating, updating or closing it.
func (r *Reconciler) Apply(ctx context.Context, accountID, symbol string, exec bus.OrderEvent) error {
	if exec.Quantity <= 0 || exec.Price <= 0 {
		return fmt.Errorf("成交数量/价格非法 qty=%d price=%.2f", exec.Quantity, exec.Price)
	}

	unlock := r.locks.Lock(lockKey(accountID, symbol))
	defer unlock()

	uow, err := r.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer func() { _ = uow.Rollback() }()

	pos, err := uow.Positions().FindOpen(ctx, accountID, symbol)
	if err != nil {
		return fmt.Errorf("查询持仓失败: %w", err)
	}

	var evtType bus.EventType
	switch exec.Side {
	case types.SideBuy:
		pos, evtType, err = r.applyBuy(ctx, uow, accountID, symbol, pos, exec)
	case types.SideSell:
		pos, evtType, err = r.applySell(ctx, uow, accountID, symbol, pos, exec)
	default:
		err = fmt.Errorf("非法方向 %q", exec.Side)
	}
	if err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}

	if r.bus != nil && evtType != "" {
		evt := bus.NewEvent(evtType, accountID, symbol, bus.PositionEvent{
			PositionID: fmt.Sprintf("%d", pos.ID),
			Quantity:   pos.Quantity,
			AvgCost:    pos.AvgCost,
			Realized:   pos.RealizedPnL,
		})
		if perr := r.bus.Publish(evt); perr != nil {
			logger.Errorf("发布事件 %s 失败: %v", evtType, perr)
		}
	}
	return nil
}

// 开仓兜底比例，委托与候选池都没给出止损/止盈水位时按成交价折算。
const (
	fallbackStopPct   = 0.9
	fallbackTargetPct = 1.2
)

func (r *Reconciler) applyBuy(ctx context.Context, uow store.UnitOfWork, accountID, symbol string, pos *model.PositionModel, exec bus.OrderEvent) (*model.PositionModel, bus.EventType, error) {
	nowMs := time.Now().UnixMilli()
	if pos == nil {
		stop, target, horizon := r.entryLevels(ctx, symbol, exec)
		pos = &model.PositionModel{
			AccountID:    accountID,
			Symbol:       symbol,
			Quantity:     exec.Quantity,
			AvgCost:      exec.Price,
			StopLoss:     stop,
			Target:       target,
			Horizon:      horizon,
			IsOpen:       1,
			OpenedAtUnix: nowMs,
		}
		if err := uow.Positions().Save(ctx, pos); err != nil {
			return nil, "", fmt.Errorf("新建持仓失败: %w", err)
		}
		logger.Infof("[recon:%s] 开仓 %s x%d @%.2f 止损 %.2f 止盈 %.2f",
			accountID, symbol, exec.Quantity, exec.Price, stop, target)
		return pos, bus.EvtPositionOpened, nil
	}

	pos.AvgCost = weightedAvg(pos.Quantity, pos.AvgCost, exec.Quantity, exec.Price)
	pos.Quantity += exec.Quantity
	if err := uow.Positions().Save(ctx, pos); err != nil {
		return nil, "", fmt.Errorf("加仓落库失败: %w", err)
	}
	logger.Infof("[recon:%s] 加仓 %s 至 x%d，均价 %.4f", accountID, symbol, pos.Quantity, pos.AvgCost)
	return pos, bus.EvtPositionUpdated, nil
}

func (r *Reconciler) applySell(ctx context.Context, uow store.UnitOfWork, accountID, symbol string, pos *model.PositionModel, exec bus.OrderEvent) (*model.PositionModel, bus.EventType, error) {
	if pos == nil {
		// 数据完整性故障：本地没有可对应的持仓却收到了卖出成交。
		msg := fmt.Sprintf("卖出成交无对应持仓 account=%s symbol=%s qty=%d，需要人工核对",
			accountID, symbol, exec.Quantity)
		logger.Errorf("[recon:%s] %s", accountID, msg)
		r.notify("⚠️ " + msg)
		return nil, "", fmt.Errorf("数据完整性故障: %s", msg)
	}

	qty := exec.Quantity
	if qty > pos.Quantity {
		logger.Errorf("[recon:%s] 卖出数量 %d 超过持仓 %d (%s)，按持仓数量处理",
			accountID, qty, pos.Quantity, symbol)
		r.notify(fmt.Sprintf("⚠️ 卖出超额 %s：回报 %d / 持仓 %d", symbol, qty, pos.Quantity))
		qty = pos.Quantity
	}

	realized := decimal.NewFromFloat(exec.Price).
		Sub(decimal.NewFromFloat(pos.AvgCost)).
		Mul(decimal.NewFromInt(qty))
	pos.RealizedPnL, _ = decimal.NewFromFloat(pos.RealizedPnL).Add(realized).Round(4).Float64()
	pos.Quantity -= qty

	evtType := bus.EvtPositionUpdated
	if pos.Quantity == 0 {
		pos.IsOpen = 0
		pos.ClosedAtUnix = time.Now().UnixMilli()
		evtType = bus.EvtPositionClosed
		logger.Infof("[recon:%s] 平仓 %s，已实现盈亏 %.2f", accountID, symbol, pos.RealizedPnL)
	} else {
		logger.Infof("[recon:%s] 减仓 %s 至 x%d", accountID, symbol, pos.Quantity)
	}
	if err := uow.Positions().Save(ctx, pos); err != nil {
		return nil, "", fmt.Errorf("减仓落库失败: %w", err)
	}
	return pos, evtType, nil
}

// entryLevels resolves stop, target and horizon for a fresh position:
// the order's own levels win, then the candidate record, then a fixed
// percentage off the fill price. A position must never open without an
// exit level, otherwise exit management has nothing to act on.
func (r *Reconciler) entryLevels(ctx context.Context, symbol string, exec bus.OrderEvent) (float64, float64, types.Horizon) {
	stop, target, horizon := exec.StopLoss, exec.Target, exec.Horizon
	if stop <= 0 || target <= 0 || horizon == "" {
		cand, err := r.store.Candidates().Find(ctx, symbol)
		if err != nil {
			logger.Warnf("[recon] 候选池查询失败 %s: %v", symbol, err)
		} else if cand != nil {
			if stop <= 0 {
				stop = cand.StopLoss
			}
			if target <= 0 {
				target = cand.Target
			}
			if horizon == "" {
				horizon = cand.Horizon
			}
		}
	}
	if stop <= 0 {
		stop = exec.Price * fallbackStopPct
	}
	if target <= 0 {
		target = exec.Price * fallbackTargetPct
	}
	if horizon == "" {
		horizon = types.HorizonShort
	}
	return stop, target, horizon
}

// weightedAvg returns the quantity-weighted average cost after adding
// addQty shares at addPrice, rounded to 4 decimal places.
func weightedAvg(oldQty int64, oldAvg float64, addQty int64, addPrice float64) float64 {
	total := decimal.NewFromInt(oldQty).Add(decimal.NewFromInt(addQty))
	if total.IsZero() {
		return addPrice
	}
	sum := decimal.NewFromFloat(oldAvg).Mul(decimal.NewFromInt(oldQty)).
		Add(decimal.NewFromFloat(addPrice).Mul(decimal.NewFromInt(addQty)))
	out, _ := sum.Div(total).Round(4).Float64()
	return out
}

func (r *Reconciler) notify(text string) {
	if r.notifier == nil {
		return
	}
	go func() {
		if err := r.notifier.SendText(text); err != nil {
			logger.Warnf("通知发送失败: %v", err)
		}
	}()
}
