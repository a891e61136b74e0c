package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"hansu/internal/bus"
	"hansu/internal/gateway"
	"hansu/internal/gateway/kis"
	"hansu/internal/gateway/notifier"
	"hansu/internal/logger"
	"hansu/internal/store"
	"hansu/internal/store/model"
	"hansu/internal/types"
)

// ErrRiskRejected marks an intent the risk gate refused. The order row is
// still persisted (FAILED) for the audit trail.
var ErrRiskRejected = errors.New("风控拒绝")

// OrderService owns the order state machine:
//
//	CREATED -> PENDING -> EXECUTED
//	                   -> FAILED
//	                   -> CANCELED
//
// The PENDING row is persisted before any remote call, risk assessment
// included, so a crash between persist and ack leaves a visible
// in-flight order instead of an untracked one. Mutations are serialized
// per (account, symbol).
type OrderService struct {
	store    store.Store
	gate     *RiskGate
	bus      *bus.Bus
	notifier notifier.TextNotifier
	locks    *keyedMutex
}

func NewOrderService(st store.Store, gate *RiskGate, b *bus.Bus, tn notifier.TextNotifier) *OrderService {
	return &OrderService{
		store:    st,
		gate:     gate,
		bus:      b,
		notifier: tn,
		locks:    newKeyedMutex(),
	}
}

// Submit persists an intent as a PENDING order, runs it through the
// risk gate and, if approved, places it with the broker. The returned
// order reflects the terminal state of this call; for an acked order
// that is still PENDING.
func (s *OrderService) Submit(ctx context.Context, broker gateway.Broker, intent types.Intent) (*model.OrderModel, error) {
	unlock := s.locks.Lock(lockKey(intent.AccountID, intent.Symbol))
	defer unlock()

	order := &model.OrderModel{
		ID:        uuid.NewString(),
		AccountID: intent.AccountID,
		Symbol:    intent.Symbol,
		Side:      intent.Side,
		Status:    types.OrderStatusCreated,
		Quantity:  intent.Quantity,
		Price:     intent.Price,
		StopLoss:  intent.StopLoss,
		Target:    intent.Target,
		Horizon:   intent.Horizon,
		Strategy:  intent.Strategy,
		Reason:    intent.Reason,
	}

	// 同一 (账户, 标的, 方向) 只允许一笔在途订单。落库前先查，
	// 否则自己的 CREATED 行会撞上在途订单唯一索引。
	pending, err := s.store.Orders().FindPending(ctx, intent.AccountID, intent.Symbol, string(intent.Side))
	if err != nil {
		return nil, fmt.Errorf("查询在途订单失败: %w", err)
	}
	if pending != nil {
		order.Status = types.OrderStatusFailed
		order.Message = fmt.Sprintf("%s: 存在在途订单 %s (%s %s)",
			ViolationDuplicateOrder, pending.ID, intent.Symbol, intent.Side)
		if serr := s.store.Orders().Save(ctx, order); serr != nil {
			logger.Errorf("[order:%s] 重复拒单落库失败: %v", intent.AccountID, serr)
		}
		logger.Warnf("[order:%s] 重复委托拒绝 %s %s x%d: %s",
			intent.AccountID, intent.Side, intent.Symbol, intent.Quantity, order.Message)
		s.publishOrder(bus.EvtOrderFailed, order)
		return order, fmt.Errorf("%w: %s", ErrRiskRejected, order.Message)
	}

	if err := s.store.Orders().Save(ctx, order); err != nil {
		return nil, fmt.Errorf("订单落库失败: %w", err)
	}
	s.publishOrder(bus.EvtOrderCreated, order)

	// 风控评估要触达券商余额接口，先把 PENDING 落库再评估，
	// 评估中途崩溃也能留下可见的在途记录。
	order.Status = types.OrderStatusPending
	if err := s.store.Orders().Save(ctx, order); err != nil {
		return nil, fmt.Errorf("订单状态更新失败: %w", err)
	}

	assessment := s.gate.Assess(ctx, broker, intent, order.ID)
	if !assessment.OK {
		order.Status = types.OrderStatusFailed
		order.Message = assessment.Reason()
		if err := s.store.Orders().Save(ctx, order); err != nil {
			logger.Errorf("[order:%s] 风控拒单落库失败: %v", intent.AccountID, err)
		}
		logger.Warnf("[order:%s] 风控拒绝 %s %s x%d: %s",
			intent.AccountID, intent.Side, intent.Symbol, intent.Quantity, order.Message)
		s.publishOrder(bus.EvtOrderFailed, order)
		return order, fmt.Errorf("%w: %s", ErrRiskRejected, order.Message)
	}

	ack, err := broker.PlaceOrder(ctx, intent.Symbol, intent.Side, intent.Quantity, intent.Price)
	if err != nil {
		if kis.IsBusinessError(err) {
			// 券商明确拒单，终态 FAILED。
			order.Status = types.OrderStatusFailed
			order.Message = err.Error()
			if serr := s.store.Orders().Save(ctx, order); serr != nil {
				logger.Errorf("[order:%s] 拒单落库失败: %v", intent.AccountID, serr)
			}
			s.publishOrder(bus.EvtOrderFailed, order)
			s.notify(fmt.Sprintf("❌ 委托被拒 %s %s x%d\n%s", intent.Side, intent.Symbol, intent.Quantity, order.Message))
			return order, err
		}
		// 传输层失败拿不到回执单号，成交回报无从匹配这笔订单，
		// 直接终态 FAILED 并告警，券商侧是否受理由人工核对。
		order.Status = types.OrderStatusFailed
		order.Message = fmt.Sprintf("下单无响应: %v", err)
		if serr := s.store.Orders().Save(ctx, order); serr != nil {
			logger.Errorf("[order:%s] 无响应拒单落库失败: %v", intent.AccountID, serr)
		}
		logger.Errorf("[order:%s] 下单无响应，订单 %s 转 FAILED: %v", intent.AccountID, order.ID, err)
		s.publishOrder(bus.EvtOrderFailed, order)
		s.notify(fmt.Sprintf("⚠️ 下单无响应 %s %s x%d，订单已置 FAILED，请核对券商侧是否已受理", intent.Side, intent.Symbol, intent.Quantity))
		return order, err
	}

	order.BrokerOrderID = ack.OrderID
	order.Message = ack.Message
	if err := s.store.Orders().Save(ctx, order); err != nil {
		logger.Errorf("[order:%s] 回执落库失败 broker_order_id=%s: %v", intent.AccountID, ack.OrderID, err)
	}
	logger.Infof("[order:%s] 已受理 %s %s x%d @%.0f broker_order_id=%s",
		intent.AccountID, intent.Side, intent.Symbol, intent.Quantity, intent.Price, ack.OrderID)
	return order, nil
}

// ApplyFill transitions an order to EXECUTED from an execution report.
// Both the websocket push and any polling fallback land here, deduped by
// broker order id: the first report wins, later conflicting reports are
// logged and dropped.
func (s *OrderService) ApplyFill(ctx context.Context, fill types.Fill) error {
	if fill.BrokerOrderID == "" {
		return fmt.Errorf("成交回报缺少券商订单号")
	}

	order, err := s.store.Orders().FindByBrokerOrderID(ctx, fill.AccountID, fill.BrokerOrderID)
	if err != nil {
		return fmt.Errorf("查询订单失败 broker_order_id=%s: %w", fill.BrokerOrderID, err)
	}
	if order == nil {
		logger.Warnf("[order:%s] 未匹配的成交回报 broker_order_id=%s symbol=%s，忽略",
			fill.AccountID, fill.BrokerOrderID, fill.Symbol)
		return nil
	}

	unlock := s.locks.Lock(lockKey(order.AccountID, order.Symbol))
	defer unlock()

	// 锁内重读，避免与并发回报竞争。
	order, err = s.store.Orders().FindByBrokerOrderID(ctx, fill.AccountID, fill.BrokerOrderID)
	if err != nil || order == nil {
		return err
	}

	if order.Status.Terminal() {
		if order.Status == types.OrderStatusExecuted &&
			(order.FilledQty != fill.Quantity || order.FilledPrice != fill.Price) {
			logger.Errorf("[order:%s] 成交回报冲突 broker_order_id=%s：已记录 qty=%d price=%.0f，新回报 qty=%d price=%.0f，保留先到记录",
				fill.AccountID, fill.BrokerOrderID, order.FilledQty, order.FilledPrice, fill.Quantity, fill.Price)
		} else {
			logger.Debugf("[order:%s] 重复成交回报 broker_order_id=%s，忽略", fill.AccountID, fill.BrokerOrderID)
		}
		return nil
	}

	order.Status = types.OrderStatusExecuted
	order.FilledQty = fill.Quantity
	order.FilledPrice = fill.Price
	if err := s.store.Orders().Save(ctx, order); err != nil {
		return fmt.Errorf("成交落库失败 broker_order_id=%s: %w", fill.BrokerOrderID, err)
	}

	logger.Infof("[order:%s] 成交 %s %s x%d @%.0f broker_order_id=%s",
		order.AccountID, order.Side, order.Symbol, fill.Quantity, fill.Price, fill.BrokerOrderID)
	s.publishOrder(bus.EvtOrderExecuted, order)
	s.notify(fmt.Sprintf("✅ 成交 %s %s x%d @%.0f", order.Side, order.Symbol, fill.Quantity, fill.Price))
	return nil
}

// Cancel marks an in-flight order CANCELED. This only mutates local
// state; cancellation with the broker is an operator action.
func (s *OrderService) Cancel(ctx context.Context, orderID, reason string) error {
	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("订单不存在: %s", orderID)
	}

	unlock := s.locks.Lock(lockKey(order.AccountID, order.Symbol))
	defer unlock()

	order, err = s.store.Orders().FindByID(ctx, orderID)
	if err != nil || order == nil {
		return err
	}
	if order.Status.Terminal() {
		return fmt.Errorf("订单 %s 已终态 (%s)，不可取消", orderID, order.Status)
	}
	order.Status = types.OrderStatusCanceled
	order.Message = reason
	if err := s.store.Orders().Save(ctx, order); err != nil {
		return err
	}
	logger.Infof("[order:%s] 已取消订单 %s: %s", order.AccountID, orderID, reason)
	return nil
}

func (s *OrderService) publishOrder(t bus.EventType, order *model.OrderModel) {
	if s.bus == nil {
		return
	}
	qty, price := order.Quantity, order.Price
	if order.Status == types.OrderStatusExecuted {
		qty, price = order.FilledQty, order.FilledPrice
	}
	evt := bus.NewEvent(t, order.AccountID, order.Symbol, bus.OrderEvent{
		OrderID:       order.ID,
		BrokerOrderID: order.BrokerOrderID,
		Side:          order.Side,
		Quantity:      qty,
		Price:         price,
		StopLoss:      order.StopLoss,
		Target:        order.Target,
		Horizon:       order.Horizon,
		Status:        order.Status,
		Reason:        order.Message,
	})
	if err := s.bus.Publish(evt); err != nil {
		logger.Errorf("发布事件 %s 失败: %v", t, err)
	}
}

func (s *OrderService) notify(text string) {
	if s.notifier == nil {
		return
	}
	go func() {
		if err := s.notifier.SendText(text); err != nil {
			logger.Warnf("通知发送失败: %v", err)
		}
	}()
}
