package engine

import (
	"context"
	"fmt"
	"strings"

	"hansu/internal/config"
	"hansu/internal/gateway"
	"hansu/internal/logger"
	"hansu/internal/store"
	"hansu/internal/types"
)

// Violation codes returned by the risk gate.
const (
	ViolationInvalidIntent        = "INVALID_INTENT"
	ViolationDuplicateOrder       = "DUPLICATE_ORDER"
	ViolationInsufficientCash     = "INSUFFICIENT_CASH"
	ViolationInsufficientHoldings = "INSUFFICIENT_HOLDINGS"
	ViolationBalanceUnavailable   = "BALANCE_UNAVAILABLE"
)

// Violation is one reason an intent was refused.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Assessment is the risk gate's verdict. Denied intents never reach the
// broker.
type Assessment struct {
	OK         bool
	Violations []Violation
}

func (a Assessment) Reason() string {
	if a.OK {
		return ""
	}
	parts := make([]string, 0, len(a.Violations))
	for _, v := range a.Violations {
		parts = append(parts, v.Code+": "+v.Message)
	}
	return strings.Join(parts, "; ")
}

// RiskGate performs the pre-trade checks. The balance is always fetched
// live from the broker at assessment time; a stale local copy must never
// approve an order. When the balance cannot be fetched the gate fails
// closed.
type RiskGate struct {
	store store.Store
	cfg   config.RiskConfig
}

func NewRiskGate(st store.Store, cfg config.RiskConfig) *RiskGate {
	return &RiskGate{store: st, cfg: cfg}
}

// Assess checks one intent. The caller persists its own order row
// before assessing, so excludeOrderID keeps that row out of the
// duplicate check; pass "" when assessing a bare intent.
func (g *RiskGate) Assess(ctx context.Context, broker gateway.Broker, intent types.Intent, excludeOrderID string) Assessment {
	var vs []Violation

	if !intent.Side.Valid() || intent.Quantity <= 0 || intent.Price <= 0 || intent.Symbol == "" {
		vs = append(vs, Violation{ViolationInvalidIntent, "委托要素不完整或非法"})
		return Assessment{OK: false, Violations: vs}
	}

	// 同一 (账户, 标的, 方向) 只允许一笔在途订单。
	pending, err := g.store.Orders().FindPending(ctx, intent.AccountID, intent.Symbol, string(intent.Side))
	if err != nil {
		logger.Errorf("[risk:%s] 查询在途订单失败: %v", intent.AccountID, err)
		vs = append(vs, Violation{ViolationBalanceUnavailable, "本地订单状态不可用"})
		return Assessment{OK: false, Violations: vs}
	}
	if pending != nil && pending.ID != excludeOrderID {
		vs = append(vs, Violation{ViolationDuplicateOrder,
			fmt.Sprintf("存在在途订单 %s (%s %s)", pending.ID, intent.Symbol, intent.Side)})
		return Assessment{OK: false, Violations: vs}
	}

	bal, err := broker.Balance(ctx)
	if err != nil {
		logger.Warnf("[risk:%s] 账户余额查询失败，拒绝委托: %v", intent.AccountID, err)
		vs = append(vs, Violation{ViolationBalanceUnavailable, "券商余额查询失败"})
		return Assessment{OK: false, Violations: vs}
	}

	switch intent.Side {
	case types.SideBuy:
		cost := float64(intent.Quantity) * intent.Price * (1 + g.cfg.FeeRate)
		if cost > bal.OrderableCash {
			vs = append(vs, Violation{ViolationInsufficientCash,
				fmt.Sprintf("可用资金不足：需要 %.0f，可用 %.0f", cost, bal.OrderableCash)})
		}
	case types.SideSell:
		held := int64(0)
		for _, h := range bal.Holdings {
			if h.Symbol == intent.Symbol {
				held = h.Quantity
				break
			}
		}
		if held < intent.Quantity {
			vs = append(vs, Violation{ViolationInsufficientHoldings,
				fmt.Sprintf("可卖数量不足：需要 %d，持有 %d", intent.Quantity, held)})
		}
	}

	return Assessment{OK: len(vs) == 0, Violations: vs}
}
