package types

import "time"

// Side 表示订单方向（KIS 现金订单只有买/卖两种）。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// OrderStatus covers the full order lifecycle. Terminal states are never
// revisited once reached.
type OrderStatus string

const (
	OrderStatusCreated  OrderStatus = "CREATED"
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusExecuted OrderStatus = "EXECUTED"
	OrderStatusFailed   OrderStatus = "FAILED"
	OrderStatusCanceled OrderStatus = "CANCELED"
)

// Terminal reports whether the status permits no further transition.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusExecuted, OrderStatusFailed, OrderStatusCanceled:
		return true
	default:
		return false
	}
}

// Intent is a fully-specified trade wish produced by the decision layer and
// consumed by the order state machine.
type Intent struct {
	AccountID string
	Symbol    string
	Side      Side
	Quantity  int64
	Price     float64
	// StopLoss/Target seed the position on the first confirmed buy fill.
	StopLoss float64
	Target   float64
	Horizon  Horizon
	Strategy string
	Reason   string
}

// Fill 表示券商确认的一笔成交（同步回报或推送通道均会产出）。
// BrokerOrderID 用于两条路径之间去重。
type Fill struct {
	AccountID     string
	BrokerOrderID string
	Symbol        string
	Side          Side
	Quantity      int64
	Price         float64
	At            time.Time
}
