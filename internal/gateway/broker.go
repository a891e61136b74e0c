// Package gateway defines the broker port the engine talks to. The KIS
// client is the production implementation; tests substitute mocks.
package gateway

import (
	"context"

	"hansu/internal/gateway/kis"
	"hansu/internal/types"
)

// Broker is one account's view of the brokerage.
type Broker interface {
	AccountID() string
	Simulated() bool

	Balance(ctx context.Context) (types.BalanceSummary, error)
	Quote(ctx context.Context, symbol string) (types.Quote, error)
	PlaceOrder(ctx context.Context, symbol string, side types.Side, quantity int64, price float64) (kis.OrderAck, error)
	DailyCandles(ctx context.Context, symbol string, days int) ([]types.Candle, error)
	IndexDailyCandles(ctx context.Context, code string, days int) ([]types.Candle, error)
	MarketOpen(ctx context.Context) bool
	ApprovalKey(ctx context.Context) (string, error)
}

var _ Broker = (*kis.Client)(nil)
