package bus

import (
	"time"

	"github.com/google/uuid"

	"hansu/internal/types"
)

// EventType identifies a domain event on the bus.
type EventType string

const (
	EvtOrderCreated  EventType = "order.created"
	EvtOrderExecuted EventType = "order.executed"
	EvtOrderFailed   EventType = "order.failed"

	EvtPositionOpened  EventType = "position.opened"
	EvtPositionUpdated EventType = "position.updated"
	EvtPositionClosed  EventType = "position.closed"

	// EvtPriceTick is high-frequency and may be dropped under pressure.
	EvtPriceTick EventType = "price.tick"
)

// Event is the envelope carried on the bus. AccountID and Symbol are
// always set so subscribers can route without inspecting the payload.
type Event struct {
	ID        string
	Type      EventType
	AccountID string
	Symbol    string
	Payload   any
	At        time.Time
}

// NewEvent builds an envelope with a fresh id and timestamp.
func NewEvent(t EventType, accountID, symbol string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		AccountID: accountID,
		Symbol:    symbol,
		Payload:   payload,
		At:        time.Now(),
	}
}

// OrderEvent is the payload for order.* events. Stop, target and
// horizon ride along so position projection does not need to read the
// order row back.
type OrderEvent struct {
	OrderID       string
	BrokerOrderID string
	Side          types.Side
	Quantity      int64
	Price         float64
	StopLoss      float64
	Target        float64
	Horizon       types.Horizon
	Status        types.OrderStatus
	Reason        string
}

// PositionEvent is the payload for position.* events.
type PositionEvent struct {
	PositionID string
	Quantity   int64
	AvgCost    float64
	Realized   float64
}

// PriceTick is the payload for price.tick events.
type PriceTick struct {
	Price float64
}
