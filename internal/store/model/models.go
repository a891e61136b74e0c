package model

import (
	"gorm.io/datatypes"

	"hansu/internal/types"
)

// OrderModel is the persisted order row. BrokerOrderID stays empty until
// the broker acknowledges; afterwards it is the dedup key for fills.
type OrderModel struct {
	ID            string            `gorm:"column:id;primaryKey"`
	AccountID     string            `gorm:"column:account_id;index:idx_order_account"`
	Symbol        string            `gorm:"column:symbol;index:idx_order_account"`
	Side          types.Side        `gorm:"column:side"`
	Status        types.OrderStatus `gorm:"column:status;index"`
	Quantity      int64             `gorm:"column:quantity"`
	Price         float64           `gorm:"column:price"`
	StopLoss      float64           `gorm:"column:stop_loss"`
	Target        float64           `gorm:"column:target"`
	Horizon       types.Horizon     `gorm:"column:horizon"`
	Strategy      string            `gorm:"column:strategy"`
	Reason        string            `gorm:"column:reason"`
	BrokerOrderID string            `gorm:"column:broker_order_id;index"`
	Message       string            `gorm:"column:message"`
	FilledQty     int64             `gorm:"column:filled_qty"`
	FilledPrice   float64           `gorm:"column:filled_price"`
	CreatedAtUnix int64             `gorm:"column:created_at"`
	UpdatedAtUnix int64             `gorm:"column:updated_at"`
}

func (OrderModel) TableName() string { return "orders" }

// PositionModel is the persisted position row. At most one open row per
// (account_id, symbol); enforced by a partial unique index created in
// the store migration.
type PositionModel struct {
	ID            int64         `gorm:"column:id;primaryKey"`
	AccountID     string        `gorm:"column:account_id;index:idx_position_account"`
	Symbol        string        `gorm:"column:symbol;index:idx_position_account"`
	Quantity      int64         `gorm:"column:quantity"`
	AvgCost       float64       `gorm:"column:avg_cost"`
	Horizon       types.Horizon `gorm:"column:horizon"`
	StopLoss      float64       `gorm:"column:stop_loss"`
	Target        float64       `gorm:"column:target"`
	RealizedPnL   float64       `gorm:"column:realized_pnl"`
	IsOpen        int           `gorm:"column:is_open;index"`
	OpenedAtUnix  int64         `gorm:"column:opened_at"`
	ClosedAtUnix  int64         `gorm:"column:closed_at"`
	UpdatedAtUnix int64         `gorm:"column:updated_at"`
}

func (PositionModel) TableName() string { return "positions" }

// CandidateModel is a screened symbol the strategies may enter.
type CandidateModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	Symbol        string         `gorm:"column:symbol;uniqueIndex"`
	Name          string         `gorm:"column:name"`
	Horizon       types.Horizon  `gorm:"column:horizon;index"`
	StopLoss      float64        `gorm:"column:stop_loss"`
	Target        float64        `gorm:"column:target"`
	LastPrice     float64        `gorm:"column:last_price"`
	ATR           float64        `gorm:"column:atr"`
	Investable    int            `gorm:"column:investable;index"`
	Meta          datatypes.JSON `gorm:"column:meta;type:TEXT"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (CandidateModel) TableName() string { return "candidates" }
