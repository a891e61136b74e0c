package types

import "time"

// Horizon 对应候选分析给出的投资期限标签。
type Horizon string

const (
	// HorizonShort 短线持仓，带固定目标价/止损价。
	HorizonShort Horizon = "SHORT"
	// HorizonLong 中长线持仓，只跟踪止损，不设目标价。
	HorizonLong Horizon = "LONG"
)

// MarketMode is decided once per cycle from the benchmark index.
type MarketMode string

const (
	// ModeShortTerm：基准指数收于 60 日均线上方，做短线风险敞口。
	ModeShortTerm MarketMode = "SHORT_TERM"
	// ModeAccumulation：指数走弱，只对优质标的做分批买入。
	ModeAccumulation MarketMode = "ACCUMULATION"
)

// Candle is one daily bar of the KIS chart endpoints.
type Candle struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Quote is the current-price snapshot for one symbol.
type Quote struct {
	Symbol string
	Price  float64
	At     time.Time
}

// Holding is one row of the broker-side balance inquiry.
type Holding struct {
	Symbol         string
	Name           string
	Quantity       int64
	AvgBuyPrice    float64
	PurchaseAmount float64
	CurrentPrice   float64
}

// BalanceSummary 汇总余额接口 output2 的账户级字段。
type BalanceSummary struct {
	TotalAssets   float64
	OrderableCash float64
	Holdings      []Holding
	FetchedAt     time.Time
}

// Candidate is a read-only record from the external scorer feed.
type Candidate struct {
	Symbol     string
	Name       string
	Horizon    Horizon
	StopLoss   float64
	Target     float64
	LastPrice  float64
	ATR        float64
	Investable bool
	UpdatedAt  time.Time
}

// MarketState bundles what strategies need to decide: the mode plus the
// benchmark history that produced it.
type MarketState struct {
	Mode      MarketMode
	Benchmark []Candle
}
