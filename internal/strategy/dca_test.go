package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hansu/internal/config"
	"hansu/internal/types"
)

func candlesAt(closes ...float64) []types.Candle {
	out := make([]types.Candle, len(closes))
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out[i] = types.Candle{Date: day.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func testDCA() *DCAPlanner {
	return NewDCAPlanner(config.DCAConfig{
		BaseAmount: 1_000_000,
		MAPeriod:   5,
		Triggers: []config.DCATrigger{
			// 故意乱序，规划器按跌幅从深到浅匹配。
			{FallRate: 0.05, Multiplier: 1.5},
			{FallRate: 0.20, Multiplier: 3.0},
			{FallRate: 0.10, Multiplier: 2.0},
		},
	})
}

func TestDCANoBuyAtOrAboveMA(t *testing.T) {
	p := testDCA()
	hist := candlesAt(100, 100, 100, 100, 100)

	_, _, ok := p.Plan(hist, 100)
	assert.False(t, ok)
	_, _, ok = p.Plan(hist, 105)
	assert.False(t, ok)
}

func TestDCAShortHistory(t *testing.T) {
	p := testDCA()
	_, _, ok := p.Plan(candlesAt(100, 100), 90)
	assert.False(t, ok)
}

func TestDCABaseTrancheBelowFirstTrigger(t *testing.T) {
	p := testDCA()
	hist := candlesAt(100, 100, 100, 100, 100)

	amount, reason, ok := p.Plan(hist, 97) // 回撤 3%
	assert.True(t, ok)
	assert.InDelta(t, 1_000_000, amount, 1e-9)
	assert.Contains(t, reason, "基础买入")
}

func TestDCATrancheScalesWithDrawdown(t *testing.T) {
	p := testDCA()
	hist := candlesAt(100, 100, 100, 100, 100)

	amount, _, ok := p.Plan(hist, 93) // 7% → 5% 档
	assert.True(t, ok)
	assert.InDelta(t, 1_500_000, amount, 1e-9)

	amount, _, ok = p.Plan(hist, 88) // 12% → 10% 档
	assert.True(t, ok)
	assert.InDelta(t, 2_000_000, amount, 1e-9)

	amount, _, ok = p.Plan(hist, 75) // 25% → 20% 档
	assert.True(t, ok)
	assert.InDelta(t, 3_000_000, amount, 1e-9)
}

func TestDCAInvalidPrice(t *testing.T) {
	p := testDCA()
	_, _, ok := p.Plan(candlesAt(100, 100, 100, 100, 100), 0)
	assert.False(t, ok)
}
