package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hansu/internal/config"
	"hansu/internal/types"
)

func TestDetermineMode(t *testing.T) {
	// 收于均线上方 → 短线模式。
	hist := candlesAt(100, 100, 100, 100, 110)
	assert.Equal(t, types.ModeShortTerm, DetermineMode(hist, 5))

	// 收于均线下方 → 积累模式。
	hist = candlesAt(110, 110, 110, 110, 90)
	assert.Equal(t, types.ModeAccumulation, DetermineMode(hist, 5))

	// 历史不足取保守模式。
	assert.Equal(t, types.ModeAccumulation, DetermineMode(candlesAt(100, 100), 5))
}

func TestLastSMA(t *testing.T) {
	sma, ok := LastSMA(candlesAt(1, 2, 3, 4, 5), 5)
	require.True(t, ok)
	assert.InDelta(t, 3, sma, 1e-9)

	_, ok = LastSMA(candlesAt(1, 2), 5)
	assert.False(t, ok)
	_, ok = LastSMA(nil, 0)
	assert.False(t, ok)
}

func TestLastATR(t *testing.T) {
	hist := make([]types.Candle, 20)
	for i := range hist {
		hist[i] = types.Candle{High: 105, Low: 95, Close: 100}
	}
	atr, ok := LastATR(hist, 14)
	require.True(t, ok)
	assert.InDelta(t, 10, atr, 1e-6)

	_, ok = LastATR(hist[:10], 14)
	assert.False(t, ok)
}

func TestCandidateStrategy(t *testing.T) {
	s := &CandidateStrategy{}
	shortTerm := types.MarketState{Mode: types.ModeShortTerm}
	accumulation := types.MarketState{Mode: types.ModeAccumulation}

	cand := types.Candidate{Symbol: "005930", Horizon: types.HorizonShort, LastPrice: 70000, Investable: true}
	assert.True(t, s.Evaluate(cand, nil, shortTerm).Enter)

	// 弱市不进短线。
	assert.False(t, s.Evaluate(cand, nil, accumulation).Enter)

	// 长线候选不受模式限制。
	long := cand
	long.Horizon = types.HorizonLong
	assert.True(t, s.Evaluate(long, nil, accumulation).Enter)

	notInvestable := cand
	notInvestable.Investable = false
	assert.False(t, s.Evaluate(notInvestable, nil, shortTerm).Enter)

	noPrice := cand
	noPrice.LastPrice = 0
	assert.False(t, s.Evaluate(noPrice, nil, shortTerm).Enter)
}

func TestGoldenCrossStrategy(t *testing.T) {
	s := NewGoldenCrossStrategy(2, 3)
	market := types.MarketState{Mode: types.ModeShortTerm}
	cand := types.Candidate{Symbol: "005930", Investable: true, LastPrice: 10}

	// 最新一根上穿。
	crossing := candlesAt(5, 4, 3, 2, 1, 10)
	sig := s.Evaluate(cand, crossing, market)
	assert.True(t, sig.Enter)
	assert.Contains(t, sig.Reason, "上穿")

	// 一直在上方，没有新的交叉。
	above := candlesAt(1, 2, 3, 4, 5, 6)
	assert.False(t, s.Evaluate(cand, above, market).Enter)

	// 历史不足。
	assert.False(t, s.Evaluate(cand, candlesAt(1, 2), market).Enter)

	// 非可投候选。
	cand.Investable = false
	assert.False(t, s.Evaluate(cand, crossing, market).Enter)
}

func TestNewEntryStrategy(t *testing.T) {
	s, err := NewEntryStrategy(config.StrategyConfig{Entry: ""})
	require.NoError(t, err)
	assert.Equal(t, "candidate", s.Name())

	s, err = NewEntryStrategy(config.StrategyConfig{
		Entry:       "golden_cross",
		GoldenCross: config.GoldenCrossConfig{ShortMA: 5, LongMA: 20},
	})
	require.NoError(t, err)
	assert.Equal(t, "golden_cross", s.Name())

	_, err = NewEntryStrategy(config.StrategyConfig{Entry: "martingale"})
	assert.Error(t, err)
}
