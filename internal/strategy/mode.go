package strategy

import (
	"hansu/internal/logger"
	"hansu/internal/types"
)

// DetermineMode classifies the market from the benchmark index: closing
// above its moving average means short-term risk is acceptable, below
// means only staged accumulation. Too little history defaults to the
// conservative mode.
func DetermineMode(benchmark []types.Candle, maPeriod int) types.MarketMode {
	sma, ok := LastSMA(benchmark, maPeriod)
	if !ok {
		logger.Warnf("基准指数历史不足 %d 根，进入积累模式", maPeriod)
		return types.ModeAccumulation
	}
	last := benchmark[len(benchmark)-1].Close
	if last >= sma {
		return types.ModeShortTerm
	}
	return types.ModeAccumulation
}
