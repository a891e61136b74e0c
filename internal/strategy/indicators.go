package strategy

import (
	"github.com/markcheno/go-talib"

	"hansu/internal/types"
)

func closes(candles []types.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// LastSMA returns the most recent simple moving average over period, or
// false when the history is too short.
func LastSMA(candles []types.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period {
		return 0, false
	}
	sma := talib.Sma(closes(candles), period)
	return sma[len(sma)-1], true
}

// LastATR returns the most recent average true range over period.
func LastATR(candles []types.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) <= period {
		return 0, false
	}
	high := make([]float64, len(candles))
	low := make([]float64, len(candles))
	cls := make([]float64, len(candles))
	for i, c := range candles {
		high[i], low[i], cls[i] = c.High, c.Low, c.Close
	}
	atr := talib.Atr(high, low, cls, period)
	v := atr[len(atr)-1]
	if v <= 0 {
		return 0, false
	}
	return v, true
}
