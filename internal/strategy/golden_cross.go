package strategy

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"hansu/internal/types"
)

// GoldenCrossStrategy enters when the short moving average crosses above
// the long one on the latest bar.
type GoldenCrossStrategy struct {
	short int
	long  int
}

func NewGoldenCrossStrategy(short, long int) *GoldenCrossStrategy {
	if short <= 0 {
		short = 5
	}
	if long <= short {
		long = short * 4
	}
	return &GoldenCrossStrategy{short: short, long: long}
}

func (s *GoldenCrossStrategy) Name() string { return "golden_cross" }

func (s *GoldenCrossStrategy) Evaluate(cand types.Candidate, history []types.Candle, _ types.MarketState) Signal {
	if !cand.Investable || len(history) < s.long+1 {
		return Signal{}
	}
	cls := closes(history)
	shortMA := talib.Sma(cls, s.short)
	longMA := talib.Sma(cls, s.long)
	last := len(cls) - 1
	crossedNow := shortMA[last] > longMA[last]
	crossedBefore := shortMA[last-1] > longMA[last-1]
	if crossedNow && !crossedBefore {
		return Signal{
			Enter:  true,
			Reason: fmt.Sprintf("MA%d 上穿 MA%d", s.short, s.long),
		}
	}
	return Signal{}
}
