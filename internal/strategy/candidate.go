package strategy

import (
	"hansu/internal/types"
)

// CandidateStrategy enters any investable candidate as-is, trusting the
// upstream screener's stop and target levels.
type CandidateStrategy struct{}

func (s *CandidateStrategy) Name() string { return "candidate" }

func (s *CandidateStrategy) Evaluate(cand types.Candidate, _ []types.Candle, market types.MarketState) Signal {
	if !cand.Investable || cand.LastPrice <= 0 {
		return Signal{}
	}
	if market.Mode != types.ModeShortTerm && cand.Horizon == types.HorizonShort {
		return Signal{}
	}
	return Signal{Enter: true, Reason: "候选池放行"}
}
