// Package strategy holds the decision layer: market mode classification,
// entry strategies, position sizing and staged-buy planning. Entry
// strategies form a closed set selected once at startup from config.
package strategy

import (
	"fmt"

	"hansu/internal/config"
	"hansu/internal/types"
)

// Signal is an entry strategy's verdict for one candidate.
type Signal struct {
	Enter  bool
	Reason string
}

// EntryStrategy decides whether a candidate should be entered now.
// history is the candidate's daily bars in ascending order.
type EntryStrategy interface {
	Name() string
	Evaluate(cand types.Candidate, history []types.Candle, market types.MarketState) Signal
}

// NewEntryStrategy resolves the configured variant. Unknown names fail
// at startup rather than at trade time.
func NewEntryStrategy(cfg config.StrategyConfig) (EntryStrategy, error) {
	switch cfg.Entry {
	case "", "candidate":
		return &CandidateStrategy{}, nil
	case "golden_cross":
		return NewGoldenCrossStrategy(cfg.GoldenCross.ShortMA, cfg.GoldenCross.LongMA), nil
	default:
		return nil, fmt.Errorf("未知入场策略: %q", cfg.Entry)
	}
}
