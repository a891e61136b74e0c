package strategy

import (
	"fmt"
	"sort"

	"hansu/internal/config"
	"hansu/internal/types"
)

// DCAPlanner sizes staged buys in accumulation mode. The deeper the
// price sits below its long moving average, the larger the tranche.
type DCAPlanner struct {
	cfg      config.DCAConfig
	triggers []config.DCATrigger
}

func NewDCAPlanner(cfg config.DCAConfig) *DCAPlanner {
	triggers := make([]config.DCATrigger, len(cfg.Triggers))
	copy(triggers, cfg.Triggers)
	// 按跌幅从深到浅排，匹配时取第一个命中的档位。
	sort.Slice(triggers, func(i, j int) bool { return triggers[i].FallRate > triggers[j].FallRate })
	return &DCAPlanner{cfg: cfg, triggers: triggers}
}

// Plan returns the tranche amount for one symbol, or ok=false when no
// buy is due (price at or above the moving average, or history short).
func (p *DCAPlanner) Plan(history []types.Candle, price float64) (amount float64, reason string, ok bool) {
	if price <= 0 {
		return 0, "", false
	}
	sma, hasSMA := LastSMA(history, p.cfg.MAPeriod)
	if !hasSMA || price >= sma {
		return 0, "", false
	}
	drawdown := (sma - price) / sma
	multiplier := 1.0
	matched := 0.0
	for _, t := range p.triggers {
		if drawdown >= t.FallRate {
			multiplier = t.Multiplier
			matched = t.FallRate
			break
		}
	}
	amount = p.cfg.BaseAmount * multiplier
	if matched > 0 {
		reason = fmt.Sprintf("低于%d日均线 %.1f%%（档位 %.0f%%，倍率 %.1fx）",
			p.cfg.MAPeriod, drawdown*100, matched*100, multiplier)
	} else {
		reason = fmt.Sprintf("低于%d日均线 %.1f%%，基础买入", p.cfg.MAPeriod, drawdown*100)
	}
	return amount, reason, true
}
