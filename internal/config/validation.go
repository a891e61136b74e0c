package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("accounts requires at least one entry")
	}
	seen := make(map[string]struct{}, len(c.Accounts))
	for i, acct := range c.Accounts {
		if strings.TrimSpace(acct.ID) == "" {
			return fmt.Errorf("accounts[%d] missing id", i)
		}
		if _, dup := seen[acct.ID]; dup {
			return fmt.Errorf("accounts contains duplicate id: %s", acct.ID)
		}
		seen[acct.ID] = struct{}{}
		if strings.TrimSpace(acct.Number) == "" {
			return fmt.Errorf("accounts.%s missing number", acct.ID)
		}
		if len(strings.ReplaceAll(acct.Number, "-", "")) < 10 {
			return fmt.Errorf("accounts.%s number too short（需要 8+2 位）", acct.ID)
		}
		if strings.TrimSpace(acct.AppKey) == "" || strings.TrimSpace(acct.AppSecret) == "" {
			return fmt.Errorf("accounts.%s missing app_key/app_secret", acct.ID)
		}
		if acct.Kind != "" && acct.Kind != "SIM" && acct.Kind != "REAL" {
			return fmt.Errorf("accounts.%s kind must be SIM or REAL", acct.ID)
		}
	}

	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram enabled but bot_token/chat_id missing")
		}
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.RiskPerTrade >= 1 {
		return fmt.Errorf("risk.risk_per_trade must be a fraction (<1)")
	}
	if r.MaxTotalRisk >= 1 {
		return fmt.Errorf("risk.max_total_risk must be a fraction (<1)")
	}
	if r.RiskPerTrade > r.MaxTotalRisk {
		return fmt.Errorf("risk.risk_per_trade exceeds risk.max_total_risk")
	}
	return nil
}

func (s *StrategyConfig) validate() error {
	switch s.Entry {
	case "candidate", "golden_cross":
	default:
		return fmt.Errorf("strategy.entry must be candidate or golden_cross, got %q", s.Entry)
	}
	if s.TrailPct >= 1 {
		return fmt.Errorf("strategy.trail_pct must be a fraction (<1)")
	}
	if s.GoldenCross.ShortMA >= s.GoldenCross.LongMA {
		return fmt.Errorf("strategy.golden_cross short_ma must be < long_ma")
	}
	for i, tr := range s.DCA.Triggers {
		if tr.FallRate <= 0 || tr.FallRate >= 1 {
			return fmt.Errorf("strategy.dca.triggers[%d] fall_rate must be in (0,1)", i)
		}
		if tr.Multiplier < 1 {
			return fmt.Errorf("strategy.dca.triggers[%d] multiplier must be >= 1", i)
		}
	}
	return nil
}
