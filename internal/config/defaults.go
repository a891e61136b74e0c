package config

const (
	defaultRealBaseURL = "https://openapi.koreainvestment.com:9443"
	defaultSimBaseURL  = "https://openapivts.koreainvestment.com:29443"
	defaultRealWSURL   = "ws://ops.koreainvestment.com:21000"
	defaultSimWSURL    = "ws://ops.koreainvestment.com:31000"
)

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":8087"
	}

	if c.KIS.RealBaseURL == "" {
		c.KIS.RealBaseURL = defaultRealBaseURL
	}
	if c.KIS.SimBaseURL == "" {
		c.KIS.SimBaseURL = defaultSimBaseURL
	}
	if c.KIS.RetryAttempts <= 0 {
		c.KIS.RetryAttempts = 3
	}
	if c.KIS.BreakerThreshold <= 0 {
		c.KIS.BreakerThreshold = 5
	}
	if c.KIS.BreakerCooldownS <= 0 {
		c.KIS.BreakerCooldownS = 30
	}

	if c.Stream.RealURL == "" {
		c.Stream.RealURL = defaultRealWSURL
	}
	if c.Stream.SimURL == "" {
		c.Stream.SimURL = defaultSimWSURL
	}

	if c.Risk.FeeRate <= 0 {
		c.Risk.FeeRate = 0.00015
	}
	if c.Risk.TaxRate <= 0 {
		c.Risk.TaxRate = 0.0020
	}
	if c.Risk.RiskPerTrade <= 0 {
		c.Risk.RiskPerTrade = 0.01
	}
	if c.Risk.MaxTotalRisk <= 0 {
		c.Risk.MaxTotalRisk = 0.05
	}

	if c.Strategy.BenchmarkSymbol == "" {
		c.Strategy.BenchmarkSymbol = "0001"
	}
	if c.Strategy.ModeMAPeriod <= 0 {
		c.Strategy.ModeMAPeriod = 60
	}
	if c.Strategy.ATRPeriod <= 0 {
		c.Strategy.ATRPeriod = 14
	}
	if c.Strategy.StopATRMult <= 0 {
		c.Strategy.StopATRMult = 2
	}
	if c.Strategy.TrailPct <= 0 {
		c.Strategy.TrailPct = 0.10
	}
	if c.Strategy.Entry == "" {
		c.Strategy.Entry = "candidate"
	}
	if c.Strategy.GoldenCross.ShortMA <= 0 {
		c.Strategy.GoldenCross.ShortMA = 5
	}
	if c.Strategy.GoldenCross.LongMA <= 0 {
		c.Strategy.GoldenCross.LongMA = 20
	}
	if c.Strategy.DCA.MAPeriod <= 0 {
		c.Strategy.DCA.MAPeriod = 120
	}
	if len(c.Strategy.DCA.Triggers) == 0 {
		c.Strategy.DCA.Triggers = []DCATrigger{
			{FallRate: 0.05, Multiplier: 1.5},
			{FallRate: 0.10, Multiplier: 2},
			{FallRate: 0.20, Multiplier: 3},
		}
	}

	if c.Store.Path == "" {
		c.Store.Path = "data/hansu.db"
	}

	if c.Cycle.IntervalHours <= 0 {
		c.Cycle.IntervalHours = 24
	}
}
