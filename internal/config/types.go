package config

import "time"

// Config 是 hansu 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Accounts []AccountEntry `toml:"accounts"`
	KIS      KISConfig      `toml:"kis"`
	Stream   StreamConfig   `toml:"stream"`
	Risk     RiskConfig     `toml:"risk"`
	Strategy StrategyConfig `toml:"strategy"`
	Store    StoreConfig    `toml:"store"`
	Notify   NotifyConfig   `toml:"notify"`
	Cycle    CycleConfig    `toml:"cycle"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// AccountEntry 描述一个券商登录账户。kind: "SIM" 模拟 / "REAL" 实盘。
type AccountEntry struct {
	ID        string `toml:"id"`
	Name      string `toml:"name"`
	Number    string `toml:"number"`
	AppKey    string `toml:"app_key"`
	AppSecret string `toml:"app_secret"`
	Kind      string `toml:"kind"`
	Active    bool   `toml:"active"`
}

func (a AccountEntry) Simulated() bool { return a.Kind != "REAL" }

// KISConfig 描述 KIS OpenAPI 的访问方式。
type KISConfig struct {
	// 为空时按账户 kind 选择官方默认地址。
	RealBaseURL    string `toml:"real_base_url"`
	SimBaseURL     string `toml:"sim_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
	RetryDelayMS   int    `toml:"retry_delay_ms"`
	// 熔断：连续传输失败 threshold 次后快速失败 cooldown 秒。
	BreakerThreshold int `toml:"breaker_threshold"`
	BreakerCooldownS int `toml:"breaker_cooldown_seconds"`
}

func (k KISConfig) Timeout() time.Duration {
	if k.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(k.TimeoutSeconds) * time.Second
}

func (k KISConfig) RetryDelay() time.Duration {
	if k.RetryDelayMS <= 0 {
		return time.Second
	}
	return time.Duration(k.RetryDelayMS) * time.Millisecond
}

// StreamConfig 控制实时推送通道的重连策略。
type StreamConfig struct {
	RealURL      string `toml:"real_url"`
	SimURL       string `toml:"sim_url"`
	InitialDelayS int   `toml:"initial_delay_seconds"`
	MaxDelayS     int   `toml:"max_delay_seconds"`
}

func (s StreamConfig) InitialDelay() time.Duration {
	if s.InitialDelayS <= 0 {
		return time.Second
	}
	return time.Duration(s.InitialDelayS) * time.Second
}

func (s StreamConfig) MaxDelay() time.Duration {
	if s.MaxDelayS <= 0 {
		return 60 * time.Second
	}
	return time.Duration(s.MaxDelayS) * time.Second
}

// RiskConfig 是下单前风控与仓位计算的参数。
type RiskConfig struct {
	FeeRate      float64 `toml:"fee_rate"`       // 单边手续费率
	TaxRate      float64 `toml:"tax_rate"`       // 卖出交易税率
	RiskPerTrade float64 `toml:"risk_per_trade"` // 单笔风险占总资产比例
	MaxTotalRisk float64 `toml:"max_total_risk"` // 组合总风险上限
}

// StrategyConfig 绑定策略变体与模式参数。
type StrategyConfig struct {
	BenchmarkSymbol string  `toml:"benchmark_symbol"` // 市场模式基准指数（KOSPI=0001）
	ModeMAPeriod    int     `toml:"mode_ma_period"`   // 市场模式均线周期
	ATRPeriod       int     `toml:"atr_period"`
	StopATRMult     float64 `toml:"stop_atr_multiplier"`
	TrailPct        float64 `toml:"trail_pct"` // 中长期持仓移动止损距离（现价回撤比例）
	// entry 策略变体："candidate" 按候选目标价/止损下单，"golden_cross" 均线金叉。
	Entry       string       `toml:"entry"`
	GoldenCross GoldenCrossConfig `toml:"golden_cross"`
	DCA         DCAConfig    `toml:"dca"`
}

type GoldenCrossConfig struct {
	ShortMA int `toml:"short_ma"`
	LongMA  int `toml:"long_ma"`
}

// DCAConfig 控制分批买入模式。
type DCAConfig struct {
	BaseAmount float64      `toml:"base_amount"` // 每期基础买入金额
	MAPeriod   int          `toml:"ma_period"`   // 回撤参照均线周期
	Triggers   []DCATrigger `toml:"triggers"`
}

// DCATrigger：基准指数相对均线的回撤达到 fall_rate 时放大到 multiplier 倍。
type DCATrigger struct {
	FallRate   float64 `toml:"fall_rate"`
	Multiplier float64 `toml:"multiplier"`
}

type StoreConfig struct {
	Path         string `toml:"path"`           // gorm sqlite 数据文件
	EventLogPath string `toml:"event_log_path"` // 审计事件库（为空则关闭）
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// CycleConfig 控制内置调度器（外部调度器可直接调用 RunTradingCycle）。
type CycleConfig struct {
	Enabled       bool `toml:"enabled"`
	IntervalHours int  `toml:"interval_hours"`
	OffsetMinutes int  `toml:"offset_minutes"`
}
