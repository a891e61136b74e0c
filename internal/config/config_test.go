package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
app:
  env: test
accounts:
  - id: sim-main
    name: 模拟主账户
    number: "12345678-01"
    app_key: key
    app_secret: secret
    kind: SIM
    active: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":8087", cfg.App.HTTPAddr)
	assert.Equal(t, "https://openapivts.koreainvestment.com:29443", cfg.KIS.SimBaseURL)
	assert.Equal(t, "ws://ops.koreainvestment.com:31000", cfg.Stream.SimURL)
	assert.Equal(t, 3, cfg.KIS.RetryAttempts)
	assert.InDelta(t, 0.00015, cfg.Risk.FeeRate, 1e-9)
	assert.InDelta(t, 0.01, cfg.Risk.RiskPerTrade, 1e-9)
	assert.Equal(t, "0001", cfg.Strategy.BenchmarkSymbol)
	assert.Equal(t, 60, cfg.Strategy.ModeMAPeriod)
	assert.Equal(t, "candidate", cfg.Strategy.Entry)
	assert.Len(t, cfg.Strategy.DCA.Triggers, 3)
	assert.Equal(t, "data/hansu.db", cfg.Store.Path)
	assert.Equal(t, 24, cfg.Cycle.IntervalHours)

	require.Len(t, cfg.Accounts, 1)
	assert.True(t, cfg.Accounts[0].Simulated())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidateAccounts(t *testing.T) {
	_, err := Load(writeConfig(t, "app:\n  env: test\n"))
	assert.ErrorContains(t, err, "accounts")

	bad := `
accounts:
  - id: a1
    number: "123"
    app_key: k
    app_secret: s
`
	_, err = Load(writeConfig(t, bad))
	assert.ErrorContains(t, err, "number too short")

	dup := minimalYAML + `
  - id: sim-main
    number: "12345678-02"
    app_key: k
    app_secret: s
`
	_, err = Load(writeConfig(t, dup))
	assert.ErrorContains(t, err, "duplicate")

	badKind := `
accounts:
  - id: a1
    number: "12345678-01"
    app_key: k
    app_secret: s
    kind: PAPER
`
	_, err = Load(writeConfig(t, badKind))
	assert.ErrorContains(t, err, "kind")
}

func TestValidateRiskFractions(t *testing.T) {
	cfg := minimalYAML + `
risk:
  risk_per_trade: 0.5
  max_total_risk: 0.1
`
	_, err := Load(writeConfig(t, cfg))
	assert.ErrorContains(t, err, "risk_per_trade")

	cfg = minimalYAML + `
risk:
  risk_per_trade: 1.5
`
	_, err = Load(writeConfig(t, cfg))
	assert.ErrorContains(t, err, "fraction")
}

func TestValidateStrategy(t *testing.T) {
	cfg := minimalYAML + `
strategy:
  entry: martingale
`
	_, err := Load(writeConfig(t, cfg))
	assert.ErrorContains(t, err, "strategy.entry")

	cfg = minimalYAML + `
strategy:
  golden_cross:
    short_ma: 20
    long_ma: 5
`
	_, err = Load(writeConfig(t, cfg))
	assert.ErrorContains(t, err, "short_ma")

	cfg = minimalYAML + `
strategy:
  dca:
    triggers:
      - fall_rate: 1.2
        multiplier: 2
`
	_, err = Load(writeConfig(t, cfg))
	assert.ErrorContains(t, err, "fall_rate")
}

func TestValidateTelegram(t *testing.T) {
	cfg := minimalYAML + `
notify:
  telegram:
    enabled: true
`
	_, err := Load(writeConfig(t, cfg))
	assert.ErrorContains(t, err, "telegram")
}

func TestDurationHelpers(t *testing.T) {
	var k KISConfig
	assert.Equal(t, "15s", k.Timeout().String())
	assert.Equal(t, "1s", k.RetryDelay().String())

	var s StreamConfig
	assert.Equal(t, "1s", s.InitialDelay().String())
	assert.Equal(t, "1m0s", s.MaxDelay().String())

	s = StreamConfig{InitialDelayS: 2, MaxDelayS: 30}
	assert.Equal(t, "2s", s.InitialDelay().String())
	assert.Equal(t, "30s", s.MaxDelay().String())
}
