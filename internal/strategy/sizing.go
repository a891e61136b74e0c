package strategy

import (
	"github.com/shopspring/decimal"

	"hansu/internal/config"
)

// Sizer converts a stop distance into a share count under two limits:
// the per-trade risk fraction and the portfolio-wide risk ceiling.
// Per-share risk includes the round-trip costs, so a stop hit never
// loses more than the budget even after fees and transaction tax.
type Sizer struct {
	cfg config.RiskConfig
}

func NewSizer(cfg config.RiskConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// PerShareRisk is the worst-case loss of holding one share bought at
// entry and stopped out at stop: the price distance plus the buy fee at
// entry and the sell fee plus tax at the stop.
func (s *Sizer) PerShareRisk(entry, stop float64) float64 {
	if entry <= 0 || stop <= 0 || stop >= entry {
		return 0
	}
	e := decimal.NewFromFloat(entry)
	st := decimal.NewFromFloat(stop)
	fee := decimal.NewFromFloat(s.cfg.FeeRate)
	tax := decimal.NewFromFloat(s.cfg.TaxRate)

	risk := e.Sub(st).
		Add(e.Mul(fee)).
		Add(st.Mul(fee.Add(tax)))
	out, _ := risk.Round(6).Float64()
	return out
}

// Size returns the share quantity for a new entry. openRisk is the sum
// of worst-case losses across currently open positions; the new trade
// only gets the budget that remains under the portfolio ceiling.
func (s *Sizer) Size(totalAssets, openRisk, entry, stop float64) int64 {
	perShare := s.PerShareRisk(entry, stop)
	if perShare <= 0 || totalAssets <= 0 {
		return 0
	}
	budget := totalAssets * s.cfg.RiskPerTrade
	if ceiling := totalAssets*s.cfg.MaxTotalRisk - openRisk; ceiling < budget {
		budget = ceiling
	}
	if budget <= 0 {
		return 0
	}
	qty := decimal.NewFromFloat(budget).
		Div(decimal.NewFromFloat(perShare)).
		IntPart()
	if qty < 0 {
		return 0
	}
	return qty
}

// OpenRisk is the worst-case loss of one open position given its stop.
// Positions without a stop contribute their full cost.
func (s *Sizer) OpenRisk(quantity int64, avgCost, stop float64) float64 {
	if quantity <= 0 || avgCost <= 0 {
		return 0
	}
	perShare := s.PerShareRisk(avgCost, stop)
	if perShare <= 0 {
		perShare = avgCost
	}
	out, _ := decimal.NewFromFloat(perShare).
		Mul(decimal.NewFromInt(quantity)).
		Round(2).Float64()
	return out
}
