// Package backtest implements the POOS daily-bar simulation: market and
// sector gates, candidate selection, fill and exit simulation, and the
// portfolio ledger.
package backtest

import (
	"poos-backtester/internal/config"
)

// Slippage applies a basis-point penalty adverse to the trader on
// every fill.
type Slippage struct {
	Bps float64
}

// Buy returns the price worsened for a buyer.
func (s Slippage) Buy(price float64) float64 {
	return price * (1.0 + s.Bps/10000.0)
}

// Sell returns the price worsened for a seller.
func (s Slippage) Sell(price float64) float64 {
	return price * (1.0 - s.Bps/10000.0)
}

// Commission computes the fee for one trade leg. The variants form a
// closed set selected by configuration.
type Commission interface {
	Fee(shares int, price float64) float64
}

// FixedCommission charges a flat fee per leg.
type FixedCommission struct {
	Amount float64
}

func (c FixedCommission) Fee(shares int, price float64) float64 {
	return c.Amount
}

// PerShareCommission charges a rate per share with a minimum per leg.
type PerShareCommission struct {
	Rate float64
	Min  float64
}

func (c PerShareCommission) Fee(shares int, price float64) float64 {
	fee := float64(shares) * c.Rate
	if fee < c.Min {
		return c.Min
	}
	return fee
}

// PercentageCommission charges a fraction of the leg's notional.
type PercentageCommission struct {
	Rate float64
}

func (c PercentageCommission) Fee(shares int, price float64) float64 {
	return float64(shares) * price * c.Rate
}

// NewCommission builds the configured commission model. The config is
// validated before the run starts, so an unknown model cannot reach here.
func NewCommission(cfg config.CostConfig) Commission {
	switch cfg.CommissionModel {
	case config.CommissionFixed:
		return FixedCommission{Amount: cfg.CommissionFixed}
	case config.CommissionPercentage:
		return PercentageCommission{Rate: cfg.CommissionPct}
	default:
		return PerShareCommission{Rate: cfg.CommissionPerShare, Min: cfg.CommissionMin}
	}
}
