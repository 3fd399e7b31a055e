// Package report computes summary metrics from a completed run and
// writes the output artifacts.
package report

import (
	"math"

	"poos-backtester/internal/models"
)

// Metrics summarizes a run. All fields are pure functions of the
// equity snapshots and trade log, so incremental and final computation
// agree by construction.
type Metrics struct {
	StartEquity      float64 `json:"start_equity"`
	EndEquity        float64 `json:"end_equity"`
	TotalReturn      float64 `json:"total_return"`
	CAGR             float64 `json:"cagr"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	DailyVolatility  float64 `json:"daily_volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	TradeCount       int     `json:"trade_count"`
	WinRate          float64 `json:"win_rate"`
	AvgWin           float64 `json:"avg_win"`
	AvgLoss          float64 `json:"avg_loss"`
	ProfitFactor     float64 `json:"profit_factor"`
	Expectancy       float64 `json:"expectancy"`
	SkippedEntries   int     `json:"skipped_entries"`
}

// riskFreeAnnual is the annual risk-free rate assumed by the Sharpe
// calculation.
const riskFreeAnnual = 0.05

// Compute builds metrics from the run outputs. Safe on empty inputs.
func Compute(snapshots []models.EquityPoint, trades []models.Trade, skips []models.Skip) Metrics {
	m := Metrics{TradeCount: len(trades), SkippedEntries: len(skips)}

	if len(snapshots) > 0 {
		m.StartEquity = snapshots[0].Equity
		m.EndEquity = snapshots[len(snapshots)-1].Equity
		if m.StartEquity > 0 {
			m.TotalReturn = m.EndEquity/m.StartEquity - 1
		}
		m.CAGR = cagr(snapshots)
		m.MaxDrawdown = maxDrawdown(snapshots)

		returns := dailyReturns(snapshots)
		m.DailyVolatility = stddev(returns)
		m.SharpeRatio = sharpe(returns)
	}

	var winSum, lossSum float64
	var wins, losses int
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
			winSum += t.PnL
		} else {
			losses++
			lossSum += t.PnL
		}
		m.Expectancy += t.PnL
	}
	if len(trades) > 0 {
		m.WinRate = float64(wins) / float64(len(trades))
		m.Expectancy /= float64(len(trades))
	}
	if wins > 0 {
		m.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		m.AvgLoss = lossSum / float64(losses)
	}
	if lossSum != 0 {
		m.ProfitFactor = winSum / math.Abs(lossSum)
	}

	return m
}

func cagr(snapshots []models.EquityPoint) float64 {
	if len(snapshots) < 3 || snapshots[0].Equity <= 0 {
		return 0
	}
	first := snapshots[0]
	last := snapshots[len(snapshots)-1]
	years := last.Date.Sub(first.Date).Hours() / 24 / 365.25
	if years <= 0 || last.Equity <= 0 {
		return 0
	}
	return math.Pow(last.Equity/first.Equity, 1/years) - 1
}

// maxDrawdown returns the worst peak-to-trough decline as a negative
// fraction.
func maxDrawdown(snapshots []models.EquityPoint) float64 {
	var peak, worst float64
	for _, s := range snapshots {
		if s.Equity > peak {
			peak = s.Equity
		}
		if peak > 0 {
			dd := s.Equity/peak - 1
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

func dailyReturns(snapshots []models.EquityPoint) []float64 {
	if len(snapshots) < 2 {
		return nil
	}
	out := make([]float64, 0, len(snapshots)-1)
	for i := 1; i < len(snapshots); i++ {
		prev := snapshots[i-1].Equity
		if prev == 0 {
			continue
		}
		out = append(out, snapshots[i].Equity/prev-1)
	}
	return out
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

// sharpe annualizes daily returns over 252 trading days.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	sd := stddev(returns)
	if sd == 0 {
		return 0
	}
	return (mean - riskFreeAnnual/252) / sd * math.Sqrt(252)
}
