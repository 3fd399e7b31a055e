package backtest

import (
	"math"

	"poos-backtester/internal/config"
	"poos-backtester/internal/indicators"
	"poos-backtester/internal/models"
	"poos-backtester/internal/series"
)

const atrPeriod = 14

// minRiskPerShare floors the sizing denominator so a stop glued to the
// entry cannot produce an absurd share count.
const minRiskPerShare = 0.01

// Exit describes a position close decided by the simulator. Price is
// already slippage-adjusted.
type Exit struct {
	Price  float64
	Reason models.ExitReason
}

// Fill describes an entry fill decided by the simulator. Price is
// already slippage-adjusted; Stop and RiskPerShare size the trade.
type Fill struct {
	Price        float64
	Stop         float64
	RiskPerShare float64
}

// Simulator applies the POOS entry and exit rules to daily bars. A
// pending limit order lives exactly one day: it fills against that
// day's bar or expires.
type Simulator struct {
	store    *series.Store
	risk     config.RiskConfig
	slippage Slippage
}

// NewSimulator creates an entry/exit simulator.
func NewSimulator(store *series.Store, risk config.RiskConfig, slippage Slippage) *Simulator {
	return &Simulator{store: store, risk: risk, slippage: slippage}
}

// OrderFor builds the day's pending limit order for a ticker: trigger
// is the prior day's EMA20. Returns false when the trigger is not yet
// defined (first day of the series).
func (sim *Simulator) OrderFor(ticker string, day int) (models.Order, bool) {
	ser, ok := sim.store.Stocks[ticker]
	if !ok || day < 1 || day >= ser.Len() {
		return models.Order{}, false
	}
	ema20 := ser.EMA(20)
	trigger := ema20[day-1]
	if !indicators.Valid(trigger) || trigger <= 0 {
		return models.Order{}, false
	}
	return models.Order{
		Ticker:  ticker,
		Trigger: trigger,
		Created: sim.store.Calendar[day],
	}, true
}

// TryFill applies the daily-bar fill proxy to a pending order: the
// limit fills only when the day's range straddles the trigger, and the
// gap filter rejects days whose open jumps more than gap_max_pct below
// the trigger (the real fill would have been far worse than the limit).
// An order that does not fill simply expires.
func (sim *Simulator) TryFill(order models.Order, bar models.Bar) (Fill, bool) {
	if bar.Open < order.Trigger*(1.0-sim.risk.GapMaxPct) {
		return Fill{}, false
	}
	if bar.Low > order.Trigger || bar.High < order.Trigger {
		return Fill{}, false
	}

	entry := sim.slippage.Buy(order.Trigger)
	stop := sim.initialStop(order.Ticker, bar, entry)
	risk := entry - stop
	if risk < minRiskPerShare {
		risk = minRiskPerShare
	}
	return Fill{Price: entry, Stop: stop, RiskPerShare: risk}, true
}

// initialStop places the stop one configured ATR multiple below entry,
// falling back to 10% of entry when the ATR is unavailable or the stop
// would be non-positive.
func (sim *Simulator) initialStop(ticker string, bar models.Bar, entry float64) float64 {
	ser, ok := sim.store.Stocks[ticker]
	if ok {
		day := sim.store.DayIndex(bar.Date)
		if day >= 0 {
			atr := ser.ATR(atrPeriod)
			if day < len(atr) && indicators.Valid(atr[day]) && atr[day] > 0 {
				stop := entry - atr[day]*sim.risk.ATRStopMultiple
				if stop > 0 {
					return stop
				}
			}
		}
	}
	return entry * 0.9
}

// Manage applies one day's bar to an open position. At most one exit
// may trigger; the stop carried into the day is checked before the
// break-even ratchet, so a bar that trades through the old stop exits
// there even if it also reached the ratchet threshold. The ratchet is
// monotonic: the stop never moves down.
func (sim *Simulator) Manage(pos *models.Position, bar models.Bar) *Exit {
	// Stop hit intraday. A gap through the stop exits at the open,
	// which is worse than the stop itself.
	if bar.Low <= pos.StopPrice {
		px := math.Min(pos.StopPrice, bar.Open)
		reason := models.ExitStop
		if pos.BreakevenSet {
			reason = models.ExitBreakeven
		}
		return &Exit{Price: sim.slippage.Sell(px), Reason: reason}
	}

	if !pos.BreakevenSet && bar.High >= pos.EntryPrice*(1.0+sim.risk.BreakevenTrigger) {
		if pos.EntryPrice > pos.StopPrice {
			pos.StopPrice = pos.EntryPrice
		}
		pos.BreakevenSet = true
	}

	return nil
}

// Liquidate force-closes a position at the bar's close. Used on the
// final bar of the simulation only.
func (sim *Simulator) Liquidate(bar models.Bar) *Exit {
	return &Exit{Price: sim.slippage.Sell(bar.Close), Reason: models.ExitLiquidation}
}
