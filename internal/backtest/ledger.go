package backtest

import (
	"math"
	"sort"
	"time"

	"poos-backtester/internal/config"
	apperrors "poos-backtester/internal/errors"
	"poos-backtester/internal/models"
)

// Ledger owns all mutable simulation state: cash, open positions, the
// realized trade log, daily equity snapshots, and the skip report. Each
// run gets its own Ledger; nothing is shared across runs.
type Ledger struct {
	cash       float64
	positions  map[string]*models.Position
	trades     []models.Trade
	snapshots  []models.EquityPoint
	skips      []models.Skip
	risk       config.RiskConfig
	commission Commission
}

// NewLedger creates a ledger with the starting cash balance.
func NewLedger(startCash float64, risk config.RiskConfig, commission Commission) *Ledger {
	return &Ledger{
		cash:       startCash,
		positions:  make(map[string]*models.Position),
		risk:       risk,
		commission: commission,
	}
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	return l.cash
}

// HasPosition reports whether a ticker has an open position.
func (l *Ledger) HasPosition(ticker string) bool {
	_, ok := l.positions[ticker]
	return ok
}

// Position returns the open position for a ticker, if any.
func (l *Ledger) Position(ticker string) (*models.Position, bool) {
	p, ok := l.positions[ticker]
	return p, ok
}

// OpenTickers returns the tickers with open positions in lexical order.
func (l *Ledger) OpenTickers() []string {
	out := make([]string, 0, len(l.positions))
	for t := range l.positions {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// OpenCount returns the number of open positions.
func (l *Ledger) OpenCount() int {
	return len(l.positions)
}

// AllocatedRisk returns the total dollar risk held by open positions,
// the quantity bounded by the green-garden heat cap.
func (l *Ledger) AllocatedRisk() float64 {
	var sum float64
	for _, p := range l.positions {
		sum += p.AllocatedRisk()
	}
	return sum
}

// Equity returns cash plus mark-to-market of all open positions. mark
// must return the day's close for any ticker with an open position.
func (l *Ledger) Equity(mark func(ticker string) float64) float64 {
	eq := l.cash
	for t, p := range l.positions {
		eq += p.MarketValue(mark(t))
	}
	return eq
}

// SizePosition sizes a new trade so riskPerShare × shares approximates
// the configured fraction of equity, capped by the position-notional
// limit, floored to whole shares. Returns an InvalidSizingError when
// the computation produces zero shares.
func (l *Ledger) SizePosition(equity, entry, riskPerShare float64, ticker string) (int, error) {
	if riskPerShare <= 0 || entry <= 0 || equity <= 0 {
		return 0, apperrors.NewInvalidSizingError(ticker, 0, "non-positive inputs")
	}

	byRisk := int(math.Floor(equity * l.risk.RiskPerTrade / riskPerShare))
	bySize := int(math.Floor(equity * l.risk.MaxPositionPct / entry))

	shares := byRisk
	if bySize < shares {
		shares = bySize
	}
	if shares <= 0 {
		return 0, apperrors.NewInvalidSizingError(ticker, shares, "computed size is zero")
	}
	return shares, nil
}

// WithinHeatCap reports whether adding newRisk dollars of trade risk
// keeps total allocated risk within the green-garden cap. This gate is
// independent of the per-day filters: it is the last defense against
// overexposure when many candidates qualify at once.
func (l *Ledger) WithinHeatCap(newRisk, equity float64) bool {
	return l.AllocatedRisk()+newRisk <= equity*l.risk.HeatCap
}

// ApplyFill opens a position, deducting cost and the entry leg's
// commission from cash. Refuses a second position in the same ticker
// and any fill the cash balance cannot cover.
func (l *Ledger) ApplyFill(ticker string, date time.Time, fill Fill, shares int) error {
	if l.HasPosition(ticker) {
		return apperrors.Wrapf(apperrors.ErrPositionExists, "%s", ticker)
	}

	fee := l.commission.Fee(shares, fill.Price)
	cost := float64(shares)*fill.Price + fee
	if cost > l.cash {
		return apperrors.Wrapf(apperrors.ErrInsufficientFunds, "%s: cost %.2f exceeds cash %.2f", ticker, cost, l.cash)
	}

	l.cash -= cost
	l.positions[ticker] = &models.Position{
		Ticker:          ticker,
		EntryDate:       date,
		EntryPrice:      fill.Price,
		Shares:          shares,
		StopPrice:       fill.Stop,
		RiskPerShare:    fill.RiskPerShare,
		EntryCommission: fee,
	}
	return nil
}

// ApplyExit closes a position, crediting proceeds net of the exit
// leg's commission, and appends the realized trade to the log.
func (l *Ledger) ApplyExit(ticker string, date time.Time, exit Exit) (models.Trade, error) {
	pos, ok := l.positions[ticker]
	if !ok {
		return models.Trade{}, apperrors.Wrapf(apperrors.ErrSymbolNotFound, "no open position for %s", ticker)
	}
	delete(l.positions, ticker)

	fee := l.commission.Fee(pos.Shares, exit.Price)
	l.cash += float64(pos.Shares)*exit.Price - fee

	gross := (exit.Price - pos.EntryPrice) * float64(pos.Shares)
	totalFees := fee + pos.EntryCommission

	trade := models.Trade{
		Ticker:     ticker,
		EntryDate:  pos.EntryDate,
		EntryPrice: pos.EntryPrice,
		ExitDate:   date,
		ExitPrice:  exit.Price,
		Shares:     pos.Shares,
		PnL:        gross - totalFees,
		PnLPercent: (exit.Price - pos.EntryPrice) / pos.EntryPrice,
		Commission: totalFees,
		Reason:     exit.Reason,
	}
	l.trades = append(l.trades, trade)
	return trade, nil
}

// Snapshot appends the day's equity point. Snapshots are append-only
// and never revised.
func (l *Ledger) Snapshot(date time.Time, mark func(ticker string) float64, riskOn bool) models.EquityPoint {
	var mv float64
	for t, p := range l.positions {
		mv += p.MarketValue(mark(t))
	}
	pt := models.EquityPoint{
		Date:        date,
		Cash:        l.cash,
		MarketValue: mv,
		Equity:      l.cash + mv,
		Positions:   len(l.positions),
		RiskOn:      riskOn,
	}
	l.snapshots = append(l.snapshots, pt)
	return pt
}

// AddSkip records a recovered per-ticker/per-day refusal for the final
// report.
func (l *Ledger) AddSkip(ticker string, date time.Time, reason string) {
	l.skips = append(l.skips, models.Skip{Ticker: ticker, Date: date, Reason: reason})
}

// Trades returns the realized trade log in close order.
func (l *Ledger) Trades() []models.Trade {
	return l.trades
}

// Snapshots returns the daily equity series.
func (l *Ledger) Snapshots() []models.EquityPoint {
	return l.snapshots
}

// Skips returns the recorded skip report.
func (l *Ledger) Skips() []models.Skip {
	return l.skips
}
