package backtest

import (
	"github.com/rs/zerolog"

	"poos-backtester/internal/config"
	apperrors "poos-backtester/internal/errors"
	"poos-backtester/internal/logging"
	"poos-backtester/internal/models"
	"poos-backtester/internal/series"
)

// Result holds everything a run produces for the reporting layer.
type Result struct {
	Trades    []models.Trade
	Snapshots []models.EquityPoint
	Skips     []models.Skip
}

// Engine drives the chronological day loop. Strictly single-threaded
// and single-pass: a day's decisions see only data with date <= that
// day, plus the same day's bar for fill simulation. Each Engine owns an
// independent Ledger, so parameter sweeps can run engines in parallel.
type Engine struct {
	store    *series.Store
	cfg      *config.Config
	ledger   *Ledger
	filters  *Filters
	selector *Selector
	sim      *Simulator
	logger   zerolog.Logger
}

// NewEngine wires a fresh engine over an aligned store. The config must
// already be validated; nothing here fails mid-run.
func NewEngine(store *series.Store, cfg *config.Config, logger zerolog.Logger) *Engine {
	slippage := Slippage{Bps: cfg.Costs.SlippageBps}
	filters := NewFilters(store, cfg.Filters.SectorTrendWindow)
	return &Engine{
		store:    store,
		cfg:      cfg,
		ledger:   NewLedger(cfg.Run.StartCash, cfg.Risk, NewCommission(cfg.Costs)),
		filters:  filters,
		selector: NewSelector(store, filters, cfg.Filters),
		sim:      NewSimulator(store, cfg.Risk, slippage),
		logger:   logger,
	}
}

// Run executes the simulation over the store's calendar and returns the
// trade log, equity curve, and skip report. Per-ticker problems degrade
// to skips; Run itself cannot fail after construction.
func (e *Engine) Run() *Result {
	last := len(e.store.Calendar) - 1

	if need := perf3MPeriods + 1; len(e.store.Calendar) < need {
		err := apperrors.NewInsufficientHistoryError(e.cfg.Data.IndexSymbol, need, len(e.store.Calendar))
		e.logger.Warn().Err(err).Msg("Not enough history for entry filters; no entries will qualify")
	}

	for day := range e.store.Calendar {
		date := e.store.Calendar[day]

		e.manageOpenPositions(day)

		riskOn := e.filters.MarketFavorable(day)
		if riskOn {
			e.attemptEntries(day)
		}

		if day == last {
			e.liquidateAll(day)
		}

		e.ledger.Snapshot(date, e.markAt(day), riskOn)
	}

	// Alignment drops surface in the same report as run-time skips.
	skips := append([]models.Skip{}, e.store.Dropped...)
	skips = append(skips, e.ledger.Skips()...)

	return &Result{
		Trades:    e.ledger.Trades(),
		Snapshots: e.ledger.Snapshots(),
		Skips:     skips,
	}
}

// manageOpenPositions runs stops and the break-even ratchet against the
// day's bars, in lexical ticker order for determinism.
func (e *Engine) manageOpenPositions(day int) {
	date := e.store.Calendar[day]
	for _, t := range e.ledger.OpenTickers() {
		pos, _ := e.ledger.Position(t)
		ser, ok := e.store.Stocks[t]
		if !ok || day >= ser.Len() {
			gap := apperrors.NewDataGapError(t, date)
			e.ledger.AddSkip(t, date, gap.Error())
			logging.LogSkip(e.logger, t, date, gap.Error())
			continue
		}
		exit := e.sim.Manage(pos, ser.Bar(day))
		if exit == nil {
			continue
		}
		trade, err := e.ledger.ApplyExit(t, date, *exit)
		if err != nil {
			e.logger.Error().Err(err).Str("ticker", t).Msg("exit failed")
			continue
		}
		logging.LogExit(e.logger, t, string(exit.Reason), trade.Shares, trade.ExitPrice, trade.PnL)
	}
}

// attemptEntries walks the day's candidates in priority order, placing
// a one-day limit order for each and applying the fill proxy, sizing,
// and the heat cap until a gate refuses.
func (e *Engine) attemptEntries(day int) {
	date := e.store.Calendar[day]
	candidates := e.selector.Select(day, e.ledger.HasPosition)

	for _, cand := range candidates {
		order, ok := e.sim.OrderFor(cand.Ticker, day)
		if !ok {
			continue
		}

		ser := e.store.Stocks[cand.Ticker]
		fill, ok := e.sim.TryFill(order, ser.Bar(day))
		if !ok {
			// Order expires unfilled; not an error and not a skip.
			continue
		}

		equity := e.ledger.Equity(e.markAt(day))
		shares, err := e.ledger.SizePosition(equity, fill.Price, fill.RiskPerShare, cand.Ticker)
		if err != nil {
			e.ledger.AddSkip(cand.Ticker, date, err.Error())
			logging.LogSkip(e.logger, cand.Ticker, date, err.Error())
			continue
		}

		if !e.ledger.WithinHeatCap(float64(shares)*fill.RiskPerShare, equity) {
			reason := apperrors.ErrHeatCapExceeded.Error()
			e.ledger.AddSkip(cand.Ticker, date, reason)
			logging.LogSkip(e.logger, cand.Ticker, date, reason)
			continue
		}

		if err := e.ledger.ApplyFill(cand.Ticker, date, fill, shares); err != nil {
			e.ledger.AddSkip(cand.Ticker, date, err.Error())
			logging.LogSkip(e.logger, cand.Ticker, date, err.Error())
			continue
		}
		logging.LogFill(e.logger, cand.Ticker, shares, fill.Price, order.Trigger, fill.Stop)
	}
}

// liquidateAll force-closes every remaining position at the final
// bar's close.
func (e *Engine) liquidateAll(day int) {
	date := e.store.Calendar[day]
	for _, t := range e.ledger.OpenTickers() {
		ser, ok := e.store.Stocks[t]
		if !ok || day >= ser.Len() {
			continue
		}
		exit := e.sim.Liquidate(ser.Bar(day))
		trade, err := e.ledger.ApplyExit(t, date, *exit)
		if err != nil {
			e.logger.Error().Err(err).Str("ticker", t).Msg("liquidation failed")
			continue
		}
		logging.LogExit(e.logger, t, string(exit.Reason), trade.Shares, trade.ExitPrice, trade.PnL)
	}
}

// markAt returns the mark-to-market pricing function for a day: the
// day's close for each stock.
func (e *Engine) markAt(day int) func(string) float64 {
	return func(ticker string) float64 {
		ser, ok := e.store.Stocks[ticker]
		if !ok || day >= ser.Len() {
			return 0
		}
		return ser.Bar(day).Close
	}
}
