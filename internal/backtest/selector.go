package backtest

import (
	"sort"

	"poos-backtester/internal/config"
	"poos-backtester/internal/indicators"
	"poos-backtester/internal/models"
	"poos-backtester/internal/series"
)

// perf3MPeriods is the trailing window for the momentum filter, 63
// trading days to approximate three calendar months.
const perf3MPeriods = 63

// Selector ranks the tickers eligible for a new entry on a given day.
type Selector struct {
	store   *series.Store
	filters *Filters
	cfg     config.FilterConfig
}

// NewSelector creates a candidate selector.
func NewSelector(store *series.Store, filters *Filters, cfg config.FilterConfig) *Selector {
	return &Selector{store: store, filters: filters, cfg: cfg}
}

// Select returns the day's candidates in deterministic priority order:
// relative strength descending, then 3-month performance descending,
// then ticker ascending. Tickers in hasPosition, tickers failing any
// filter, and tickers inside their indicator warm-up are excluded.
// Returns an empty slice, never an error, when nothing qualifies or the
// market gate fails.
func (s *Selector) Select(day int, hasPosition func(string) bool) []models.Candidate {
	if !s.filters.MarketFavorable(day) {
		return nil
	}

	var out []models.Candidate
	for _, t := range s.store.StockTickers() {
		if hasPosition(t) {
			continue
		}
		if c, ok := s.evaluate(t, day); ok {
			out = append(out, c)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].RelStrength != out[j].RelStrength {
			return out[i].RelStrength > out[j].RelStrength
		}
		if out[i].Perf3M != out[j].Perf3M {
			return out[i].Perf3M > out[j].Perf3M
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out
}

func (s *Selector) evaluate(ticker string, day int) (models.Candidate, bool) {
	ser, ok := s.store.Stocks[ticker]
	if !ok || day >= ser.Len() {
		return models.Candidate{}, false
	}

	bar := ser.Bar(day)
	if bar.Close >= s.cfg.PriceMax {
		return models.Candidate{}, false
	}

	perf := ser.PercentChange(perf3MPeriods)
	if !indicators.Valid(perf[day]) || perf[day] <= s.cfg.Perf3MMin {
		return models.Candidate{}, false
	}

	avgDV := ser.AvgDollarVolume(s.cfg.LiquidityWindow)
	if !indicators.Valid(avgDV[day]) || avgDV[day] < s.cfg.MinDollarVolume {
		return models.Candidate{}, false
	}

	if !s.filters.SectorFavorable(ticker, day) {
		return models.Candidate{}, false
	}

	rs := s.store.StockRS(ticker)
	prev := day - s.cfg.RSWindow
	if rs == nil || prev < 0 {
		return models.Candidate{}, false
	}
	if !indicators.Valid(rs[day]) || !indicators.Valid(rs[prev]) || rs[day] <= rs[prev] {
		return models.Candidate{}, false
	}

	return models.Candidate{
		Ticker:          ticker,
		Close:           bar.Close,
		Perf3M:          perf[day],
		AvgDollarVolume: avgDV[day],
		RelStrength:     rs[day],
	}, true
}
