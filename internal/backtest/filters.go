package backtest

import (
	"poos-backtester/internal/indicators"
	"poos-backtester/internal/series"
)

// Longest indicator windows the filters depend on. Days inside the
// warm-up are simply unfavorable, never an error.
const (
	marketWarmup = 10 // index EMA10
	sectorWarmup = 20 // sector RS EMA20
)

// Filters gates new entries on market regime and sector strength. Both
// checks are pure reads of indicator series already held by the store.
type Filters struct {
	store             *series.Store
	sectorTrendWindow int
}

// NewFilters creates the market/sector gate over a store.
func NewFilters(store *series.Store, sectorTrendWindow int) *Filters {
	return &Filters{store: store, sectorTrendWindow: sectorTrendWindow}
}

// MarketFavorable reports whether the index EMA5 is strictly above its
// EMA10 on the day. Equality is unfavorable: a flat cross is not a
// regime signal. Insufficient history is unfavorable.
func (f *Filters) MarketFavorable(day int) bool {
	if !f.store.Index.HasWarmup(day, marketWarmup) {
		return false
	}
	ema5 := f.store.Index.EMA(5)
	ema10 := f.store.Index.EMA(10)
	return ema5[day] > ema10[day]
}

// SectorFavorable reports whether the ticker's sector ETF shows rising
// relative strength against the index: EMA20 of (sector close / index
// close) strictly above its value sectorTrendWindow days earlier. A
// missing sector mapping or insufficient history is unfavorable.
func (f *Filters) SectorFavorable(ticker string, day int) bool {
	sector, ok := f.store.SectorOf[ticker]
	if !ok {
		return false
	}
	rsEMA := f.store.SectorRSEMA(sector)
	if rsEMA == nil {
		return false
	}
	prev := day - f.sectorTrendWindow
	if prev < 0 || day >= len(rsEMA) || day+1 < sectorWarmup {
		return false
	}
	if !indicators.Valid(rsEMA[day]) || !indicators.Valid(rsEMA[prev]) {
		return false
	}
	return rsEMA[day] > rsEMA[prev]
}
