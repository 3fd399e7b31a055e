// Package series provides the price series store: per-ticker aligned
// daily bars with memoized derived indicator views.
package series

import (
	"poos-backtester/internal/indicators"
	"poos-backtester/internal/models"
)

// Series holds one ticker's bars, aligned to the master calendar, plus
// lazily computed indicator views. Bars are append-only for the life of
// a run, so cached views stay valid once built.
type Series struct {
	Ticker string
	Bars   []models.Bar

	ema   map[int][]float64
	atr   map[int][]float64
	perf  map[int][]float64
	avgDV map[int][]float64
}

// New creates a Series over bars.
func New(ticker string, bars []models.Bar) *Series {
	return &Series{
		Ticker: ticker,
		Bars:   bars,
		ema:    make(map[int][]float64),
		atr:    make(map[int][]float64),
		perf:   make(map[int][]float64),
		avgDV:  make(map[int][]float64),
	}
}

// Len returns the number of bars.
func (s *Series) Len() int {
	return len(s.Bars)
}

// Bar returns the bar at day index i.
func (s *Series) Bar(i int) models.Bar {
	return s.Bars[i]
}

// Closes returns the close price view.
func (s *Series) Closes() []float64 {
	return indicators.Closes(s.Bars)
}

// EMA returns the memoized EMA view for the period.
func (s *Series) EMA(period int) []float64 {
	if v, ok := s.ema[period]; ok {
		return v
	}
	v := indicators.EMA(indicators.Closes(s.Bars), period)
	s.ema[period] = v
	return v
}

// ATR returns the memoized ATR view for the period.
func (s *Series) ATR(period int) []float64 {
	if v, ok := s.atr[period]; ok {
		return v
	}
	v := indicators.ATR(s.Bars, period)
	s.atr[period] = v
	return v
}

// PercentChange returns the memoized trailing percent-change view.
func (s *Series) PercentChange(periods int) []float64 {
	if v, ok := s.perf[periods]; ok {
		return v
	}
	v := indicators.PercentChange(indicators.Closes(s.Bars), periods)
	s.perf[periods] = v
	return v
}

// AvgDollarVolume returns the memoized trailing average dollar volume view.
func (s *Series) AvgDollarVolume(window int) []float64 {
	if v, ok := s.avgDV[window]; ok {
		return v
	}
	v := indicators.RollingMean(indicators.DollarVolumes(s.Bars), window)
	s.avgDV[window] = v
	return v
}

// HasWarmup reports whether day index i has at least need prior bars
// (inclusive of i).
func (s *Series) HasWarmup(i, need int) bool {
	return i+1 >= need && i < len(s.Bars)
}
