// Package models provides domain models for the backtester.
package models

import (
	"time"
)

// Bar represents one daily OHLCV bar for one ticker. Bars are immutable
// once ingested and ordered by date within a series.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// DollarVolume returns the bar's traded notional.
func (b Bar) DollarVolume() float64 {
	return b.Close * float64(b.Volume)
}

// Candidate is a ticker that passed all entry filters on a given day.
// Candidates are built fresh each day and never persisted.
type Candidate struct {
	Ticker          string
	Close           float64
	Perf3M          float64
	AvgDollarVolume float64
	RelStrength     float64
}

// Order is a pending limit entry. It lives for at most one trading day:
// it either fills on its creation day or expires.
type Order struct {
	Ticker  string
	Trigger float64
	Created time.Time
}

// Position is an open trade. Created on fill, mutated daily by the
// break-even ratchet, destroyed on exit.
type Position struct {
	Ticker          string
	EntryDate       time.Time
	EntryPrice      float64
	Shares          int
	StopPrice       float64
	RiskPerShare    float64
	BreakevenSet    bool
	EntryCommission float64
}

// MarketValue returns the position's mark-to-market value at px.
func (p Position) MarketValue(px float64) float64 {
	return float64(p.Shares) * px
}

// AllocatedRisk returns the dollar risk this position holds against the
// portfolio heat cap.
func (p Position) AllocatedRisk() float64 {
	return float64(p.Shares) * p.RiskPerShare
}

// ExitReason describes why a position was closed.
type ExitReason string

const (
	ExitStop        ExitReason = "stop"
	ExitBreakeven   ExitReason = "breakeven"
	ExitLiquidation ExitReason = "liquidation"
)

// Trade is one record in the realized trade log.
type Trade struct {
	Ticker     string     `csv:"ticker"`
	EntryDate  time.Time  `csv:"entry_date"`
	EntryPrice float64    `csv:"entry_price"`
	ExitDate   time.Time  `csv:"exit_date"`
	ExitPrice  float64    `csv:"exit_price"`
	Shares     int        `csv:"shares"`
	PnL        float64    `csv:"pnl"`
	PnLPercent float64    `csv:"pnl_pct"`
	Commission float64    `csv:"commission"`
	Reason     ExitReason `csv:"reason"`
}

// EquityPoint is one daily equity snapshot.
type EquityPoint struct {
	Date        time.Time `csv:"date"`
	Cash        float64   `csv:"cash"`
	MarketValue float64   `csv:"market_value"`
	Equity      float64   `csv:"equity"`
	Positions   int       `csv:"positions"`
	RiskOn      bool      `csv:"risk_on"`
}

// Skip records a ticker/day the simulation could not act on and why.
// Skips are reported alongside the final metrics, never fatal.
type Skip struct {
	Ticker string
	Date   time.Time
	Reason string
}
