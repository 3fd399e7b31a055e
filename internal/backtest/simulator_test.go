package backtest

import (
	"math"
	"testing"
	"time"

	"poos-backtester/internal/config"
	"poos-backtester/internal/models"
	"poos-backtester/internal/series"
)

func testDay(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func testRisk() config.RiskConfig {
	return config.RiskConfig{
		RiskPerTrade:     0.02,
		MaxPositionPct:   0.10,
		HeatCap:          0.06,
		BreakevenTrigger: 0.01,
		GapMaxPct:        0.02,
		ATRStopMultiple:  1.0,
	}
}

// buildStore aligns one stock against a flat index of the same length.
func buildStore(t *testing.T, ticker string, bars []models.Bar) *series.Store {
	t.Helper()
	indexBars := make([]models.Bar, len(bars))
	for i := range bars {
		indexBars[i] = models.Bar{
			Date: bars[i].Date, Open: 400, High: 400, Low: 400, Close: 400, Volume: 1e9,
		}
	}
	st, err := series.Build("SPY", map[string][]models.Bar{
		"SPY":  indexBars,
		ticker: bars,
	}, nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return st
}

func bar(i int, o, h, l, c float64) models.Bar {
	return models.Bar{Date: testDay(i), Open: o, High: h, Low: l, Close: c, Volume: 1_000_000}
}

// Three-bar winning trade: limit at the prior day's EMA20 fills inside
// day 2's range, the stop ratchets to entry on day 3's gain, and the
// final bar force-closes at its close.
func TestSimulator_ThreeBarWinningTrade(t *testing.T) {
	bars := []models.Bar{
		bar(0, 100, 100, 100, 100),
		bar(1, 100, 101, 99, 100),
		bar(2, 105, 105, 104, 105),
	}
	st := buildStore(t, "AAA", bars)
	sim := NewSimulator(st, testRisk(), Slippage{Bps: 0})

	order, ok := sim.OrderFor("AAA", 1)
	if !ok {
		t.Fatal("expected an order on day 1")
	}
	if order.Trigger != 100 {
		t.Fatalf("trigger = %v, want 100", order.Trigger)
	}

	fill, ok := sim.TryFill(order, bars[1])
	if !ok {
		t.Fatal("expected the order to fill")
	}
	if fill.Price != 100 {
		t.Fatalf("fill price = %v, want 100", fill.Price)
	}
	// ATR14 has no warm-up yet, so the stop falls back to 10% below entry.
	if math.Abs(fill.Stop-90) > 1e-9 {
		t.Fatalf("stop = %v, want 90", fill.Stop)
	}

	ledger := NewLedger(100_000, testRisk(), FixedCommission{Amount: 0})
	shares, err := ledger.SizePosition(100_000, fill.Price, fill.RiskPerShare, "AAA")
	if err != nil {
		t.Fatalf("SizePosition: %v", err)
	}
	if shares != 100 {
		// 100000 * 0.10 / 100 caps the risk-based 200.
		t.Fatalf("shares = %d, want 100", shares)
	}
	if err := ledger.ApplyFill("AAA", testDay(1), fill, shares); err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}

	pos, _ := ledger.Position("AAA")
	if exit := sim.Manage(pos, bars[2]); exit != nil {
		t.Fatalf("unexpected exit on day 2: %+v", exit)
	}
	if !pos.BreakevenSet || pos.StopPrice != 100 {
		t.Fatalf("ratchet not applied: set=%v stop=%v", pos.BreakevenSet, pos.StopPrice)
	}

	exit := sim.Liquidate(bars[2])
	trade, err := ledger.ApplyExit("AAA", testDay(2), *exit)
	if err != nil {
		t.Fatalf("ApplyExit: %v", err)
	}
	if trade.Reason != models.ExitLiquidation {
		t.Fatalf("reason = %s, want liquidation", trade.Reason)
	}
	if trade.EntryPrice != 100 || trade.ExitPrice != 105 {
		t.Fatalf("prices = %v/%v, want 100/105", trade.EntryPrice, trade.ExitPrice)
	}
	if math.Abs(trade.PnL-500) > 1e-9 {
		t.Fatalf("pnl = %v, want 500 (5 per share x 100)", trade.PnL)
	}
	if len(ledger.Trades()) != 1 {
		t.Fatalf("trade count = %d, want 1", len(ledger.Trades()))
	}
}

// A gap open more than the configured margin below the trigger must
// leave the order unfilled even though the range straddles the trigger.
func TestSimulator_GapOpenRejectsFill(t *testing.T) {
	bars := []models.Bar{
		bar(0, 100, 100, 100, 100),
		bar(1, 90, 101, 89, 95),
	}
	st := buildStore(t, "AAA", bars)
	sim := NewSimulator(st, testRisk(), Slippage{Bps: 0})

	order, ok := sim.OrderFor("AAA", 1)
	if !ok {
		t.Fatal("expected an order on day 1")
	}
	if _, ok := sim.TryFill(order, bars[1]); ok {
		t.Fatal("order filled through a gap; it must expire")
	}
}

func TestSimulator_LimitOutsideRangeExpires(t *testing.T) {
	bars := []models.Bar{
		bar(0, 100, 100, 100, 100),
		bar(1, 102, 105, 101, 104), // never trades down to 100
	}
	st := buildStore(t, "AAA", bars)
	sim := NewSimulator(st, testRisk(), Slippage{Bps: 0})

	order, _ := sim.OrderFor("AAA", 1)
	if _, ok := sim.TryFill(order, bars[1]); ok {
		t.Fatal("limit filled outside the day's range")
	}
}

// A bar that trades through the old stop and also reaches the ratchet
// threshold must exit at the stop; the ratchet never rescues it.
func TestSimulator_StopTakesPrecedenceOverRatchet(t *testing.T) {
	st := buildStore(t, "AAA", []models.Bar{bar(0, 100, 100, 100, 100)})
	sim := NewSimulator(st, testRisk(), Slippage{Bps: 0})

	pos := &models.Position{
		Ticker: "AAA", EntryDate: testDay(0), EntryPrice: 100,
		Shares: 10, StopPrice: 95, RiskPerShare: 5,
	}
	exit := sim.Manage(pos, bar(1, 103, 106, 94, 100))
	if exit == nil {
		t.Fatal("expected a stop exit")
	}
	if exit.Reason != models.ExitStop {
		t.Fatalf("reason = %s, want stop", exit.Reason)
	}
	if exit.Price != 95 {
		t.Fatalf("exit price = %v, want 95", exit.Price)
	}
	if pos.BreakevenSet {
		t.Fatal("ratchet evaluated after a same-day stop hit")
	}
}

// A gap down through the stop exits at the open, not the stop.
func TestSimulator_GapThroughStopExitsAtOpen(t *testing.T) {
	st := buildStore(t, "AAA", []models.Bar{bar(0, 100, 100, 100, 100)})
	sim := NewSimulator(st, testRisk(), Slippage{Bps: 0})

	pos := &models.Position{
		Ticker: "AAA", EntryDate: testDay(0), EntryPrice: 100,
		Shares: 10, StopPrice: 95, RiskPerShare: 5,
	}
	exit := sim.Manage(pos, bar(1, 90, 92, 88, 91))
	if exit == nil || exit.Price != 90 {
		t.Fatalf("exit = %+v, want price 90", exit)
	}
}

// Once ratcheted to entry, a later stop exit reports the breakeven reason.
func TestSimulator_BreakevenExitReason(t *testing.T) {
	st := buildStore(t, "AAA", []models.Bar{bar(0, 100, 100, 100, 100)})
	sim := NewSimulator(st, testRisk(), Slippage{Bps: 0})

	pos := &models.Position{
		Ticker: "AAA", EntryDate: testDay(0), EntryPrice: 100,
		Shares: 10, StopPrice: 90, RiskPerShare: 10,
	}
	if exit := sim.Manage(pos, bar(1, 101, 102, 100.5, 101.5)); exit != nil {
		t.Fatalf("unexpected exit: %+v", exit)
	}
	if !pos.BreakevenSet || pos.StopPrice != 100 {
		t.Fatalf("ratchet not applied: %+v", pos)
	}

	exit := sim.Manage(pos, bar(2, 100.5, 100.5, 99, 99.5))
	if exit == nil || exit.Reason != models.ExitBreakeven {
		t.Fatalf("exit = %+v, want breakeven reason", exit)
	}
	if exit.Price != 100 {
		t.Fatalf("exit price = %v, want 100", exit.Price)
	}
}
