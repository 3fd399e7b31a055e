package backtest

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"poos-backtester/internal/models"
)

// TestProperty_StopNeverMovesDown checks that for any sequence of bars,
// managing an open position never lowers its stop, and once the
// break-even ratchet fires the stop sits at or above the entry price.
func TestProperty_StopNeverMovesDown(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	// Bars as (low, span) pairs so high >= low always holds.
	lowsGen := gen.SliceOfN(20, gen.Float64Range(50, 150))
	spansGen := gen.SliceOfN(20, gen.Float64Range(0, 20))

	properties.Property("stop is monotonic under any bar sequence", prop.ForAll(
		func(lows, spans []float64) bool {
			bars := make([]models.Bar, len(lows))
			for i := range lows {
				high := lows[i] + spans[i]
				bars[i] = models.Bar{
					Date:   testDay(i + 1),
					Open:   lows[i] + spans[i]/2,
					High:   high,
					Low:    lows[i],
					Close:  lows[i] + spans[i]/2,
					Volume: 1_000_000,
				}
			}

			entry := 100.0
			pos := &models.Position{
				Ticker:       "AAA",
				EntryDate:    testDay(0),
				EntryPrice:   entry,
				Shares:       10,
				StopPrice:    90,
				RiskPerShare: 10,
			}
			sim := NewSimulator(buildStore(t, "AAA", bars), testRisk(), Slippage{})

			prevStop := pos.StopPrice
			for _, b := range bars {
				exit := sim.Manage(pos, b)
				if pos.StopPrice < prevStop {
					t.Logf("FAILED: stop moved down from %.4f to %.4f", prevStop, pos.StopPrice)
					return false
				}
				if pos.BreakevenSet && pos.StopPrice < entry {
					t.Logf("FAILED: ratcheted stop %.4f below entry %.4f", pos.StopPrice, entry)
					return false
				}
				prevStop = pos.StopPrice
				if exit != nil {
					break
				}
			}
			return true
		},
		lowsGen,
		spansGen,
	))

	properties.TestingRun(t)
}

// TestProperty_StopHitAlwaysExits checks that any bar whose low trades
// at or through the carried stop produces an exit, and the exit price
// never exceeds the stop after slippage.
func TestProperty_StopHitAlwaysExits(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	stopGen := gen.Float64Range(50, 100)
	depthGen := gen.Float64Range(0, 10)
	openGen := gen.Float64Range(50, 150)

	properties.Property("low at or through the stop exits at or below it", prop.ForAll(
		func(stop, depth, open float64) bool {
			low := stop - depth
			high := open
			if high < low {
				high = low
			}
			b := models.Bar{
				Date: testDay(1), Open: open, High: high, Low: low,
				Close: open, Volume: 1_000_000,
			}

			pos := &models.Position{
				Ticker:       "AAA",
				EntryDate:    testDay(0),
				EntryPrice:   stop / 0.9,
				Shares:       10,
				StopPrice:    stop,
				RiskPerShare: stop / 9,
			}
			sim := NewSimulator(buildStore(t, "AAA", []models.Bar{b}), testRisk(), Slippage{Bps: 2})

			exit := sim.Manage(pos, b)
			if exit == nil {
				t.Logf("FAILED: no exit with low=%.4f stop=%.4f", low, stop)
				return false
			}
			if exit.Price > stop {
				t.Logf("FAILED: exit %.4f above stop %.4f", exit.Price, stop)
				return false
			}
			return true
		},
		stopGen,
		depthGen,
		openGen,
	))

	properties.TestingRun(t)
}

// TestProperty_FillPriceInsideBarRange checks that an accepted limit
// fill only happens when the trigger trades within the bar, and the
// slipped entry stays within 0.1% of the trigger at 2 bps.
func TestProperty_FillPriceInsideBarRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	triggerGen := gen.Float64Range(10, 100)
	lowGen := gen.Float64Range(5, 120)
	spanGen := gen.Float64Range(0, 40)

	properties.Property("fill implies trigger within the bar", prop.ForAll(
		func(trigger, low, span float64) bool {
			high := low + span
			open := low + span/2
			b := models.Bar{
				Date: testDay(1), Open: open, High: high, Low: low,
				Close: open, Volume: 1_000_000,
			}
			order := models.Order{Ticker: "AAA", Trigger: trigger, Created: testDay(0)}

			sim := NewSimulator(buildStore(t, "AAA", []models.Bar{b}), testRisk(), Slippage{Bps: 2})
			fill, ok := sim.TryFill(order, b)
			if !ok {
				return true
			}
			if trigger < low || trigger > high {
				t.Logf("FAILED: filled outside range: trigger=%.4f low=%.4f high=%.4f", trigger, low, high)
				return false
			}
			if fill.Price < trigger || fill.Price > trigger*1.001 {
				t.Logf("FAILED: entry %.6f not adverse-slipped from trigger %.6f", fill.Price, trigger)
				return false
			}
			return true
		},
		triggerGen,
		lowGen,
		spanGen,
	))

	properties.TestingRun(t)
}
