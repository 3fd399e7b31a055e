// Package indicators provides technical indicator calculations over
// aligned daily bar series.
package indicators

import (
	"math"

	"poos-backtester/internal/models"
)

// EMA calculates an exponential moving average seeded with the first
// value, so the series is defined from the first bar onward. Early
// values carry little smoothing; callers enforce their own warm-up.
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) == 0 {
		return nil
	}

	result := make([]float64, len(values))
	multiplier := 2.0 / float64(period+1)

	result[0] = values[0]
	for i := 1; i < len(values); i++ {
		result[i] = (values[i]-result[i-1])*multiplier + result[i-1]
	}
	return result
}

// ATR calculates the Average True Range as a rolling mean of true range.
// Entries before the warm-up window are NaN.
func ATR(bars []models.Bar, period int) []float64 {
	if period <= 0 || len(bars) == 0 {
		return nil
	}

	tr := make([]float64, len(bars))
	tr[0] = bars[0].High - bars[0].Low
	for i := 1; i < len(bars); i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	return RollingMean(tr, period)
}

// RollingMean calculates a trailing simple mean over window values.
// Entries before the warm-up window are NaN.
func RollingMean(values []float64, window int) []float64 {
	if window <= 0 || len(values) == 0 {
		return nil
	}

	result := make([]float64, len(values))
	var sum float64
	for i := range values {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			result[i] = sum / float64(window)
		} else {
			result[i] = math.NaN()
		}
	}
	return result
}

// PercentChange calculates the fractional change over a trailing number
// of periods. Entries before the warm-up window are NaN.
func PercentChange(values []float64, periods int) []float64 {
	if periods <= 0 || len(values) == 0 {
		return nil
	}

	result := make([]float64, len(values))
	for i := range values {
		if i < periods || values[i-periods] == 0 {
			result[i] = math.NaN()
			continue
		}
		result[i] = (values[i] - values[i-periods]) / values[i-periods]
	}
	return result
}

// Ratio divides a by b element-wise, yielding NaN where b is not a
// positive finite value.
func Ratio(a, b []float64) []float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	result := make([]float64, n)
	for i := 0; i < n; i++ {
		if b[i] <= 0 || math.IsNaN(b[i]) || math.IsNaN(a[i]) {
			result[i] = math.NaN()
			continue
		}
		result[i] = a[i] / b[i]
	}
	return result
}

// Closes extracts the close prices from a bar series.
func Closes(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// DollarVolumes extracts close×volume from a bar series.
func DollarVolumes(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.DollarVolume()
	}
	return out
}

// Valid reports whether v is a usable indicator value.
func Valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
