package indicators

import (
	"math"
	"testing"
	"time"

	"poos-backtester/internal/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEMA_ConstantSeriesIsConstant(t *testing.T) {
	values := []float64{50, 50, 50, 50, 50, 50}
	ema := EMA(values, 3)

	if len(ema) != len(values) {
		t.Fatalf("len = %d, want %d", len(ema), len(values))
	}
	for i, v := range ema {
		if !almostEqual(v, 50) {
			t.Errorf("ema[%d] = %v, want 50", i, v)
		}
	}
}

func TestEMA_SeededFromFirstValue(t *testing.T) {
	values := []float64{100, 110}
	ema := EMA(values, 9)

	if !almostEqual(ema[0], 100) {
		t.Fatalf("ema[0] = %v, want 100", ema[0])
	}
	// multiplier = 2/10, ema[1] = 100 + 0.2*(110-100)
	if !almostEqual(ema[1], 102) {
		t.Fatalf("ema[1] = %v, want 102", ema[1])
	}
}

func TestEMA_LagsARisingSeries(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 100 + float64(i)
	}
	ema := EMA(values, 10)

	for i := 1; i < len(values); i++ {
		if ema[i] >= values[i] {
			t.Fatalf("ema[%d] = %v should lag below price %v", i, ema[i], values[i])
		}
		if ema[i] <= ema[i-1] {
			t.Fatalf("ema[%d] = %v should rise with the series", i, ema[i])
		}
	}
}

func TestEMA_InvalidInput(t *testing.T) {
	if got := EMA(nil, 5); got != nil {
		t.Errorf("EMA(nil) = %v, want nil", got)
	}
	if got := EMA([]float64{1, 2}, 0); got != nil {
		t.Errorf("EMA(period=0) = %v, want nil", got)
	}
}

func TestATR_WarmupAndTrueRange(t *testing.T) {
	day := func(i int) time.Time {
		return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}
	// Constant 2-point daily range with no gaps.
	bars := make([]models.Bar, 20)
	for i := range bars {
		bars[i] = models.Bar{Date: day(i), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000}
	}

	atr := ATR(bars, 14)
	for i := 0; i < 13; i++ {
		if !math.IsNaN(atr[i]) {
			t.Errorf("atr[%d] = %v, want NaN during warm-up", i, atr[i])
		}
	}
	for i := 13; i < len(bars); i++ {
		if !almostEqual(atr[i], 2) {
			t.Errorf("atr[%d] = %v, want 2", i, atr[i])
		}
	}
}

func TestATR_GapExpandsTrueRange(t *testing.T) {
	day := func(i int) time.Time {
		return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}
	bars := []models.Bar{
		{Date: day(0), Open: 100, High: 101, Low: 99, Close: 100},
		// Gaps up: true range is high minus prior close, not high minus low.
		{Date: day(1), Open: 110, High: 111, Low: 109, Close: 110},
	}

	atr := ATR(bars, 2)
	if !almostEqual(atr[1], (2+11)/2.0) {
		t.Fatalf("atr[1] = %v, want 6.5", atr[1])
	}
}

func TestRollingMean(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	got := RollingMean(values, 3)

	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Fatalf("warm-up entries should be NaN, got %v", got[:2])
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if !almostEqual(got[i+2], w) {
			t.Errorf("mean[%d] = %v, want %v", i+2, got[i+2], w)
		}
	}
}

func TestPercentChange(t *testing.T) {
	values := []float64{100, 110, 120, 150, 160}
	got := PercentChange(values, 3)

	for i := 0; i < 3; i++ {
		if !math.IsNaN(got[i]) {
			t.Errorf("pct[%d] = %v, want NaN", i, got[i])
		}
	}
	if !almostEqual(got[3], 0.5) {
		t.Errorf("pct[3] = %v, want 0.5", got[3])
	}
	if !almostEqual(got[4], 160.0/110.0-1.0) {
		t.Errorf("pct[4] = %v, want %v", got[4], 160.0/110.0-1.0)
	}
}

func TestPercentChange_ZeroBase(t *testing.T) {
	got := PercentChange([]float64{0, 10}, 1)
	if !math.IsNaN(got[1]) {
		t.Fatalf("pct over a zero base = %v, want NaN", got[1])
	}
}

func TestRatio(t *testing.T) {
	a := []float64{10, 20, 30, math.NaN()}
	b := []float64{2, 0, math.NaN(), 5}
	got := Ratio(a, b)

	if !almostEqual(got[0], 5) {
		t.Errorf("ratio[0] = %v, want 5", got[0])
	}
	for i := 1; i < 4; i++ {
		if !math.IsNaN(got[i]) {
			t.Errorf("ratio[%d] = %v, want NaN", i, got[i])
		}
	}
}

func TestRatio_TruncatesToShorter(t *testing.T) {
	got := Ratio([]float64{1, 2, 3}, []float64{1, 2})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		v    float64
		want bool
	}{
		{1.5, true},
		{0, true},
		{-3, true},
		{math.NaN(), false},
		{math.Inf(1), false},
		{math.Inf(-1), false},
	}
	for _, tc := range cases {
		if got := Valid(tc.v); got != tc.want {
			t.Errorf("Valid(%v) = %v, want %v", tc.v, got, tc.want)
		}
	}
}
