package indicator

import (
	"math"
	"testing"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

func assertNaN(t *testing.T, label string, got float64) {
	t.Helper()
	if !math.IsNaN(got) {
		t.Errorf("%s: got %.6f, want NaN", label, got)
	}
}

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func ramp(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

// ────────────────────────────────────────────────────────────
// SMA
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// Prices: 100, 102, 104, 103, 105
	// SMA after row 3: (100+102+104)/3 = 102
	// SMA after row 4: (102+104+103)/3 = 103
	// SMA after row 5: (104+103+105)/3 = 104
	got := SMA([]float64{100, 102, 104, 103, 105}, 3)

	assertNaN(t, "SMA(3) row 0", got[0])
	assertNaN(t, "SMA(3) row 1", got[1])
	assertClose(t, "SMA(3) row 2", got[2], 102.0, 1e-9)
	assertClose(t, "SMA(3) row 3", got[3], 103.0, 1e-9)
	assertClose(t, "SMA(3) row 4", got[4], 104.0, 1e-9)
}

func TestSMA_ConstantSeries(t *testing.T) {
	closes := constant(100, 60)
	sma20 := SMA(closes, 20)
	sma50 := SMA(closes, 50)

	for i := range closes {
		if i < 19 {
			assertNaN(t, "SMA20 warm-up", sma20[i])
		} else {
			assertClose(t, "SMA20", sma20[i], 100.0, 0)
		}
		if i < 49 {
			assertNaN(t, "SMA50 warm-up", sma50[i])
		} else {
			assertClose(t, "SMA50", sma50[i], 100.0, 0)
		}
	}
}

func TestSMA50_MatchesTrailingMean(t *testing.T) {
	closes := ramp(10, 0.5, 80)
	sma := SMA(closes, 50)

	for i := 49; i < len(closes); i++ {
		sum := 0.0
		for _, c := range closes[i-49 : i+1] {
			sum += c
		}
		assertClose(t, "SMA50", sma[i], sum/50, 1e-9)
	}
}

// ────────────────────────────────────────────────────────────
// EMA / MACD
// ────────────────────────────────────────────────────────────

func TestEMASeries_NonAdjusted(t *testing.T) {
	// span 3 → alpha = 2/(3+1) = 0.5, seeded with the first observation.
	// Prices: 100, 102, 104, 103, 105
	//   row 0: 100
	//   row 1: 102*0.5 + 100*0.5    = 101
	//   row 2: 104*0.5 + 101*0.5    = 102.5
	//   row 3: 103*0.5 + 102.5*0.5  = 102.75
	//   row 4: 105*0.5 + 102.75*0.5 = 103.875
	got := EMASeries([]float64{100, 102, 104, 103, 105}, 3)
	want := []float64{100, 101, 102.5, 102.75, 103.875}
	for i := range want {
		assertClose(t, "EMA(3)", got[i], want[i], 1e-9)
	}
}

func TestEMA_Span5(t *testing.T) {
	// alpha = 2/6 = 1/3
	// Prices: 44, 44.25, 44.50
	//   row 0: 44
	//   row 1: 44.25/3 + 44*2/3     = 44.083333
	//   row 2: 44.50/3 + 44.0833*2/3 = 44.222222
	ema := NewEMA(5)
	ema.Update(44)
	assertClose(t, "EMA(5) row 0", ema.Value(), 44.0, 1e-9)
	ema.Update(44.25)
	assertClose(t, "EMA(5) row 1", ema.Value(), 44.083333, 1e-6)
	ema.Update(44.50)
	assertClose(t, "EMA(5) row 2", ema.Value(), 44.222222, 1e-6)
}

func TestEMA_NotReadyIsNaN(t *testing.T) {
	ema := NewEMA(9)
	if ema.Ready() {
		t.Fatal("expected not ready before first update")
	}
	assertNaN(t, "EMA before update", ema.Value())
}

func TestEMA_Peek_DoesNotMutate(t *testing.T) {
	ema := NewEMA(3)
	for _, p := range []float64{100, 102, 104} {
		ema.Update(p)
	}
	before := ema.Value()

	// Peek with 106: 106*0.5 + 102.5*0.5 = 104.25
	assertClose(t, "EMA Peek", ema.Peek(106), 104.25, 1e-9)
	assertClose(t, "EMA after Peek", ema.Value(), before, 0)
}

func TestMACD_ConstantSeriesIsZero(t *testing.T) {
	macd, signal := MACD(constant(50, 40), 12, 26, 9)
	for i := range macd {
		assertClose(t, "MACD", macd[i], 0, 1e-12)
		assertClose(t, "MACD signal", signal[i], 0, 1e-12)
	}
}

func TestMACD_MatchesEMADifference(t *testing.T) {
	closes := ramp(100, 1.5, 40)
	macd, signal := MACD(closes, 12, 26, 9)
	fast := EMASeries(closes, 12)
	slow := EMASeries(closes, 26)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fast[i] - slow[i]
		assertClose(t, "MACD line", macd[i], line[i], 1e-12)
	}
	want := EMASeries(line, 9)
	for i := range want {
		assertClose(t, "MACD signal", signal[i], want[i], 1e-12)
	}
	if macd[len(macd)-1] <= 0 {
		t.Errorf("rising series should have positive MACD, got %f", macd[len(macd)-1])
	}
}

// ────────────────────────────────────────────────────────────
// RSI
// ────────────────────────────────────────────────────────────

func TestRSI_Correctness_Period5(t *testing.T) {
	// Prices: 44, 44.34, 44.09, 43.61, 44.33, 44.83
	// Gains:  0, 0.34, 0,    0,    0.72, 0.50   (row 0 contributes zero)
	// Losses: 0, 0,    0.25, 0.48, 0,    0
	//
	// Row 4 window (rows 0-4):
	//   avgGain = 1.06/5 = 0.212, avgLoss = 0.73/5 = 0.146
	//   RS = 1.452055 → RSI = 100 - 100/2.452055 = 59.218
	// Row 5 window (rows 1-5):
	//   avgGain = 1.56/5 = 0.312, avgLoss = 0.146
	//   RS = 2.136986 → RSI = 68.122
	got := RSI([]float64{44, 44.34, 44.09, 43.61, 44.33, 44.83}, 5)

	for i := 0; i < 4; i++ {
		assertNaN(t, "RSI(5) warm-up", got[i])
	}
	assertClose(t, "RSI(5) row 4", got[4], 59.218, 0.01)
	assertClose(t, "RSI(5) row 5", got[5], 68.122, 0.01)
}

func TestRSI_MonotonicIncreaseSaturatesAt100(t *testing.T) {
	got := RSI(ramp(100, 1, 40), 14)
	for i := range got {
		if i < 13 {
			assertNaN(t, "RSI warm-up", got[i])
			continue
		}
		assertClose(t, "RSI rising", got[i], RSIMax, 0)
	}
}

func TestRSI_MonotonicDecreaseIsZero(t *testing.T) {
	got := RSI(ramp(200, -1, 30), 14)
	for i := 13; i < len(got); i++ {
		assertClose(t, "RSI falling", got[i], 0, 1e-12)
	}
}

func TestRSI_FlatWindowIsNeutral(t *testing.T) {
	got := RSI(constant(75, 20), 14)
	for i := 13; i < len(got); i++ {
		assertClose(t, "RSI flat", got[i], RSINeutral, 0)
	}
}

// ────────────────────────────────────────────────────────────
// Returns, volatility, z-score
// ────────────────────────────────────────────────────────────

func TestReturns(t *testing.T) {
	closes := []float64{100, 110, 99}
	logRet := LogReturns(closes)
	pct := PctReturns(closes)

	assertNaN(t, "log return row 0", logRet[0])
	assertNaN(t, "pct return row 0", pct[0])
	assertClose(t, "log return row 1", logRet[1], math.Log(1.1), 1e-12)
	assertClose(t, "pct return row 1", pct[1], 0.1, 1e-12)
	assertClose(t, "pct return row 2", pct[2], -0.1, 1e-12)
}

func TestRollingStd_SampleDeviation(t *testing.T) {
	// std(1,2,3) with n-1 denominator = 1; std(2,4,6) = 2
	got := RollingStd([]float64{1, 2, 3, 6}, 3)
	assertNaN(t, "row 0", got[0])
	assertNaN(t, "row 1", got[1])
	assertClose(t, "row 2", got[2], 1.0, 1e-12)
	// std(2,3,6): mean 11/3, deviations² = 2.7778+0.4444+5.4444 = 8.6667 → /2 → sqrt = 2.0817
	assertClose(t, "row 3", got[3], 2.0817, 1e-4)
}

func TestRollingStd_NaNWindowIsNaN(t *testing.T) {
	got := RollingStd([]float64{math.NaN(), 1, 2, 3}, 3)
	assertNaN(t, "window with NaN", got[2])
	assertClose(t, "clean window", got[3], 1.0, 1e-12)
}

func TestVolatility_FirstDefinedRow(t *testing.T) {
	closes := ramp(100, 1, 30)
	vol := Volatility(closes, 20)
	for i := 0; i < 20; i++ {
		assertNaN(t, "volatility warm-up", vol[i])
	}
	if math.IsNaN(vol[20]) {
		t.Fatal("volatility should be defined at row 20")
	}
}

func TestZScore(t *testing.T) {
	// window 3 on 1,2,3: mean 2, std 1 → (3-2)/1 = 1
	got := ZScore([]float64{1, 2, 3}, 3)
	assertClose(t, "z-score", got[2], 1.0, 1e-12)

	flat := ZScore(constant(5, 5), 3)
	assertNaN(t, "flat z-score", flat[4])
}

// ────────────────────────────────────────────────────────────
// Compute
// ────────────────────────────────────────────────────────────

func TestCompute_AlignedWithInput(t *testing.T) {
	closes := ramp(100, 1, 120)
	set := Compute(closes, DefaultParams())

	for name, s := range map[string][]float64{
		"sma_fast": set.SMAFast, "sma_slow": set.SMASlow, "rsi": set.RSI,
		"macd": set.MACD, "macd_signal": set.MACDSignal, "log_return": set.LogReturn,
		"pct_return": set.PctReturn, "volatility": set.Volatility, "zscore": set.ZScore,
	} {
		if len(s) != len(closes) {
			t.Errorf("%s: length %d, want %d", name, len(s), len(closes))
		}
	}

	warm := DefaultParams().Warmup()
	if warm != 49 {
		t.Fatalf("Warmup() = %d, want 49", warm)
	}
	for _, s := range [][]float64{set.SMAFast, set.SMASlow, set.RSI, set.Volatility, set.ZScore} {
		if math.IsNaN(s[warm]) {
			t.Errorf("expected defined value at warm-up boundary %d", warm)
		}
	}
	assertNaN(t, "sma_slow before warm-up", set.SMASlow[warm-1])
}
