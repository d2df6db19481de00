// Package indicator computes technical indicators over an ordered daily close
// series.
//
// Every function is pure: it receives closes (oldest first) and returns one
// value per input row, aligned by index. Rows without enough history hold
// NaN; callers prune them. Compute is the single entry point used by feature
// building, live inference and regime detection so all of them see the same
// numbers.
package indicator

import "math"

// Params holds the indicator windows.
type Params struct {
	SMAFast    int `yaml:"sma_fast" default:"20" validate:"gt=0"`
	SMASlow    int `yaml:"sma_slow" default:"50" validate:"gt=0"`
	RSI        int `yaml:"rsi" default:"14" validate:"gt=0"`
	MACDFast   int `yaml:"macd_fast" default:"12" validate:"gt=0"`
	MACDSlow   int `yaml:"macd_slow" default:"26" validate:"gtfield=MACDFast"`
	MACDSignal int `yaml:"macd_signal" default:"9" validate:"gt=0"`
	Volatility int `yaml:"volatility" default:"20" validate:"gt=1"`
	ZScore     int `yaml:"zscore" default:"50" validate:"gt=1"`
}

// DefaultParams returns the standard daily windows: SMA 20/50, RSI 14,
// MACD 12/26/9, 20-day volatility and 50-day z-score.
func DefaultParams() Params {
	return Params{
		SMAFast:    20,
		SMASlow:    50,
		RSI:        14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		Volatility: 20,
		ZScore:     50,
	}
}

// Warmup returns the number of leading rows that cannot be fully defined.
func (p Params) Warmup() int {
	w := p.SMASlow
	for _, n := range []int{p.SMAFast, p.RSI, p.Volatility + 1, p.ZScore} {
		if n > w {
			w = n
		}
	}
	return w - 1
}

// Set is every indicator series for one close series.
type Set struct {
	SMAFast    []float64
	SMASlow    []float64
	RSI        []float64
	MACD       []float64
	MACDSignal []float64

	LogReturn  []float64
	PctReturn  []float64
	Volatility []float64
	ZScore     []float64
}

// Compute calculates every indicator in p for closes.
func Compute(closes []float64, p Params) Set {
	logRet := LogReturns(closes)
	macd, signal := MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	return Set{
		SMAFast:    SMA(closes, p.SMAFast),
		SMASlow:    SMA(closes, p.SMASlow),
		RSI:        RSI(closes, p.RSI),
		MACD:       macd,
		MACDSignal: signal,
		LogReturn:  logRet,
		PctReturn:  PctReturns(closes),
		Volatility: RollingStd(logRet, p.Volatility),
		ZScore:     ZScore(closes, p.ZScore),
	}
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
