package indicator

import "math"

// LogReturns returns ln(close / previous close). The first row is NaN.
func LogReturns(closes []float64) []float64 {
	out := nanSeries(len(closes))
	for i := 1; i < len(closes); i++ {
		out[i] = math.Log(closes[i] / closes[i-1])
	}
	return out
}

// PctReturns returns close / previous close - 1. The first row is NaN.
func PctReturns(closes []float64) []float64 {
	out := nanSeries(len(closes))
	for i := 1; i < len(closes); i++ {
		out[i] = closes[i]/closes[i-1] - 1
	}
	return out
}

// Volatility is the rolling sample standard deviation of log returns.
func Volatility(closes []float64, window int) []float64 {
	return RollingStd(LogReturns(closes), window)
}
