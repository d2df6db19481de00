package indicator

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// SMA is the trailing arithmetic mean of closes over window rows.
// The first window-1 rows are NaN.
func SMA(closes []float64, window int) []float64 {
	return RollingMean(closes, window)
}

// RollingMean is the trailing mean over window rows. A window containing a
// NaN yields NaN.
func RollingMean(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		if hasNaN(w) {
			continue
		}
		sum := 0.0
		for _, v := range w {
			sum += v
		}
		out[i] = sum / float64(window)
	}
	return out
}

// RollingStd is the trailing sample standard deviation (n-1 denominator)
// over window rows. A window containing a NaN yields NaN.
func RollingStd(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	if window < 2 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		if hasNaN(w) {
			continue
		}
		out[i] = stat.StdDev(w, nil)
	}
	return out
}

// ZScore is (close - rolling mean) / rolling std over window rows. A flat
// window has zero deviation and yields NaN.
func ZScore(closes []float64, window int) []float64 {
	mean := RollingMean(closes, window)
	std := RollingStd(closes, window)
	out := nanSeries(len(closes))
	for i := range closes {
		if math.IsNaN(mean[i]) || math.IsNaN(std[i]) || std[i] == 0 {
			continue
		}
		out[i] = (closes[i] - mean[i]) / std[i]
	}
	return out
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
