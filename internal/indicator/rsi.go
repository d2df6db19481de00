package indicator

import "math"

// Saturation values for windows where the average loss is zero.
const (
	// RSIMax is returned when the window has gains and no losses.
	RSIMax = 100.0
	// RSINeutral is returned when the window has neither gains nor losses.
	RSINeutral = 50.0
)

// RSI calculates the Relative Strength Index over a trailing window using
// simple means of gains and losses (not Wilder smoothing).
//
// The first row has no previous close; it contributes a zero gain and a zero
// loss, so the first defined value is at index window-1.
func RSI(closes []float64, window int) []float64 {
	out := nanSeries(len(closes))
	if window <= 0 || len(closes) == 0 {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		switch {
		case math.IsNaN(delta):
			gains[i], losses[i] = math.NaN(), math.NaN()
		case delta > 0:
			gains[i] = delta
		case delta < 0:
			losses[i] = -delta
		}
	}

	avgGain := RollingMean(gains, window)
	avgLoss := RollingMean(losses, window)
	for i := range closes {
		out[i] = rsiValue(avgGain[i], avgLoss[i])
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if math.IsNaN(avgGain) || math.IsNaN(avgLoss) {
		return math.NaN()
	}
	if avgLoss == 0 {
		if avgGain == 0 {
			return RSINeutral
		}
		return RSIMax
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
