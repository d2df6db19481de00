package indicator

import "math"

// EMA is a streaming exponential moving average using the non-adjusted
// recurrence: the first observation seeds the average, then every update
// blends it with a fixed smoothing factor alpha = 2/(span+1).
// O(1) per update, no window storage.
type EMA struct {
	span    int
	alpha   float64
	current float64
	count   int
}

// NewEMA creates an EMA with the given span.
func NewEMA(span int) *EMA {
	return &EMA{
		span:  span,
		alpha: 2.0 / float64(span+1),
	}
}

func (e *EMA) Name() string { return "EMA" }

// Update feeds the next observation. NaN observations are skipped and leave
// the average unchanged.
func (e *EMA) Update(x float64) {
	if math.IsNaN(x) {
		return
	}
	e.count++
	if e.count == 1 {
		e.current = x
		return
	}
	// EMA = x*alpha + EMA_prev*(1-alpha)
	e.current = x*e.alpha + e.current*(1-e.alpha)
}

// Value returns the current average, or NaN before the first observation.
func (e *EMA) Value() float64 {
	if e.count == 0 {
		return math.NaN()
	}
	return e.current
}

// Ready reports whether at least one observation has been seen.
func (e *EMA) Ready() bool { return e.count > 0 }

// Peek computes what Value() would be after x, without mutating state.
func (e *EMA) Peek(x float64) float64 {
	if e.count == 0 {
		return x
	}
	return x*e.alpha + e.current*(1-e.alpha)
}

// Reset clears the EMA state for reuse.
func (e *EMA) Reset() {
	e.current = 0
	e.count = 0
}

// EMASeries runs an EMA over values and returns the average after each row.
// Leading NaN inputs stay NaN.
func EMASeries(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	ema := NewEMA(span)
	for i, v := range values {
		ema.Update(v)
		out[i] = ema.Value()
	}
	return out
}

// MACD returns the MACD line (EMA fast - EMA slow) and its signal line
// (EMA of MACD over signal rows).
func MACD(closes []float64, fast, slow, signal int) (macd, signalLine []float64) {
	emaFast := EMASeries(closes, fast)
	emaSlow := EMASeries(closes, slow)
	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	return macd, EMASeries(macd, signal)
}
