package features

import (
	"math"

	"github.com/Isaadqurashi/mlops-project/internal/indicator"
	"github.com/Isaadqurashi/mlops-project/internal/model"
)

// DefaultRegimeWindow is the volatility window for regime points.
const DefaultRegimeWindow = 20

// RegimePoints returns (volatility, rsi) pairs for the table. Volatility is
// derived here from the table's closes as the rolling standard deviation of
// percentage returns, so callers need not supply it. Rows where either value
// is undefined are skipped.
func RegimePoints(t *model.FeatureTable, window int) ([][]float64, error) {
	closes, err := t.Column(model.ColClose)
	if err != nil {
		return nil, err
	}
	rsi, err := t.Column(model.ColRSI)
	if err != nil {
		return nil, err
	}
	return RegimeSeries(closes, rsi, window), nil
}

// RegimeSeries pairs rolling percentage-return volatility with rsi. Both
// slices are aligned by index.
func RegimeSeries(closes, rsi []float64, window int) [][]float64 {
	vol := indicator.RollingStd(indicator.PctReturns(closes), window)
	out := make([][]float64, 0, len(closes))
	for i := range closes {
		if math.IsNaN(vol[i]) || math.IsNaN(rsi[i]) {
			continue
		}
		out = append(out, []float64{vol[i], rsi[i]})
	}
	return out
}

// LatestRegimePoint returns the (volatility, rsi) pair of the last row of
// rows, or false when either value is still undefined.
func LatestRegimePoint(rows []model.FeatureRow, window int) ([]float64, bool) {
	if len(rows) == 0 {
		return nil, false
	}
	closes := make([]float64, len(rows))
	for i := range rows {
		closes[i] = rows[i].Close
	}
	vol := indicator.RollingStd(indicator.PctReturns(closes), window)
	last := len(rows) - 1
	if math.IsNaN(vol[last]) || math.IsNaN(rows[last].RSI) {
		return nil, false
	}
	return []float64{vol[last], rows[last].RSI}, true
}
