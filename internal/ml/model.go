// Package ml holds the estimators behind the trained artifacts: ordinary
// least squares, CART random forests, RBF support-vector machines with Platt
// calibration, k-means and PCA, plus the voting composites that combine
// them. Inputs are row-major matrices ([][]float64, one row per sample).
//
// Every randomized estimator takes an explicit seed, so fitting the same
// data twice yields identical models.
package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrNotFitted is returned when predicting with an unfitted model.
	ErrNotFitted = errors.New("ml: model is not fitted")
	// ErrShape is returned for empty or ragged inputs and mismatched lengths.
	ErrShape = errors.New("ml: invalid input shape")
)

// Regressor predicts a continuous target.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
}

// Classifier predicts class probabilities. Classes returns the labels in the
// column order of PredictProba.
type Classifier interface {
	Fit(X [][]float64, y []int) error
	PredictProba(X [][]float64) ([][]float64, error)
	Classes() []int
}

// checkMatrix validates a non-empty rectangular matrix of finite values and
// returns its column count.
func checkMatrix(X [][]float64) (int, error) {
	if len(X) == 0 {
		return 0, fmt.Errorf("%w: no rows", ErrShape)
	}
	d := len(X[0])
	if d == 0 {
		return 0, fmt.Errorf("%w: no columns", ErrShape)
	}
	for i, row := range X {
		if len(row) != d {
			return 0, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(row), d)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("%w: non-finite value at (%d,%d)", ErrShape, i, j)
			}
		}
	}
	return d, nil
}

func checkXY(X [][]float64, n int) (int, error) {
	d, err := checkMatrix(X)
	if err != nil {
		return 0, err
	}
	if len(X) != n {
		return 0, fmt.Errorf("%w: %d rows but %d targets", ErrShape, len(X), n)
	}
	return d, nil
}

func checkWidth(X [][]float64, d int) error {
	got, err := checkMatrix(X)
	if err != nil {
		return err
	}
	if got != d {
		return fmt.Errorf("%w: %d features, model was fitted with %d", ErrShape, got, d)
	}
	return nil
}

// uniqueSorted returns the distinct labels of y in ascending order.
func uniqueSorted(y []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, v := range y {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

func labelIndex(classes []int) map[int]int {
	idx := make(map[int]int, len(classes))
	for i, c := range classes {
		idx[c] = i
	}
	return idx
}

// Argmax returns the index of the largest value; ties go to the lowest index.
func Argmax(p []float64) int {
	best := 0
	for i := 1; i < len(p); i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return best
}

// PredictLabels converts a classifier's probabilities into labels.
func PredictLabels(c Classifier, X [][]float64) ([]int, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	classes := c.Classes()
	out := make([]int, len(proba))
	for i, p := range proba {
		out[i] = classes[Argmax(p)]
	}
	return out, nil
}
