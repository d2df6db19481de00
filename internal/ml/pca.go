package ml

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA projects centred rows onto the leading principal components.
type PCA struct {
	NComponents int

	Mean                   []float64
	Components             [][]float64 // one row per component
	ExplainedVariance      []float64
	ExplainedVarianceRatio []float64
}

func NewPCA(components int) *PCA { return &PCA{NComponents: components} }

func (m *PCA) Fit(X [][]float64) error {
	d, err := checkMatrix(X)
	if err != nil {
		return err
	}
	n := len(X)
	k := m.NComponents
	if k <= 0 || k > min(n, d) {
		return fmt.Errorf("%w: pca: %d components for %dx%d data", ErrShape, k, n, d)
	}
	if n < 2 {
		return fmt.Errorf("%w: pca needs at least 2 rows", ErrShape)
	}

	a := mat.NewDense(n, d, nil)
	mean := make([]float64, d)
	for i, row := range X {
		a.SetRow(i, row)
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}

	var pc stat.PC
	if !pc.PrincipalComponents(a, nil) {
		return errors.New("ml: pca: decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	total := 0.0
	for _, v := range vars {
		total += v
	}
	components := make([][]float64, k)
	ratio := make([]float64, k)
	for c := 0; c < k; c++ {
		components[c] = mat.Col(nil, c, &vecs)
		if total > 0 {
			ratio[c] = vars[c] / total
		}
	}

	m.Mean = mean
	m.Components = components
	m.ExplainedVariance = append([]float64(nil), vars[:k]...)
	m.ExplainedVarianceRatio = ratio
	return nil
}

// Transform projects rows onto the fitted components.
func (m *PCA) Transform(X [][]float64) ([][]float64, error) {
	if m.Components == nil {
		return nil, ErrNotFitted
	}
	if err := checkWidth(X, len(m.Mean)); err != nil {
		return nil, err
	}
	out := make([][]float64, len(X))
	for i, x := range X {
		row := make([]float64, len(m.Components))
		for c, comp := range m.Components {
			for j, v := range x {
				row[c] += (v - m.Mean[j]) * comp[j]
			}
		}
		out[i] = row
	}
	return out, nil
}

// TotalVarianceExplained sums the explained variance ratios.
func (m *PCA) TotalVarianceExplained() float64 {
	s := 0.0
	for _, r := range m.ExplainedVarianceRatio {
		s += r
	}
	return s
}
