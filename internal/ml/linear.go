package ml

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// rankTol is the relative singular value below which a direction is
// treated as degenerate.
const rankTol = 1e-10

// LinearRegression is ordinary least squares with an intercept. The
// coefficients are the minimum-norm solution, so collinear inputs (sma_20
// and sma_50 move together) do not make the fit fail.
type LinearRegression struct {
	Coef      []float64
	Intercept float64
}

func NewLinearRegression() *LinearRegression { return &LinearRegression{} }

func (m *LinearRegression) Fit(X [][]float64, y []float64) error {
	d, err := checkXY(X, len(y))
	if err != nil {
		return err
	}
	n := len(X)

	xMean := make([]float64, d)
	yMean := 0.0
	for i, row := range X {
		for j, v := range row {
			xMean[j] += v
		}
		yMean += y[i]
	}
	for j := range xMean {
		xMean[j] /= float64(n)
	}
	yMean /= float64(n)

	a := mat.NewDense(n, d, nil)
	b := mat.NewVecDense(n, nil)
	for i, row := range X {
		for j, v := range row {
			a.Set(i, j, v-xMean[j])
		}
		b.SetVec(i, y[i]-yMean)
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return errors.New("ml: linear regression: SVD did not converge")
	}
	rank := svd.Rank(rankTol)

	coef := make([]float64, d)
	if rank > 0 {
		var sol mat.VecDense
		svd.SolveVecTo(&sol, b, rank)
		for j := range coef {
			coef[j] = sol.AtVec(j)
		}
	}

	intercept := yMean
	for j, c := range coef {
		intercept -= c * xMean[j]
	}
	m.Coef, m.Intercept = coef, intercept
	return nil
}

func (m *LinearRegression) Predict(X [][]float64) ([]float64, error) {
	if m.Coef == nil {
		return nil, ErrNotFitted
	}
	if err := checkWidth(X, len(m.Coef)); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, row := range X {
		v := m.Intercept
		for j, x := range row {
			v += m.Coef[j] * x
		}
		out[i] = v
	}
	return out, nil
}
