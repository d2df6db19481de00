package ml

import "math"

// RBF is the Gaussian kernel exp(-Gamma*|a-b|²).
type RBF struct {
	Gamma float64
}

func (k RBF) Eval(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return math.Exp(-k.Gamma * s)
}

// ScaleGamma returns 1/(features * variance of all entries of X), the usual
// "scale" default. A constant matrix gets gamma 1.
func ScaleGamma(X [][]float64) float64 {
	n := 0
	mean := 0.0
	for _, row := range X {
		for _, v := range row {
			n++
			mean += (v - mean) / float64(n)
		}
	}
	if n == 0 {
		return 1
	}
	ss := 0.0
	for _, row := range X {
		for _, v := range row {
			ss += (v - mean) * (v - mean)
		}
	}
	variance := ss / float64(n)
	if variance == 0 {
		return 1
	}
	return 1 / (float64(len(X[0])) * variance)
}

// gram computes the symmetric kernel matrix of X.
func gram(k RBF, X [][]float64) [][]float64 {
	n := len(X)
	K := make([][]float64, n)
	for i := range K {
		K[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		K[i][i] = 1
		for j := i + 1; j < n; j++ {
			v := k.Eval(X[i], X[j])
			K[i][j], K[j][i] = v, v
		}
	}
	return K
}
