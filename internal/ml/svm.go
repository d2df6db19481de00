package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// SVMParams configures the RBF support-vector machines. A zero Gamma means
// ScaleGamma of the training matrix.
type SVMParams struct {
	C       float64
	Epsilon float64 // ε-tube half width, SVR only
	Tol     float64
	Gamma   float64
	MaxIter int
}

func (p SVMParams) maxIter(n int) int {
	if p.MaxIter > 0 {
		return p.MaxIter
	}
	return max(10_000_000, 100*n)
}

func (p SVMParams) validate() error {
	if p.C <= 0 {
		return fmt.Errorf("C must be positive, got %v", p.C)
	}
	if p.Tol <= 0 {
		return fmt.Errorf("tol must be positive, got %v", p.Tol)
	}
	if p.Epsilon < 0 {
		return fmt.Errorf("epsilon must not be negative, got %v", p.Epsilon)
	}
	return nil
}

// supportVectors is the fitted decision function Σ coef_i K(sv_i, x) - rho.
type supportVectors struct {
	Vectors [][]float64
	Coef    []float64
	Rho     float64
	Kernel  RBF
}

func (s *supportVectors) decision(x []float64) float64 {
	v := -s.Rho
	for i, sv := range s.Vectors {
		v += s.Coef[i] * s.Kernel.Eval(sv, x)
	}
	return v
}

func keepNonZero(X [][]float64, coef []float64, rho float64, k RBF) supportVectors {
	out := supportVectors{Rho: rho, Kernel: k}
	for i, c := range coef {
		if c != 0 {
			out.Vectors = append(out.Vectors, append([]float64(nil), X[i]...))
			out.Coef = append(out.Coef, c)
		}
	}
	return out
}

// SVR is ε-insensitive support-vector regression with an RBF kernel.
type SVR struct {
	Params SVMParams
	Model  supportVectors
	Width  int
}

func NewSVR(p SVMParams) *SVR { return &SVR{Params: p} }

func (m *SVR) Fit(X [][]float64, y []float64) error {
	d, err := checkXY(X, len(y))
	if err != nil {
		return err
	}
	if err := m.Params.validate(); err != nil {
		return fmt.Errorf("svr: %w", err)
	}
	gamma := m.Params.Gamma
	if gamma == 0 {
		gamma = ScaleGamma(X)
	}
	k := RBF{Gamma: gamma}
	K := gram(k, X)
	l := len(X)

	// Variables a_i (i < l) and a*_i (i >= l) share one SMO problem of size 2l.
	sign := make([]float64, 2*l)
	p := make([]float64, 2*l)
	qd := make([]float64, 2*l)
	for i := 0; i < l; i++ {
		sign[i], sign[i+l] = 1, -1
		p[i] = m.Params.Epsilon - y[i]
		p[i+l] = m.Params.Epsilon + y[i]
		qd[i], qd[i+l] = K[i][i], K[i][i]
	}
	cols := make(map[int][]float64)
	col := func(i int) []float64 {
		if c, ok := cols[i]; ok {
			return c
		}
		c := make([]float64, 2*l)
		ki := K[i%l]
		for j := 0; j < 2*l; j++ {
			c[j] = sign[i] * sign[j] * ki[j%l]
		}
		cols[i] = c
		return c
	}

	sol := (&smoProblem{
		n: 2 * l, q: col, qd: qd, p: p, y: sign,
		c: m.Params.C, tol: m.Params.Tol, maxIts: m.Params.maxIter(2 * l),
	}).solve()

	coef := make([]float64, l)
	for i := 0; i < l; i++ {
		coef[i] = sol.alpha[i] - sol.alpha[i+l]
	}
	m.Model = keepNonZero(X, coef, sol.rho, k)
	m.Width = d
	return nil
}

func (m *SVR) Predict(X [][]float64) ([]float64, error) {
	if m.Width == 0 {
		return nil, ErrNotFitted
	}
	if err := checkWidth(X, m.Width); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = m.Model.decision(x)
	}
	return out, nil
}

// SVC is a binary RBF support-vector classifier whose probabilities come
// from a sigmoid fitted on cross-validated decision values (Platt scaling).
// The larger label is the positive class. A training set with a single
// label yields a classifier that always predicts it with probability 1.
type SVC struct {
	Params SVMParams
	Seed   int64
	Folds  int

	Labels []int
	Model  supportVectors
	A, B   float64
	Width  int
}

// DefaultPlattFolds is the number of internal folds used for calibration.
const DefaultPlattFolds = 5

func NewSVC(p SVMParams, seed int64) *SVC {
	return &SVC{Params: p, Seed: seed, Folds: DefaultPlattFolds}
}

func (m *SVC) Classes() []int { return m.Labels }

func (m *SVC) Fit(X [][]float64, y []int) error {
	d, err := checkXY(X, len(y))
	if err != nil {
		return err
	}
	if err := m.Params.validate(); err != nil {
		return fmt.Errorf("svc: %w", err)
	}
	classes := uniqueSorted(y)
	switch {
	case len(classes) > 2:
		return fmt.Errorf("svc: binary classifier got %d classes", len(classes))
	case len(classes) == 1:
		m.Labels, m.Width, m.Model = classes, d, supportVectors{}
		return nil
	}

	gamma := m.Params.Gamma
	if gamma == 0 {
		gamma = ScaleGamma(X)
	}
	k := RBF{Gamma: gamma}
	sign := make([]float64, len(y))
	for i, v := range y {
		sign[i] = -1
		if v == classes[1] {
			sign[i] = 1
		}
	}

	dec := m.crossValidatedDecisions(X, sign, k)
	m.A, m.B = fitSigmoid(dec, sign)
	m.Model = fitBinarySVC(X, sign, k, m.Params)
	m.Labels, m.Width = classes, d
	return nil
}

// DecisionFunction returns the signed distance of each row to the margin;
// positive values favour the larger label.
func (m *SVC) DecisionFunction(X [][]float64) ([]float64, error) {
	if m.Width == 0 {
		return nil, ErrNotFitted
	}
	if err := checkWidth(X, m.Width); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = m.Model.decision(x)
	}
	return out, nil
}

func (m *SVC) PredictProba(X [][]float64) ([][]float64, error) {
	if m.Width == 0 {
		return nil, ErrNotFitted
	}
	if err := checkWidth(X, m.Width); err != nil {
		return nil, err
	}
	out := make([][]float64, len(X))
	if len(m.Labels) == 1 {
		for i := range out {
			out[i] = []float64{1}
		}
		return out, nil
	}
	for i, x := range X {
		p := sigmoidPredict(m.Model.decision(x), m.A, m.B)
		out[i] = []float64{1 - p, p}
	}
	return out, nil
}

func fitBinarySVC(X [][]float64, sign []float64, k RBF, params SVMParams) supportVectors {
	K := gram(k, X)
	n := len(X)
	qd := make([]float64, n)
	p := make([]float64, n)
	cols := make(map[int][]float64)
	for i := range qd {
		qd[i] = K[i][i]
		p[i] = -1
	}
	col := func(i int) []float64 {
		if c, ok := cols[i]; ok {
			return c
		}
		c := make([]float64, n)
		for j := range c {
			c[j] = sign[i] * sign[j] * K[i][j]
		}
		cols[i] = c
		return c
	}

	sol := (&smoProblem{
		n: n, q: col, qd: qd, p: p, y: sign,
		c: params.C, tol: params.Tol, maxIts: params.maxIter(n),
	}).solve()

	coef := make([]float64, n)
	for i := range coef {
		coef[i] = sign[i] * sol.alpha[i]
	}
	return keepNonZero(X, coef, sol.rho, k)
}

// crossValidatedDecisions returns out-of-fold decision values for every
// sample. Folds come from a seeded permutation. A training fold holding a
// single class scores its held-out rows ±1 towards that class.
func (m *SVC) crossValidatedDecisions(X [][]float64, sign []float64, k RBF) []float64 {
	n := len(X)
	folds := m.Folds
	if folds < 2 {
		folds = DefaultPlattFolds
	}
	folds = min(folds, n)
	perm := rand.New(rand.NewSource(m.Seed)).Perm(n)
	dec := make([]float64, n)

	for f := 0; f < folds; f++ {
		begin, end := f*n/folds, (f+1)*n/folds
		var trainX [][]float64
		var trainY []float64
		pos, neg := 0, 0
		for _, idx := range append(append([]int(nil), perm[:begin]...), perm[end:]...) {
			trainX = append(trainX, X[idx])
			trainY = append(trainY, sign[idx])
			if sign[idx] > 0 {
				pos++
			} else {
				neg++
			}
		}

		held := perm[begin:end]
		switch {
		case pos == 0 && neg == 0:
			for _, idx := range held {
				dec[idx] = 0
			}
		case neg == 0:
			for _, idx := range held {
				dec[idx] = 1
			}
		case pos == 0:
			for _, idx := range held {
				dec[idx] = -1
			}
		default:
			sv := fitBinarySVC(trainX, trainY, k, m.Params)
			for _, idx := range held {
				dec[idx] = sv.decision(X[idx])
			}
		}
	}
	return dec
}

// fitSigmoid fits P(y=+1|f) = 1/(1+exp(A*f+B)) by Newton's method with
// backtracking line search on regularised targets.
func fitSigmoid(dec, sign []float64) (A, B float64) {
	const (
		maxIter = 100
		minStep = 1e-10
		sigma   = 1e-12
		eps     = 1e-5
	)
	prior1, prior0 := 0.0, 0.0
	for _, s := range sign {
		if s > 0 {
			prior1++
		} else {
			prior0++
		}
	}
	hi := (prior1 + 1) / (prior1 + 2)
	lo := 1 / (prior0 + 2)
	t := make([]float64, len(dec))
	for i, s := range sign {
		if s > 0 {
			t[i] = hi
		} else {
			t[i] = lo
		}
	}

	objective := func(a, b float64) float64 {
		f := 0.0
		for i, d := range dec {
			fApB := d*a + b
			if fApB >= 0 {
				f += t[i]*fApB + math.Log1p(math.Exp(-fApB))
			} else {
				f += (t[i]-1)*fApB + math.Log1p(math.Exp(fApB))
			}
		}
		return f
	}

	A, B = 0, math.Log((prior0+1)/(prior1+1))
	fval := objective(A, B)

	for iter := 0; iter < maxIter; iter++ {
		h11, h22, h21, g1, g2 := sigma, sigma, 0.0, 0.0, 0.0
		for i, d := range dec {
			fApB := d*A + B
			var p, q float64
			if fApB >= 0 {
				e := math.Exp(-fApB)
				p, q = e/(1+e), 1/(1+e)
			} else {
				e := math.Exp(fApB)
				p, q = 1/(1+e), e/(1+e)
			}
			d2 := p * q
			h11 += d * d * d2
			h22 += d2
			h21 += d * d2
			d1 := t[i] - p
			g1 += d * d1
			g2 += d1
		}
		if math.Abs(g1) < eps && math.Abs(g2) < eps {
			break
		}

		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB

		step := 1.0
		for step >= minStep {
			newA, newB := A+step*dA, B+step*dB
			if newF := objective(newA, newB); newF < fval+0.0001*step*gd {
				A, B, fval = newA, newB, newF
				break
			}
			step /= 2
		}
		if step < minStep {
			break
		}
	}
	return A, B
}

func sigmoidPredict(dec, A, B float64) float64 {
	fApB := dec*A + B
	if fApB >= 0 {
		e := math.Exp(-fApB)
		return e / (1 + e)
	}
	return 1 / (1 + math.Exp(fApB))
}
