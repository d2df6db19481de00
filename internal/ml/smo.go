package ml

import "math"

const tau = 1e-12

// smoProblem is the dual problem solved by sequential minimal optimisation:
//
//	min ½ aᵀQa + pᵀa   subject to yᵀa = 0, 0 ≤ a_i ≤ C
//
// with y_i ∈ {+1,-1}. Q is supplied as a column function so SVC and ε-SVR
// can share the solver.
type smoProblem struct {
	n      int
	q      func(i int) []float64 // column i of Q
	qd     []float64             // diagonal of Q
	p      []float64
	y      []float64
	c      float64
	tol    float64
	maxIts int
}

// smoSolution holds the optimal multipliers and the bias term rho.
type smoSolution struct {
	alpha []float64
	rho   float64
	iters int
}

// solve runs SMO with second-order working set selection and no shrinking.
func (pr *smoProblem) solve() smoSolution {
	n := pr.n
	alpha := make([]float64, n)
	grad := append([]float64(nil), pr.p...) // Qa + p with a = 0

	upper := func(i int) bool { return alpha[i] >= pr.c }
	lower := func(i int) bool { return alpha[i] <= 0 }

	iter := 0
	for ; iter < pr.maxIts; iter++ {
		i, j, done := pr.selectPair(alpha, grad, upper, lower)
		if done {
			break
		}

		qi, qj := pr.q(i), pr.q(j)
		oldI, oldJ := alpha[i], alpha[j]
		C := pr.c

		if pr.y[i] != pr.y[j] {
			quad := pr.qd[i] + pr.qd[j] + 2*qi[j]
			if quad <= 0 {
				quad = tau
			}
			delta := (-grad[i] - grad[j]) / quad
			diff := alpha[i] - alpha[j]
			alpha[i] += delta
			alpha[j] += delta
			if diff > 0 {
				if alpha[j] < 0 {
					alpha[j] = 0
					alpha[i] = diff
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = -diff
			}
			if diff > 0 {
				if alpha[i] > C {
					alpha[i] = C
					alpha[j] = C - diff
				}
			} else if alpha[j] > C {
				alpha[j] = C
				alpha[i] = C + diff
			}
		} else {
			quad := pr.qd[i] + pr.qd[j] - 2*qi[j]
			if quad <= 0 {
				quad = tau
			}
			delta := (grad[i] - grad[j]) / quad
			sum := alpha[i] + alpha[j]
			alpha[i] -= delta
			alpha[j] += delta
			if sum > C {
				if alpha[i] > C {
					alpha[i] = C
					alpha[j] = sum - C
				}
			} else if alpha[j] < 0 {
				alpha[j] = 0
				alpha[i] = sum
			}
			if sum > C {
				if alpha[j] > C {
					alpha[j] = C
					alpha[i] = sum - C
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = sum
			}
		}

		dI, dJ := alpha[i]-oldI, alpha[j]-oldJ
		for k := 0; k < n; k++ {
			grad[k] += qi[k]*dI + qj[k]*dJ
		}
	}

	return smoSolution{alpha: alpha, rho: pr.rho(alpha, grad), iters: iter}
}

// selectPair picks the maximal-violating i and the j with the largest
// second-order decrease of the objective. done is true once the KKT gap is
// below tol.
func (pr *smoProblem) selectPair(alpha, grad []float64, upper, lower func(int) bool) (int, int, bool) {
	gmax, gmax2 := math.Inf(-1), math.Inf(-1)
	i := -1
	for t := 0; t < pr.n; t++ {
		if pr.y[t] > 0 {
			if !upper(t) && -grad[t] >= gmax {
				gmax, i = -grad[t], t
			}
		} else if !lower(t) && grad[t] >= gmax {
			gmax, i = grad[t], t
		}
	}
	if i < 0 {
		return 0, 0, true
	}

	qi := pr.q(i)
	j := -1
	objMin := math.Inf(1)
	for t := 0; t < pr.n; t++ {
		var gradDiff, quad float64
		if pr.y[t] > 0 {
			if lower(t) {
				continue
			}
			if grad[t] >= gmax2 {
				gmax2 = grad[t]
			}
			gradDiff = gmax + grad[t]
			quad = pr.qd[i] + pr.qd[t] - 2*pr.y[i]*qi[t]
		} else {
			if upper(t) {
				continue
			}
			if -grad[t] >= gmax2 {
				gmax2 = -grad[t]
			}
			gradDiff = gmax - grad[t]
			quad = pr.qd[i] + pr.qd[t] + 2*pr.y[i]*qi[t]
		}
		if gradDiff <= 0 {
			continue
		}
		if quad <= 0 {
			quad = tau
		}
		if obj := -(gradDiff * gradDiff) / quad; obj <= objMin {
			objMin, j = obj, t
		}
	}

	if gmax+gmax2 < pr.tol || j < 0 {
		return 0, 0, true
	}
	return i, j, false
}

// rho averages y_i*grad_i over free multipliers, falling back to the middle
// of the feasible interval when none are free.
func (pr *smoProblem) rho(alpha, grad []float64) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	sumFree, nFree := 0.0, 0
	for i := 0; i < pr.n; i++ {
		yg := pr.y[i] * grad[i]
		switch {
		case alpha[i] >= pr.c:
			if pr.y[i] < 0 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		case alpha[i] <= 0:
			if pr.y[i] > 0 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		default:
			nFree++
			sumFree += yg
		}
	}
	if nFree > 0 {
		return sumFree / float64(nFree)
	}
	return (ub + lb) / 2
}
