package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// KMeansParams configures k-means.
type KMeansParams struct {
	K       int
	NInit   int
	MaxIter int
	// Tol is relative: convergence is declared when the squared centre shift
	// falls below Tol times the mean per-feature variance of the data.
	Tol  float64
	Seed int64
}

// KMeans clusters points with Lloyd iterations from k-means++ seeds. The
// best of NInit runs by inertia is kept.
type KMeans struct {
	Params  KMeansParams
	Centers [][]float64
	Inertia float64
	Labels  []int // cluster of each training point
	Iter    int
}

func NewKMeans(p KMeansParams) *KMeans { return &KMeans{Params: p} }

func (m *KMeans) Fit(X [][]float64) error {
	if _, err := checkMatrix(X); err != nil {
		return err
	}
	k := m.Params.K
	if k <= 0 {
		return fmt.Errorf("kmeans: k must be positive, got %d", k)
	}
	if len(X) < k {
		return fmt.Errorf("%w: kmeans: %d points for %d clusters", ErrShape, len(X), k)
	}
	nInit := max(1, m.Params.NInit)
	maxIter := max(1, m.Params.MaxIter)
	tol := m.Params.Tol * meanVariance(X)

	rng := rand.New(rand.NewSource(m.Params.Seed))
	best := math.Inf(1)
	for run := 0; run < nInit; run++ {
		centers := kmeansPlusPlus(X, k, rng)
		labels, inertia, iters := lloyd(X, centers, maxIter, tol)
		if inertia < best {
			best = inertia
			m.Centers, m.Labels, m.Inertia, m.Iter = centers, labels, inertia, iters
		}
	}
	return nil
}

// Predict returns the nearest centre for each row.
func (m *KMeans) Predict(X [][]float64) ([]int, error) {
	if m.Centers == nil {
		return nil, ErrNotFitted
	}
	if err := checkWidth(X, len(m.Centers[0])); err != nil {
		return nil, err
	}
	out := make([]int, len(X))
	for i, x := range X {
		out[i], _ = nearest(x, m.Centers)
	}
	return out, nil
}

// Sizes counts training points per cluster.
func (m *KMeans) Sizes() []int {
	sizes := make([]int, len(m.Centers))
	for _, l := range m.Labels {
		sizes[l]++
	}
	return sizes
}

// kmeansPlusPlus picks the first centre uniformly, then each next centre
// among 2+ln(k) candidates drawn proportionally to squared distance,
// keeping the candidate that lowers the potential most.
func kmeansPlusPlus(X [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(X)
	trials := 2 + int(math.Log(float64(k)))
	centers := [][]float64{clone(X[rng.Intn(n)])}

	closest := make([]float64, n)
	potential := 0.0
	for i, x := range X {
		closest[i] = sqDist(x, centers[0])
		potential += closest[i]
	}

	for len(centers) < k {
		bestCand, bestPot := -1, math.Inf(1)
		var bestDist []float64
		for t := 0; t < trials; t++ {
			cand := sampleWeighted(closest, potential, rng)
			dist := make([]float64, n)
			pot := 0.0
			for i, x := range X {
				dist[i] = math.Min(closest[i], sqDist(x, X[cand]))
				pot += dist[i]
			}
			if pot < bestPot {
				bestCand, bestPot, bestDist = cand, pot, dist
			}
		}
		centers = append(centers, clone(X[bestCand]))
		closest, potential = bestDist, bestPot
	}
	return centers
}

func sampleWeighted(w []float64, total float64, rng *rand.Rand) int {
	if total <= 0 {
		return rng.Intn(len(w))
	}
	r := rng.Float64() * total
	acc := 0.0
	for i, v := range w {
		acc += v
		if r < acc {
			return i
		}
	}
	return len(w) - 1
}

// lloyd refines centers in place. An empty cluster keeps its centre.
func lloyd(X [][]float64, centers [][]float64, maxIter int, tol float64) (labels []int, inertia float64, iters int) {
	d := len(X[0])
	labels = make([]int, len(X))
	for iters = 1; iters <= maxIter; iters++ {
		for i, x := range X {
			labels[i], _ = nearest(x, centers)
		}

		sums := make([][]float64, len(centers))
		counts := make([]int, len(centers))
		for c := range sums {
			sums[c] = make([]float64, d)
		}
		for i, x := range X {
			c := labels[i]
			counts[c]++
			for j, v := range x {
				sums[c][j] += v
			}
		}

		shift := 0.0
		for c := range centers {
			if counts[c] == 0 {
				continue
			}
			for j := range sums[c] {
				v := sums[c][j] / float64(counts[c])
				shift += (v - centers[c][j]) * (v - centers[c][j])
				centers[c][j] = v
			}
		}
		if shift <= tol {
			break
		}
	}
	if iters > maxIter {
		iters = maxIter
	}

	for i, x := range X {
		var dist float64
		labels[i], dist = nearest(x, centers)
		inertia += dist
	}
	return labels, inertia, iters
}

func nearest(x []float64, centers [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, center := range centers {
		if d := sqDist(x, center); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func meanVariance(X [][]float64) float64 {
	d := len(X[0])
	total := 0.0
	for j := 0; j < d; j++ {
		mean := 0.0
		for _, row := range X {
			mean += row[j]
		}
		mean /= float64(len(X))
		v := 0.0
		for _, row := range X {
			v += (row[j] - mean) * (row[j] - mean)
		}
		total += v / float64(len(X))
	}
	return total / float64(d)
}

func clone(x []float64) []float64 { return append([]float64(nil), x...) }
