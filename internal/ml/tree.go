package ml

import (
	"math/rand"
	"sort"
)

// featureThreshold is the smallest gap between two sorted feature values
// that can hold a split.
const featureThreshold = 1e-7

// TreeNode is one node of a fitted CART tree. Leaves have Left == -1 and
// carry the prediction in Value: the mean target for regression, the class
// fractions for classification.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     []float64
}

// Tree is a fitted CART tree stored as a flat node array; node 0 is the root.
type Tree struct {
	Nodes []TreeNode
}

func (t *Tree) leaf(x []float64) []float64 {
	i := 0
	for t.Nodes[i].Left >= 0 {
		n := &t.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

// treeBuilder grows one unpruned tree: nodes split until pure or smaller
// than minSplit, each split chosen among a random subset of maxFeatures
// features.
type treeBuilder struct {
	X           [][]float64
	maxFeatures int
	minSplit    int
	minLeaf     int
	rng         *rand.Rand

	// Exactly one target is set.
	yReg   []float64
	yClass []int // class indices
	nClass int

	nodes []TreeNode
}

func (b *treeBuilder) build(samples []int) *Tree {
	b.nodes = b.nodes[:0]
	b.grow(samples)
	return &Tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(samples []int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, TreeNode{Left: -1, Right: -1, Value: b.leafValue(samples)})

	if len(samples) < b.minSplit || b.pure(samples) {
		return id
	}
	feature, threshold, ok := b.bestSplit(samples)
	if !ok {
		return id
	}

	left := make([]int, 0, len(samples))
	right := make([]int, 0, len(samples))
	for _, s := range samples {
		if b.X[s][feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	l := b.grow(left)
	r := b.grow(right)
	b.nodes[id] = TreeNode{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return id
}

func (b *treeBuilder) leafValue(samples []int) []float64 {
	if b.yClass != nil {
		v := make([]float64, b.nClass)
		for _, s := range samples {
			v[b.yClass[s]]++
		}
		for i := range v {
			v[i] /= float64(len(samples))
		}
		return v
	}
	sum := 0.0
	for _, s := range samples {
		sum += b.yReg[s]
	}
	return []float64{sum / float64(len(samples))}
}

func (b *treeBuilder) pure(samples []int) bool {
	if b.yClass != nil {
		first := b.yClass[samples[0]]
		for _, s := range samples[1:] {
			if b.yClass[s] != first {
				return false
			}
		}
		return true
	}
	first := b.yReg[samples[0]]
	for _, s := range samples[1:] {
		if b.yReg[s] != first {
			return false
		}
	}
	return true
}

// bestSplit visits features in random order until maxFeatures non-constant
// features have been scored, and returns the split with the best impurity
// improvement.
func (b *treeBuilder) bestSplit(samples []int) (feature int, threshold float64, ok bool) {
	d := len(b.X[0])
	sorted := make([]int, len(samples))
	bestScore := 0.0
	visited := 0

	for _, f := range b.rng.Perm(d) {
		if visited >= b.maxFeatures {
			break
		}
		copy(sorted, samples)
		sort.SliceStable(sorted, func(i, j int) bool { return b.X[sorted[i]][f] < b.X[sorted[j]][f] })
		if b.X[sorted[len(sorted)-1]][f] <= b.X[sorted[0]][f]+featureThreshold {
			continue // constant here; does not count towards maxFeatures
		}
		visited++

		pos, score, found := b.scan(sorted, f)
		if found && (!ok || score > bestScore) {
			lo, hi := b.X[sorted[pos]][f], b.X[sorted[pos+1]][f]
			threshold = lo/2 + hi/2
			if threshold >= hi {
				threshold = lo
			}
			feature, bestScore, ok = f, score, true
		}
	}
	return feature, threshold, ok
}

// scan sweeps the sorted samples and returns the index of the last sample
// going left under the best split, with its proxy score (higher is better).
func (b *treeBuilder) scan(sorted []int, f int) (best int, bestScore float64, found bool) {
	n := len(sorted)
	if b.yClass != nil {
		total := make([]float64, b.nClass)
		for _, s := range sorted {
			total[b.yClass[s]]++
		}
		left := make([]float64, b.nClass)
		for pos := 0; pos < n-1; pos++ {
			left[b.yClass[sorted[pos]]]++
			nl, nr := pos+1, n-pos-1
			if nl < b.minLeaf || nr < b.minLeaf {
				continue
			}
			if b.X[sorted[pos+1]][f] <= b.X[sorted[pos]][f]+featureThreshold {
				continue
			}
			// -(nl*gini_l + nr*gini_r) up to a constant: Σ cl²/nl + Σ cr²/nr
			sl, sr := 0.0, 0.0
			for c := range left {
				sl += left[c] * left[c]
				r := total[c] - left[c]
				sr += r * r
			}
			score := sl/float64(nl) + sr/float64(nr)
			if !found || score > bestScore {
				best, bestScore, found = pos, score, true
			}
		}
		return best, bestScore, found
	}

	total := 0.0
	for _, s := range sorted {
		total += b.yReg[s]
	}
	left := 0.0
	for pos := 0; pos < n-1; pos++ {
		left += b.yReg[sorted[pos]]
		nl, nr := pos+1, n-pos-1
		if nl < b.minLeaf || nr < b.minLeaf {
			continue
		}
		if b.X[sorted[pos+1]][f] <= b.X[sorted[pos]][f]+featureThreshold {
			continue
		}
		// Minimising summed squared error is maximising sl²/nl + sr²/nr.
		right := total - left
		score := left*left/float64(nl) + right*right/float64(nr)
		if !found || score > bestScore {
			best, bestScore, found = pos, score, true
		}
	}
	return best, bestScore, found
}
