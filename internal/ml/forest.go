package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// ForestParams configures a random forest.
type ForestParams struct {
	Trees int
	Seed  int64
	// Jobs is the number of trees fitted concurrently; values below 2 fit
	// sequentially. Each tree draws from its own seeded source, so the
	// result does not depend on Jobs.
	Jobs int
}

// RandomForestRegressor averages bootstrapped regression trees that consider
// every feature at each split.
type RandomForestRegressor struct {
	Params   ForestParams
	Trees    []*Tree
	Features int
}

func NewRandomForestRegressor(p ForestParams) *RandomForestRegressor {
	return &RandomForestRegressor{Params: p}
}

func (m *RandomForestRegressor) Fit(X [][]float64, y []float64) error {
	d, err := checkXY(X, len(y))
	if err != nil {
		return err
	}
	trees, err := fitForest(m.Params, len(X), func(rng *rand.Rand, samples []int) *Tree {
		b := &treeBuilder{X: X, yReg: y, maxFeatures: d, minSplit: 2, minLeaf: 1, rng: rng}
		return b.build(samples)
	})
	if err != nil {
		return fmt.Errorf("random forest regressor: %w", err)
	}
	m.Trees, m.Features = trees, d
	return nil
}

func (m *RandomForestRegressor) Predict(X [][]float64) ([]float64, error) {
	if len(m.Trees) == 0 {
		return nil, ErrNotFitted
	}
	if err := checkWidth(X, m.Features); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, x := range X {
		sum := 0.0
		for _, t := range m.Trees {
			sum += t.leaf(x)[0]
		}
		out[i] = sum / float64(len(m.Trees))
	}
	return out, nil
}

// RandomForestClassifier averages the leaf class fractions of bootstrapped
// gini trees that consider sqrt(features) candidates at each split.
type RandomForestClassifier struct {
	Params   ForestParams
	Trees    []*Tree
	Labels   []int
	Features int
}

func NewRandomForestClassifier(p ForestParams) *RandomForestClassifier {
	return &RandomForestClassifier{Params: p}
}

func (m *RandomForestClassifier) Classes() []int { return m.Labels }

func (m *RandomForestClassifier) Fit(X [][]float64, y []int) error {
	d, err := checkXY(X, len(y))
	if err != nil {
		return err
	}
	classes := uniqueSorted(y)
	idx := labelIndex(classes)
	encoded := make([]int, len(y))
	for i, v := range y {
		encoded[i] = idx[v]
	}
	maxFeatures := max(1, int(math.Sqrt(float64(d))))

	trees, err := fitForest(m.Params, len(X), func(rng *rand.Rand, samples []int) *Tree {
		b := &treeBuilder{
			X: X, yClass: encoded, nClass: len(classes),
			maxFeatures: maxFeatures, minSplit: 2, minLeaf: 1, rng: rng,
		}
		return b.build(samples)
	})
	if err != nil {
		return fmt.Errorf("random forest classifier: %w", err)
	}
	m.Trees, m.Labels, m.Features = trees, classes, d
	return nil
}

func (m *RandomForestClassifier) PredictProba(X [][]float64) ([][]float64, error) {
	if len(m.Trees) == 0 {
		return nil, ErrNotFitted
	}
	if err := checkWidth(X, m.Features); err != nil {
		return nil, err
	}
	out := make([][]float64, len(X))
	for i, x := range X {
		p := make([]float64, len(m.Labels))
		for _, t := range m.Trees {
			for c, v := range t.leaf(x) {
				p[c] += v
			}
		}
		for c := range p {
			p[c] /= float64(len(m.Trees))
		}
		out[i] = p
	}
	return out, nil
}

// fitForest draws one seed and one bootstrap sample per tree from a source
// seeded with p.Seed, then grows the trees.
func fitForest(p ForestParams, n int, grow func(*rand.Rand, []int) *Tree) ([]*Tree, error) {
	if p.Trees <= 0 {
		return nil, fmt.Errorf("trees must be positive, got %d", p.Trees)
	}
	master := rand.New(rand.NewSource(p.Seed))
	seeds := make([]int64, p.Trees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]*Tree, p.Trees)
	fit := func(i int) {
		rng := rand.New(rand.NewSource(seeds[i]))
		samples := make([]int, n)
		for j := range samples {
			samples[j] = rng.Intn(n)
		}
		trees[i] = grow(rng, samples)
	}

	if p.Jobs < 2 {
		for i := range trees {
			fit(i)
		}
		return trees, nil
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < p.Jobs; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fit(i)
			}
		}()
	}
	for i := range trees {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return trees, nil
}
