package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeBlobs() [][]float64 {
	centres := [][]float64{{0, 0}, {10, 10}, {20, 0}}
	jitter := [][]float64{{0.1, 0}, {-0.1, 0.05}, {0, -0.1}, {0.05, 0.1}, {-0.05, -0.05}}
	var X [][]float64
	for _, c := range centres {
		for _, j := range jitter {
			X = append(X, []float64{c[0] + j[0], c[1] + j[1]})
		}
	}
	return X
}

func defaultKMeans() KMeansParams {
	return KMeansParams{K: 3, NInit: 10, MaxIter: 300, Tol: 1e-4, Seed: 42}
}

func TestKMeans_FindsBlobs(t *testing.T) {
	X := threeBlobs()
	m := NewKMeans(defaultKMeans())
	require.NoError(t, m.Fit(X))

	assert.Equal(t, []int{5, 5, 5}, m.Sizes())
	assert.Less(t, m.Inertia, 0.5)

	// Points of one blob share a cluster; different blobs do not.
	labels, err := m.Predict(X)
	require.NoError(t, err)
	for b := 0; b < 3; b++ {
		for i := 1; i < 5; i++ {
			assert.Equal(t, labels[b*5], labels[b*5+i])
		}
	}
	assert.NotEqual(t, labels[0], labels[5])
	assert.NotEqual(t, labels[5], labels[10])
	assert.NotEqual(t, labels[0], labels[10])
}

func TestKMeans_SeedReproducible(t *testing.T) {
	X := threeBlobs()
	a, b := NewKMeans(defaultKMeans()), NewKMeans(defaultKMeans())
	require.NoError(t, a.Fit(X))
	require.NoError(t, b.Fit(X))
	assert.Equal(t, a.Centers, b.Centers)
	assert.Equal(t, a.Inertia, b.Inertia)
}

func TestKMeans_TooFewPoints(t *testing.T) {
	err := NewKMeans(defaultKMeans()).Fit([][]float64{{1, 1}, {2, 2}})
	assert.ErrorIs(t, err, ErrShape)
}

func TestKMeans_NotFitted(t *testing.T) {
	_, err := NewKMeans(defaultKMeans()).Predict([][]float64{{1, 1}})
	assert.ErrorIs(t, err, ErrNotFitted)
}
