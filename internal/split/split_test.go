package split

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Isaadqurashi/mlops-project/internal/model"
)

func table(n int) *model.FeatureTable {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	rows := make([]model.FeatureRow, n)
	for i := range rows {
		rows[i].Timestamp = start.AddDate(0, 0, i)
		rows[i].Close = float64(i)
	}
	return model.NewFeatureTable("TEST", rows)
}

func TestSplit_Chronological(t *testing.T) {
	for _, f := range []float64{0.05, 0.2, 0.33, 0.5, 0.9} {
		train, test, err := Split(table(100), f, 700)
		require.NoError(t, err)
		require.Equal(t, 100, train.Len()+test.Len())
		if train.Len() > 0 && test.Len() > 0 {
			assert.True(t, train.LastTimestamp().Before(test.FirstTimestamp()), "fraction %v", f)
		}
	}
}

func TestSplit_CutIndex(t *testing.T) {
	// floor(70 * 0.8) = 56
	train, test, err := Split(table(70), 0.2, 700)
	require.NoError(t, err)
	assert.Equal(t, 56, train.Len())
	assert.Equal(t, 14, test.Len())
	assert.Equal(t, 55.0, train.Rows[55].Close)
	assert.Equal(t, 56.0, test.Rows[0].Close)
}

func TestSplit_Deterministic(t *testing.T) {
	a1, b1, _ := Split(table(90), 0.3, 0)
	a2, b2, _ := Split(table(90), 0.3, 0)
	assert.Equal(t, a1.Rows, a2.Rows)
	assert.Equal(t, b1.Rows, b2.Rows)
}

func TestSplit_ReappliesWindow(t *testing.T) {
	train, test, err := Split(table(1000), 0.2, 700)
	require.NoError(t, err)
	assert.Equal(t, 560, train.Len())
	assert.Equal(t, 140, test.Len())
	assert.Equal(t, 300.0, train.Rows[0].Close)

	// A table already shorter than the window is left alone.
	train, test, err = Split(table(650), 0.2, 700)
	require.NoError(t, err)
	assert.Equal(t, 650, train.Len()+test.Len())
}

func TestSplit_InvalidFraction(t *testing.T) {
	for _, f := range []float64{0, 1, -0.1, 1.5} {
		_, _, err := Split(table(10), f, 700)
		assert.ErrorIs(t, err, model.ErrInvalidFraction, "fraction %v", f)
	}
}

func TestSplit_DegeneratePartition(t *testing.T) {
	// floor(1 * 0.8) = 0 → empty train, valid tables.
	train, test, err := Split(table(1), 0.2, 700)
	require.NoError(t, err)
	assert.Equal(t, 0, train.Len())
	assert.Equal(t, 1, test.Len())

	train, test, err = Split(table(0), 0.2, 700)
	require.NoError(t, err)
	assert.Equal(t, 0, train.Len())
	assert.Equal(t, 0, test.Len())
}

func TestSplit_KeepsColumnSet(t *testing.T) {
	tbl := table(20).WithColumns([]string{model.ColTimestamp, model.ColClose, model.ColSMA20})
	train, test, err := Split(tbl, 0.25, 700)
	require.NoError(t, err)
	assert.False(t, train.Has(model.ColLogReturn))
	assert.True(t, test.Has(model.ColSMA20))
}
