package predict

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Isaadqurashi/mlops-project/internal/artifact"
	"github.com/Isaadqurashi/mlops-project/internal/features"
	"github.com/Isaadqurashi/mlops-project/internal/model"
	"github.com/Isaadqurashi/mlops-project/internal/trainer"
)

func wavyBars(n int) []model.Bar {
	day0 := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, n)
	for i := range bars {
		c := 100 + 0.1*float64(i) + 3*math.Sin(float64(i)*2*math.Pi/7)
		bars[i] = model.Bar{Timestamp: day0.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1e5}
	}
	return bars
}

// trained fits all models for symbol "WAVE" on bars and returns the store
// and the trainer result.
func trained(t *testing.T, bars []model.Bar) (*artifact.Store, *trainer.Result, *model.FeatureTable) {
	t.Helper()
	dir := t.TempDir()
	store := artifact.NewStore(filepath.Join(dir, "models"), filepath.Join(dir, "reports"))

	table, err := features.NewBuilder(features.DefaultConfig()).Build("WAVE", bars)
	require.NoError(t, err)

	cfg := trainer.DefaultConfig()
	cfg.Trees = 10
	cfg.KMeansInit = 2
	res, err := trainer.New(cfg, features.DefaultConfig(), store).Run(context.Background(), table)
	require.NoError(t, err)
	return store, res, table
}

func TestPredict_AllModels(t *testing.T) {
	bars := wavyBars(200)
	store, _, _ := trained(t, bars)

	p, err := Load(store, "WAVE", features.NewBuilder(features.DefaultConfig()))
	require.NoError(t, err)
	require.NotNil(t, p.Clustering)
	require.NotNil(t, p.PCA)

	pred, err := p.Predict(bars)
	require.NoError(t, err)

	last := bars[len(bars)-1]
	assert.Equal(t, last.Timestamp, pred.AsOf)
	assert.Equal(t, last.Close, pred.Price)
	assert.InDelta(t, (last.Close-bars[len(bars)-2].Close)/bars[len(bars)-2].Close*100, pred.DayChangePct, 1e-9)
	assert.False(t, math.IsNaN(pred.PredictedPrice))
	assert.InDelta(t, (pred.PredictedPrice-pred.Price)/pred.Price*100, pred.ChangePct, 1e-9)

	assert.InDelta(t, 1.0, pred.Probabilities[0]+pred.Probabilities[1], 1e-9)
	assert.Equal(t, pred.Probabilities[1], pred.ProbUp)
	if pred.ProbUp > 0.5 {
		assert.Equal(t, Up, pred.Direction)
	} else {
		assert.Equal(t, Down, pred.Direction)
	}

	assert.GreaterOrEqual(t, pred.Regime, 0)
	assert.Less(t, pred.Regime, 3)
	assert.Len(t, pred.Components, 2)
}

func TestPredict_MatchesTrainingFeatures(t *testing.T) {
	bars := wavyBars(200)
	store, res, table := trained(t, bars)
	p, err := Load(store, "WAVE", features.NewBuilder(features.DefaultConfig()))
	require.NoError(t, err)

	// The live vector of a truncated series equals the training row of the
	// same day, so the predicted price equals the in-memory model's output.
	row := table.Rows[40]
	idx := -1
	for i, b := range bars {
		if b.Timestamp.Equal(row.Timestamp) {
			idx = i
		}
	}
	require.NotEqual(t, -1, idx)

	pred, err := p.Predict(bars[:idx+1])
	require.NoError(t, err)

	X, err := table.Slice(40, 41).Matrix(res.Metrics.Run.Features)
	require.NoError(t, err)
	want, err := res.Regression.Predict(X)
	require.NoError(t, err)
	assert.InDelta(t, want[0], pred.PredictedPrice, 1e-9)
}

func TestPredict_OptionalModelsMissing(t *testing.T) {
	bars := wavyBars(200)
	store, _, _ := trained(t, bars)
	require.NoError(t, os.Remove(store.ModelPath("WAVE", model.KindClustering)))
	require.NoError(t, os.Remove(store.ModelPath("WAVE", model.KindPCA)))

	p, err := Load(store, "WAVE", features.NewBuilder(features.DefaultConfig()))
	require.NoError(t, err)
	pred, err := p.Predict(bars)
	require.NoError(t, err)
	assert.Equal(t, NoRegime, pred.Regime)
	assert.Nil(t, pred.Components)
}

func TestPredict_ShortHistory(t *testing.T) {
	bars := wavyBars(200)
	store, _, _ := trained(t, bars)
	p, err := Load(store, "WAVE", features.NewBuilder(features.DefaultConfig()))
	require.NoError(t, err)

	_, err = p.Predict(bars[:30])
	assert.ErrorIs(t, err, model.ErrInsufficientHistory)
	_, err = p.Predict(nil)
	assert.ErrorIs(t, err, model.ErrInsufficientHistory)
}

func TestLoad_NotFound(t *testing.T) {
	dir := t.TempDir()
	store := artifact.NewStore(filepath.Join(dir, "models"), filepath.Join(dir, "reports"))

	_, err := Load(store, "NOPE", features.NewBuilder(features.DefaultConfig()))
	assert.ErrorIs(t, err, model.ErrArtifactNotFound)
}
