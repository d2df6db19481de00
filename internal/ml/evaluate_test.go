package ml

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Isaadqurashi/mlops-project/internal/model"
)

func TestRegressionReport(t *testing.T) {
	// errors: 1, -2, 0, 3 → mse = 14/4 = 3.5, mae = 6/4 = 1.5
	r := RegressionReport([]float64{10, 20, 30, 40}, []float64{9, 22, 30, 37})
	assert.InDelta(t, 3.5, r.MSE, 1e-12)
	assert.InDelta(t, 1.5, r.MAE, 1e-12)
	assert.InDelta(t, math.Sqrt(3.5), r.RMSE, 1e-12)
}

func TestClassificationReport(t *testing.T) {
	// label 0: tp=1 fp=0 fn=1 → P=1, R=0.5, F1=2/3
	// label 1: tp=2 fp=1 fn=0 → P=2/3, R=1, F1=0.8
	r := ClassificationReport([]int{0, 0, 1, 1}, []int{0, 1, 1, 1})

	assert.Equal(t, []string{"0", "1"}, r.Labels)
	assert.InDelta(t, 0.75, r.Accuracy, 1e-12)

	l0, l1 := r.PerLabel["0"], r.PerLabel["1"]
	assert.InDelta(t, 1.0, l0.Precision, 1e-12)
	assert.InDelta(t, 0.5, l0.Recall, 1e-12)
	assert.InDelta(t, 2.0/3, l0.F1, 1e-12)
	assert.Equal(t, 2, l0.Support)
	assert.InDelta(t, 2.0/3, l1.Precision, 1e-12)
	assert.InDelta(t, 1.0, l1.Recall, 1e-12)
	assert.InDelta(t, 0.8, l1.F1, 1e-12)

	assert.InDelta(t, 5.0/6, r.MacroAvg.Precision, 1e-12)
	assert.InDelta(t, 0.75, r.MacroAvg.Recall, 1e-12)
	assert.InDelta(t, (2.0/3+0.8)/2, r.MacroAvg.F1, 1e-12)
	assert.Equal(t, 4, r.WeightedAvg.Support)
	assert.InDelta(t, r.MacroAvg.F1, r.WeightedAvg.F1, 1e-12)
}

func TestClassificationReport_MissingPredictionsAreZero(t *testing.T) {
	// Nothing predicted as 0: precision for 0 is 0/0 → 0.
	r := ClassificationReport([]int{0, 1, 1}, []int{1, 1, 1})
	assert.Equal(t, 0.0, r.PerLabel["0"].Precision)
	assert.Equal(t, 0.0, r.PerLabel["0"].F1)

	_, err := json.Marshal(model.ClassificationMetrics{Accuracy: r.Accuracy, Report: r})
	require.NoError(t, err)
}

func TestClassificationReport_JSONLayout(t *testing.T) {
	r := ClassificationReport([]int{1, 1}, []int{1, 1})
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "1")
	assert.Contains(t, raw, "accuracy")
	assert.Contains(t, raw, "macro avg")
	assert.Contains(t, raw, "weighted avg")

	var back model.ClassificationReport
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r.Labels, back.Labels)
	assert.Equal(t, r.PerLabel, back.PerLabel)
}
