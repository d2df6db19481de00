package model

import (
	"encoding/json"
	"sort"
	"time"
)

// Model kinds, used as artifact names and metrics keys.
const (
	KindRegression     = "regression"
	KindClassification = "classification"
	KindClustering     = "clustering"
	KindPCA            = "pca"
)

// MetricsRecord is the evaluation document written once per training run.
type MetricsRecord struct {
	Run            RunInfo                `json:"run"`
	Regression     *RegressionMetrics     `json:"regression,omitempty"`
	Classification *ClassificationMetrics `json:"classification,omitempty"`
	Clustering     *ClusteringMetrics     `json:"clustering,omitempty"`
	PCA            *PCAMetrics            `json:"pca,omitempty"`
}

// RunInfo identifies the training run a record belongs to.
type RunInfo struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	TrainedAt time.Time `json:"trained_at"`
	Features  []string  `json:"features"`
	TrainRows int       `json:"train_rows"`
	TestRows  int       `json:"test_rows"`
}

type RegressionMetrics struct {
	MSE  float64 `json:"mse"`
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
}

type ClassificationMetrics struct {
	Accuracy float64              `json:"accuracy"`
	Report   ClassificationReport `json:"classification_report"`
}

type ClusteringMetrics struct {
	Inertia float64 `json:"inertia"`
	Sizes   []int   `json:"cluster_sizes"`
	Points  int     `json:"points"`
}

type PCAMetrics struct {
	ExplainedVarianceRatio []float64 `json:"explained_variance_ratio"`
	TotalVarianceExplained float64   `json:"total_variance_explained"`
}

// ClassScores holds precision, recall and F1 for one label or average.
type ClassScores struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1-score"`
	Support   int     `json:"support"`
}

// ClassificationReport mirrors the familiar per-label report layout: one
// entry per label, then accuracy, macro avg and weighted avg.
type ClassificationReport struct {
	Labels      []string
	PerLabel    map[string]ClassScores
	Accuracy    float64
	MacroAvg    ClassScores
	WeightedAvg ClassScores
}

func (r ClassificationReport) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.PerLabel)+3)
	for label, s := range r.PerLabel {
		out[label] = s
	}
	out["accuracy"] = r.Accuracy
	out["macro avg"] = r.MacroAvg
	out["weighted avg"] = r.WeightedAvg
	return json.Marshal(out)
}

func (r *ClassificationReport) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.PerLabel = make(map[string]ClassScores)
	r.Labels = r.Labels[:0]
	for key, msg := range raw {
		switch key {
		case "accuracy":
			if err := json.Unmarshal(msg, &r.Accuracy); err != nil {
				return err
			}
		case "macro avg":
			if err := json.Unmarshal(msg, &r.MacroAvg); err != nil {
				return err
			}
		case "weighted avg":
			if err := json.Unmarshal(msg, &r.WeightedAvg); err != nil {
				return err
			}
		default:
			var s ClassScores
			if err := json.Unmarshal(msg, &s); err != nil {
				return err
			}
			r.PerLabel[key] = s
			r.Labels = append(r.Labels, key)
		}
	}
	sort.Strings(r.Labels)
	return nil
}
