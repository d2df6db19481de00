package ml

import (
	"math"
	"strconv"

	"github.com/Isaadqurashi/mlops-project/internal/model"
)

// MeanSquaredError is Σ(y-ŷ)²/n.
func MeanSquaredError(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	s := 0.0
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		s += d * d
	}
	return s / float64(len(yTrue))
}

// MeanAbsoluteError is Σ|y-ŷ|/n.
func MeanAbsoluteError(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	s := 0.0
	for i := range yTrue {
		s += math.Abs(yTrue[i] - yPred[i])
	}
	return s / float64(len(yTrue))
}

// RegressionReport computes mse, mae and rmse.
func RegressionReport(yTrue, yPred []float64) model.RegressionMetrics {
	mse := MeanSquaredError(yTrue, yPred)
	return model.RegressionMetrics{
		MSE:  mse,
		MAE:  MeanAbsoluteError(yTrue, yPred),
		RMSE: math.Sqrt(mse),
	}
}

// Accuracy is the fraction of matching labels.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	hit := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(yTrue))
}

// ClassificationReport computes per-label precision, recall, F1 and support
// over the union of true and predicted labels, plus macro and
// support-weighted averages. Undefined ratios (0/0) are reported as 0.
func ClassificationReport(yTrue, yPred []int) model.ClassificationReport {
	labels := uniqueSorted(append(append([]int(nil), yTrue...), yPred...))
	rep := model.ClassificationReport{
		PerLabel: make(map[string]model.ClassScores, len(labels)),
		Accuracy: Accuracy(yTrue, yPred),
	}

	total := 0
	for _, l := range labels {
		tp, fp, fn := 0, 0, 0
		for i := range yTrue {
			switch {
			case yTrue[i] == l && yPred[i] == l:
				tp++
			case yPred[i] == l:
				fp++
			case yTrue[i] == l:
				fn++
			}
		}
		s := model.ClassScores{
			Precision: ratio(tp, tp+fp),
			Recall:    ratio(tp, tp+fn),
			Support:   tp + fn,
		}
		if s.Precision+s.Recall > 0 {
			s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}

		name := strconv.Itoa(l)
		rep.Labels = append(rep.Labels, name)
		rep.PerLabel[name] = s

		rep.MacroAvg.Precision += s.Precision
		rep.MacroAvg.Recall += s.Recall
		rep.MacroAvg.F1 += s.F1
		w := float64(s.Support)
		rep.WeightedAvg.Precision += w * s.Precision
		rep.WeightedAvg.Recall += w * s.Recall
		rep.WeightedAvg.F1 += w * s.F1
		total += s.Support
	}

	if n := float64(len(labels)); n > 0 {
		rep.MacroAvg.Precision /= n
		rep.MacroAvg.Recall /= n
		rep.MacroAvg.F1 /= n
	}
	if total > 0 {
		rep.WeightedAvg.Precision /= float64(total)
		rep.WeightedAvg.Recall /= float64(total)
		rep.WeightedAvg.F1 /= float64(total)
	}
	rep.MacroAvg.Support = total
	rep.WeightedAvg.Support = total
	return rep
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
