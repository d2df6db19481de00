package ml

import (
	"encoding/gob"
	"fmt"
)

func init() {
	gob.Register(&LinearRegression{})
	gob.Register(&RandomForestRegressor{})
	gob.Register(&RandomForestClassifier{})
	gob.Register(&SVR{})
	gob.Register(&SVC{})
}

// NamedRegressor is one member of a VotingRegressor.
type NamedRegressor struct {
	Name  string
	Model Regressor
}

// VotingRegressor is a fixed, ordered set of regressors whose predictions
// are averaged with equal weight.
type VotingRegressor struct {
	Members []NamedRegressor
}

func NewVotingRegressor(members ...NamedRegressor) *VotingRegressor {
	return &VotingRegressor{Members: members}
}

// Fit fits every member on the same data. The first member error is
// returned unchanged apart from naming the member.
func (v *VotingRegressor) Fit(X [][]float64, y []float64) error {
	if len(v.Members) == 0 {
		return fmt.Errorf("voting regressor: no members")
	}
	for _, m := range v.Members {
		if err := m.Model.Fit(X, y); err != nil {
			return fmt.Errorf("fit %s: %w", m.Name, err)
		}
	}
	return nil
}

func (v *VotingRegressor) Predict(X [][]float64) ([]float64, error) {
	if len(v.Members) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for _, m := range v.Members {
		pred, err := m.Model.Predict(X)
		if err != nil {
			return nil, fmt.Errorf("predict %s: %w", m.Name, err)
		}
		for i, p := range pred {
			out[i] += p
		}
	}
	for i := range out {
		out[i] /= float64(len(v.Members))
	}
	return out, nil
}

// NamedClassifier is one member of a VotingClassifier.
type NamedClassifier struct {
	Name  string
	Model Classifier
}

// VotingClassifier soft-votes: member probabilities are averaged per class
// and the label is the argmax, ties going to the smaller label.
type VotingClassifier struct {
	Members []NamedClassifier
	Labels  []int
}

func NewVotingClassifier(members ...NamedClassifier) *VotingClassifier {
	return &VotingClassifier{Members: members}
}

func (v *VotingClassifier) Classes() []int { return v.Labels }

func (v *VotingClassifier) Fit(X [][]float64, y []int) error {
	if len(v.Members) == 0 {
		return fmt.Errorf("voting classifier: no members")
	}
	for _, m := range v.Members {
		if err := m.Model.Fit(X, y); err != nil {
			return fmt.Errorf("fit %s: %w", m.Name, err)
		}
	}
	v.Labels = uniqueSorted(y)
	return nil
}

func (v *VotingClassifier) PredictProba(X [][]float64) ([][]float64, error) {
	if v.Labels == nil {
		return nil, ErrNotFitted
	}
	idx := labelIndex(v.Labels)
	out := make([][]float64, len(X))
	for i := range out {
		out[i] = make([]float64, len(v.Labels))
	}
	for _, m := range v.Members {
		proba, err := m.Model.PredictProba(X)
		if err != nil {
			return nil, fmt.Errorf("predict %s: %w", m.Name, err)
		}
		classes := m.Model.Classes()
		for i, p := range proba {
			for c, pc := range p {
				out[i][idx[classes[c]]] += pc
			}
		}
	}
	for i := range out {
		for c := range out[i] {
			out[i][c] /= float64(len(v.Members))
		}
	}
	return out, nil
}

// Predict returns the soft-voted label of each row.
func (v *VotingClassifier) Predict(X [][]float64) ([]int, error) {
	return PredictLabels(v, X)
}

// Probability returns the averaged probability of label for each row, or
// zeros when the model never saw label.
func (v *VotingClassifier) Probability(X [][]float64, label int) ([]float64, error) {
	proba, err := v.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for c, l := range v.Labels {
		if l != label {
			continue
		}
		for i := range proba {
			out[i] = proba[i][c]
		}
	}
	return out, nil
}
