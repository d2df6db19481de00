// Package predict applies a symbol's persisted models to fresh price bars.
package predict

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Isaadqurashi/mlops-project/internal/artifact"
	"github.com/Isaadqurashi/mlops-project/internal/features"
	"github.com/Isaadqurashi/mlops-project/internal/ml"
	"github.com/Isaadqurashi/mlops-project/internal/model"
)

// ErrInvalidPrice is returned when the latest close cannot anchor a
// percentage change.
var ErrInvalidPrice = errors.New("latest close is not positive")

// NoRegime marks a prediction without a market regime, either because the
// clustering model is absent or volatility is undefined.
const NoRegime = -1

// Direction labels.
const (
	Up   = "UP"
	Down = "DOWN"
)

// Prediction is the model output for the latest bar of a series.
type Prediction struct {
	Symbol string    `json:"symbol"`
	AsOf   time.Time `json:"as_of"`

	Price        float64 `json:"price"`
	DayChangePct float64 `json:"day_change_pct"`

	PredictedPrice float64 `json:"predicted_price"`
	ChangePct      float64 `json:"expected_change_pct"`

	// Probabilities maps each direction label seen in training to its
	// soft-voted probability.
	Probabilities map[int]float64 `json:"probabilities"`
	ProbUp        float64         `json:"prob_up"`
	Direction     string          `json:"direction"`

	Regime     int       `json:"regime"`
	Components []float64 `json:"components,omitempty"`
}

// Predictor holds the loaded models of one symbol.
type Predictor struct {
	Symbol string

	Regression     artifact.Artifact[*ml.VotingRegressor]
	Classification artifact.Artifact[*ml.VotingClassifier]
	// Clustering and PCA are optional; nil when not trained.
	Clustering *artifact.Artifact[*ml.KMeans]
	PCA        *artifact.Artifact[*ml.PCA]

	// RegimeWindow must match the window the clustering model was fit with.
	RegimeWindow int

	builder *features.Builder
}

// Load reads the models of symbol from store. The regression and
// classification artifacts are required; a missing one yields
// model.ErrArtifactNotFound.
func Load(store *artifact.Store, symbol string, builder *features.Builder) (*Predictor, error) {
	reg, err := artifact.Load[*ml.VotingRegressor](store, symbol, model.KindRegression)
	if err != nil {
		return nil, err
	}
	clf, err := artifact.Load[*ml.VotingClassifier](store, symbol, model.KindClassification)
	if err != nil {
		return nil, err
	}
	p := &Predictor{
		Symbol:         symbol,
		Regression:     reg,
		Classification: clf,
		RegimeWindow:   features.DefaultRegimeWindow,
		builder:        builder,
	}

	km, err := artifact.Load[*ml.KMeans](store, symbol, model.KindClustering)
	switch {
	case err == nil:
		p.Clustering = &km
	case !errors.Is(err, model.ErrArtifactNotFound):
		return nil, err
	}
	pca, err := artifact.Load[*ml.PCA](store, symbol, model.KindPCA)
	switch {
	case err == nil:
		p.PCA = &pca
	case !errors.Is(err, model.ErrArtifactNotFound):
		return nil, err
	}
	return p, nil
}

// Predict computes the live feature vector from bars with the same code
// that built the training table, then applies every loaded model.
// At least one bar past the indicator warm-up is required.
func (p *Predictor) Predict(bars []model.Bar) (*Prediction, error) {
	rows := p.builder.Rows(bars)
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", p.Symbol, model.ErrInsufficientHistory)
	}
	last := rows[len(rows)-1]

	x, err := vector(&last, p.Regression.Meta.Features)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Symbol, err)
	}
	if last.Close <= 0 || math.IsNaN(last.Close) {
		return nil, fmt.Errorf("%s: %w: %v", p.Symbol, ErrInvalidPrice, last.Close)
	}

	out := &Prediction{
		Symbol: p.Symbol,
		AsOf:   last.Timestamp,
		Price:  last.Close,
		Regime: NoRegime,
	}
	if len(rows) > 1 && rows[len(rows)-2].Close > 0 {
		prev := rows[len(rows)-2].Close
		out.DayChangePct = (last.Close - prev) / prev * 100
	}

	price, err := p.Regression.Model.Predict([][]float64{x})
	if err != nil {
		return nil, fmt.Errorf("%s regression: %w", p.Symbol, err)
	}
	out.PredictedPrice = price[0]
	out.ChangePct = (out.PredictedPrice - out.Price) / out.Price * 100

	cx, err := vector(&last, p.Classification.Meta.Features)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Symbol, err)
	}
	proba, err := p.Classification.Model.PredictProba([][]float64{cx})
	if err != nil {
		return nil, fmt.Errorf("%s classification: %w", p.Symbol, err)
	}
	labels := p.Classification.Model.Classes()
	out.Probabilities = make(map[int]float64, len(labels))
	for i, l := range labels {
		out.Probabilities[l] = proba[0][i]
	}
	out.ProbUp = out.Probabilities[1]
	out.Direction = Down
	if labels[ml.Argmax(proba[0])] == 1 {
		out.Direction = Up
	}

	if p.Clustering != nil {
		if pt, ok := features.LatestRegimePoint(rows, p.RegimeWindow); ok {
			regime, err := p.Clustering.Model.Predict([][]float64{pt})
			if err != nil {
				return nil, fmt.Errorf("%s clustering: %w", p.Symbol, err)
			}
			out.Regime = regime[0]
		}
	}

	if p.PCA != nil {
		px, err := vector(&last, p.PCA.Meta.Features)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Symbol, err)
		}
		proj, err := p.PCA.Model.Transform([][]float64{px})
		if err != nil {
			return nil, fmt.Errorf("%s pca: %w", p.Symbol, err)
		}
		out.Components = proj[0]
	}
	return out, nil
}

// vector extracts cols from row. An undefined value means the series is
// still inside the indicator warm-up.
func vector(row *model.FeatureRow, cols []string) ([]float64, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: artifact lists no features", model.ErrMissingFeature)
	}
	x := make([]float64, len(cols))
	for i, c := range cols {
		v, ok := row.Value(c)
		if !ok {
			return nil, fmt.Errorf("%w: %s", model.ErrMissingFeature, c)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s undefined on %s", model.ErrInsufficientHistory, c, row.Timestamp.Format(model.DateLayout))
		}
		x[i] = v
	}
	return x, nil
}
