// Package trainer fits the four per-symbol models on a feature table,
// evaluates them on the held-out partition and persists artifacts and
// metrics.
package trainer

import (
	"context"
	"fmt"
	"time"

	"github.com/Isaadqurashi/mlops-project/internal/artifact"
	"github.com/Isaadqurashi/mlops-project/internal/features"
	"github.com/Isaadqurashi/mlops-project/internal/logger"
	"github.com/Isaadqurashi/mlops-project/internal/ml"
	"github.com/Isaadqurashi/mlops-project/internal/model"
	"github.com/Isaadqurashi/mlops-project/internal/split"
)

// Member names of the ensembles.
const (
	MemberLinear = "lr"
	MemberForest = "rf"
	MemberSVM    = "svm"
)

// Trainer fits and persists models. One Trainer may serve many symbols
// sequentially; each symbol writes only its own artifact directory.
type Trainer struct {
	cfg      Config
	features features.Config
	store    *artifact.Store
	now      func() time.Time
}

// New creates a trainer writing to store. fcfg supplies the feature column
// sets and the rolling window the splitter re-applies.
func New(cfg Config, fcfg features.Config, store *artifact.Store) *Trainer {
	return &Trainer{cfg: cfg, features: fcfg, store: store, now: time.Now}
}

// Result is the outcome of one training run.
type Result struct {
	Metrics model.MetricsRecord

	Regression     *ml.VotingRegressor
	Classification *ml.VotingClassifier
	Clustering     *ml.KMeans
	PCA            *ml.PCA
}

// SelectFeatures returns the model input columns for t: the base columns
// followed by the stationary columns when every stationary column is
// present, the base columns alone otherwise.
func (tr *Trainer) SelectFeatures(ctx context.Context, t *model.FeatureTable) ([]string, error) {
	for _, c := range tr.features.BaseColumns {
		if !t.Has(c) {
			return nil, fmt.Errorf("%w: %s", model.ErrMissingFeature, c)
		}
	}
	cols := append([]string(nil), tr.features.BaseColumns...)

	var missing []string
	for _, c := range tr.features.StationaryColumns {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	l := logger.Ctx(ctx)
	if len(missing) > 0 {
		l.Warn().Str("symbol", t.Symbol).Strs("missing", missing).Strs("features", cols).
			Msg("stationary features unavailable, using base features only")
		return cols, nil
	}
	cols = append(cols, tr.features.StationaryColumns...)
	l.Info().Str("symbol", t.Symbol).Strs("features", cols).Msg("using base and stationary features")
	return cols, nil
}

// Run splits t chronologically, fits all four models, and writes their
// artifacts and the metrics record. A run ID is taken from ctx or created.
func (tr *Trainer) Run(ctx context.Context, t *model.FeatureTable) (*Result, error) {
	runID := logger.RunID(ctx)
	if runID == "" {
		runID = logger.NewRunID()
		ctx = logger.WithRunID(ctx, runID)
	}
	l := logger.Ctx(ctx).With().Str("symbol", t.Symbol).Logger()

	cols, err := tr.SelectFeatures(ctx, t)
	if err != nil {
		return nil, err
	}
	train, test, err := split.Split(t, tr.cfg.TestFraction, tr.features.RollingWindowDays)
	if err != nil {
		return nil, err
	}
	if train.Len() == 0 || test.Len() == 0 {
		return nil, fmt.Errorf("%w: %s has %d train and %d test rows",
			model.ErrEmptyPartition, t.Symbol, train.Len(), test.Len())
	}

	meta := func(kind string) artifact.Meta {
		return artifact.Meta{Symbol: t.Symbol, Kind: kind, RunID: runID, TrainedAt: tr.now().UTC(), Features: cols}
	}
	res := &Result{Metrics: model.MetricsRecord{Run: model.RunInfo{
		ID:        runID,
		Symbol:    t.Symbol,
		TrainedAt: tr.now().UTC(),
		Features:  cols,
		TrainRows: train.Len(),
		TestRows:  test.Len(),
	}}}

	start := time.Now()
	reg, regMetrics, err := tr.TrainRegression(ctx, train, test, cols)
	if err != nil {
		return nil, err
	}
	if err := artifact.Save(tr.store, artifact.Artifact[*ml.VotingRegressor]{Meta: meta(model.KindRegression), Model: reg}); err != nil {
		return nil, err
	}
	res.Regression, res.Metrics.Regression = reg, &regMetrics
	l.Info().Float64("mse", regMetrics.MSE).Float64("mae", regMetrics.MAE).Float64("rmse", regMetrics.RMSE).
		Dur("took", time.Since(start)).Msg("regression trained")

	start = time.Now()
	clf, clfMetrics, err := tr.TrainClassification(ctx, train, test, cols)
	if err != nil {
		return nil, err
	}
	if err := artifact.Save(tr.store, artifact.Artifact[*ml.VotingClassifier]{Meta: meta(model.KindClassification), Model: clf}); err != nil {
		return nil, err
	}
	res.Classification, res.Metrics.Classification = clf, &clfMetrics
	l.Info().Float64("accuracy", clfMetrics.Accuracy).Dur("took", time.Since(start)).Msg("classification trained")

	start = time.Now()
	km, kmMetrics, err := tr.TrainClustering(ctx, t)
	if err != nil {
		return nil, err
	}
	kmMeta := meta(model.KindClustering)
	kmMeta.Features = []string{model.ColVolatility20, model.ColRSI}
	if err := artifact.Save(tr.store, artifact.Artifact[*ml.KMeans]{Meta: kmMeta, Model: km}); err != nil {
		return nil, err
	}
	res.Clustering, res.Metrics.Clustering = km, &kmMetrics
	l.Info().Float64("inertia", kmMetrics.Inertia).Ints("sizes", kmMetrics.Sizes).Dur("took", time.Since(start)).
		Msg("clustering trained")

	start = time.Now()
	pca, pcaMetrics, err := tr.TrainPCA(ctx, t, cols)
	if err != nil {
		return nil, err
	}
	if err := artifact.Save(tr.store, artifact.Artifact[*ml.PCA]{Meta: meta(model.KindPCA), Model: pca}); err != nil {
		return nil, err
	}
	res.PCA, res.Metrics.PCA = pca, &pcaMetrics
	l.Info().Floats64("explained_variance_ratio", pcaMetrics.ExplainedVarianceRatio).Dur("took", time.Since(start)).
		Msg("pca trained")

	if err := tr.store.SaveMetrics(t.Symbol, res.Metrics); err != nil {
		return nil, fmt.Errorf("save metrics %s: %w", t.Symbol, err)
	}
	return res, nil
}

// TrainRegression fits the linear, forest and SVR ensemble on the next-day
// close and scores it on test.
func (tr *Trainer) TrainRegression(ctx context.Context, train, test *model.FeatureTable, cols []string) (*ml.VotingRegressor, model.RegressionMetrics, error) {
	var m model.RegressionMetrics
	if err := ctx.Err(); err != nil {
		return nil, m, err
	}
	X, y, err := regressionData(train, cols)
	if err != nil {
		return nil, m, err
	}
	Xt, yt, err := regressionData(test, cols)
	if err != nil {
		return nil, m, err
	}

	reg := ml.NewVotingRegressor(
		ml.NamedRegressor{Name: MemberLinear, Model: ml.NewLinearRegression()},
		ml.NamedRegressor{Name: MemberForest, Model: ml.NewRandomForestRegressor(tr.cfg.forest())},
		ml.NamedRegressor{Name: MemberSVM, Model: ml.NewSVR(tr.cfg.svm())},
	)
	if err := reg.Fit(X, y); err != nil {
		return nil, m, fmt.Errorf("regression %s: %w", train.Symbol, err)
	}
	pred, err := reg.Predict(Xt)
	if err != nil {
		return nil, m, fmt.Errorf("regression %s: %w", train.Symbol, err)
	}
	return reg, ml.RegressionReport(yt, pred), nil
}

// TrainClassification fits the forest and calibrated SVC soft-voting
// ensemble on the next-day direction and scores it on test.
func (tr *Trainer) TrainClassification(ctx context.Context, train, test *model.FeatureTable, cols []string) (*ml.VotingClassifier, model.ClassificationMetrics, error) {
	var m model.ClassificationMetrics
	if err := ctx.Err(); err != nil {
		return nil, m, err
	}
	X, y, err := classificationData(train, cols)
	if err != nil {
		return nil, m, err
	}
	Xt, yt, err := classificationData(test, cols)
	if err != nil {
		return nil, m, err
	}

	svc := ml.NewSVC(tr.cfg.svm(), tr.cfg.Seed)
	svc.Folds = tr.cfg.PlattFolds
	clf := ml.NewVotingClassifier(
		ml.NamedClassifier{Name: MemberForest, Model: ml.NewRandomForestClassifier(tr.cfg.forest())},
		ml.NamedClassifier{Name: MemberSVM, Model: svc},
	)
	if err := clf.Fit(X, y); err != nil {
		return nil, m, fmt.Errorf("classification %s: %w", train.Symbol, err)
	}
	pred, err := clf.Predict(Xt)
	if err != nil {
		return nil, m, fmt.Errorf("classification %s: %w", train.Symbol, err)
	}
	report := ml.ClassificationReport(yt, pred)
	return clf, model.ClassificationMetrics{Accuracy: report.Accuracy, Report: report}, nil
}

// TrainClustering fits k-means on the (volatility, rsi) regime points of
// the whole table.
func (tr *Trainer) TrainClustering(ctx context.Context, t *model.FeatureTable) (*ml.KMeans, model.ClusteringMetrics, error) {
	var m model.ClusteringMetrics
	if err := ctx.Err(); err != nil {
		return nil, m, err
	}
	points, err := features.RegimePoints(t, tr.cfg.RegimeWindow)
	if err != nil {
		return nil, m, err
	}
	km := ml.NewKMeans(tr.cfg.kmeans())
	if err := km.Fit(points); err != nil {
		return nil, m, fmt.Errorf("clustering %s (%d points): %w", t.Symbol, len(points), err)
	}
	return km, model.ClusteringMetrics{Inertia: km.Inertia, Sizes: km.Sizes(), Points: len(points)}, nil
}

// TrainPCA fits the principal components of the selected feature columns
// over the whole table.
func (tr *Trainer) TrainPCA(ctx context.Context, t *model.FeatureTable, cols []string) (*ml.PCA, model.PCAMetrics, error) {
	var m model.PCAMetrics
	if err := ctx.Err(); err != nil {
		return nil, m, err
	}
	X, err := t.Matrix(cols)
	if err != nil {
		return nil, m, err
	}
	pca := ml.NewPCA(tr.cfg.PCAComponents)
	if err := pca.Fit(X); err != nil {
		return nil, m, fmt.Errorf("pca %s: %w", t.Symbol, err)
	}
	return pca, model.PCAMetrics{
		ExplainedVarianceRatio: pca.ExplainedVarianceRatio,
		TotalVarianceExplained: pca.TotalVarianceExplained(),
	}, nil
}

func regressionData(t *model.FeatureTable, cols []string) ([][]float64, []float64, error) {
	X, err := t.Matrix(cols)
	if err != nil {
		return nil, nil, err
	}
	y, err := t.Column(model.ColTargetPrice)
	if err != nil {
		return nil, nil, err
	}
	return X, y, nil
}

func classificationData(t *model.FeatureTable, cols []string) ([][]float64, []int, error) {
	X, err := t.Matrix(cols)
	if err != nil {
		return nil, nil, err
	}
	if !t.Has(model.ColTargetDirection) {
		return nil, nil, fmt.Errorf("%w: %s", model.ErrMissingFeature, model.ColTargetDirection)
	}
	return X, t.Directions(), nil
}
