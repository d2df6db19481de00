package trainer

import (
	"github.com/Isaadqurashi/mlops-project/internal/features"
	"github.com/Isaadqurashi/mlops-project/internal/ml"
)

// DefaultSeed makes tree ensembles, calibration folds and k-means
// reproducible for a fixed input table.
const DefaultSeed = 42

// Config holds the model hyperparameters.
type Config struct {
	Seed         int64   `yaml:"seed" default:"42"`
	TestFraction float64 `yaml:"test_fraction" default:"0.2" validate:"gt=0,lt=1"`

	Trees int `yaml:"trees" default:"100" validate:"gt=0"`
	Jobs  int `yaml:"jobs" default:"1" validate:"gte=0"`

	SVMC       float64 `yaml:"svm_c" default:"1" validate:"gt=0"`
	SVREpsilon float64 `yaml:"svr_epsilon" default:"0.1" validate:"gte=0"`
	SVMTol     float64 `yaml:"svm_tol" default:"0.001" validate:"gt=0"`
	PlattFolds int     `yaml:"platt_folds" default:"5" validate:"gte=2"`

	Clusters      int     `yaml:"clusters" default:"3" validate:"gt=0"`
	KMeansInit    int     `yaml:"kmeans_n_init" default:"10" validate:"gt=0"`
	KMeansMaxIter int     `yaml:"kmeans_max_iter" default:"300" validate:"gt=0"`
	KMeansTol     float64 `yaml:"kmeans_tol" default:"0.0001" validate:"gte=0"`
	RegimeWindow  int     `yaml:"regime_window" default:"20" validate:"gt=1"`

	PCAComponents int `yaml:"pca_components" default:"2" validate:"gt=0"`
}

// DefaultConfig returns the standard hyperparameters.
func DefaultConfig() Config {
	return Config{
		Seed:          DefaultSeed,
		TestFraction:  0.2,
		Trees:         100,
		Jobs:          1,
		SVMC:          1,
		SVREpsilon:    0.1,
		SVMTol:        1e-3,
		PlattFolds:    ml.DefaultPlattFolds,
		Clusters:      3,
		KMeansInit:    10,
		KMeansMaxIter: 300,
		KMeansTol:     1e-4,
		RegimeWindow:  features.DefaultRegimeWindow,
		PCAComponents: 2,
	}
}

func (c Config) forest() ml.ForestParams {
	return ml.ForestParams{Trees: c.Trees, Seed: c.Seed, Jobs: c.Jobs}
}

func (c Config) svm() ml.SVMParams {
	return ml.SVMParams{C: c.SVMC, Epsilon: c.SVREpsilon, Tol: c.SVMTol}
}

func (c Config) kmeans() ml.KMeansParams {
	return ml.KMeansParams{K: c.Clusters, NInit: c.KMeansInit, MaxIter: c.KMeansMaxIter, Tol: c.KMeansTol, Seed: c.Seed}
}
