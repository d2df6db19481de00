// Package features turns a raw daily price series into the model-ready
// feature table: rolling-window truncation, stationary features, technical
// indicators, supervised targets and pruning of undefined rows.
package features

import (
	"github.com/Isaadqurashi/mlops-project/internal/indicator"
	"github.com/Isaadqurashi/mlops-project/internal/model"
)

// DefaultRollingWindowDays is about three trading years.
const DefaultRollingWindowDays = 700

// Config controls feature construction. Column sets name the model inputs;
// the builder always computes every column.
type Config struct {
	Indicators        indicator.Params `yaml:"indicators"`
	RollingWindowDays int              `yaml:"rolling_window_days" default:"700" validate:"gte=0"`
	BaseColumns       []string         `yaml:"base_columns" default:"[\"sma_20\",\"sma_50\",\"rsi\",\"macd\"]" validate:"min=1,dive,featurecol"`
	StationaryColumns []string         `yaml:"stationary_columns" default:"[\"log_return\",\"pct_return\",\"volatility_20\",\"price_zscore\"]" validate:"dive,featurecol"`
}

// DefaultConfig returns the standard daily feature configuration.
func DefaultConfig() Config {
	return Config{
		Indicators:        indicator.DefaultParams(),
		RollingWindowDays: DefaultRollingWindowDays,
		BaseColumns:       append([]string(nil), model.BaseFeatureColumns...),
		StationaryColumns: append([]string(nil), model.StationaryFeatureColumns...),
	}
}

// IsFeatureColumn reports whether name is a numeric input column a model may
// be trained on. Targets, the timestamp and raw OHLCV are excluded.
func IsFeatureColumn(name string) bool {
	switch name {
	case model.ColLogReturn, model.ColPctReturn, model.ColVolatility20, model.ColPriceZScore,
		model.ColSMA20, model.ColSMA50, model.ColRSI, model.ColMACD, model.ColMACDSignal:
		return true
	}
	return false
}
