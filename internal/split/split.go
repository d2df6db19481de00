// Package split partitions a feature table into chronological train and
// test segments.
package split

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Isaadqurashi/mlops-project/internal/model"
	"github.com/Isaadqurashi/mlops-project/internal/window"
)

// DefaultTestFraction holds out the most recent fifth of the table.
const DefaultTestFraction = 0.2

// Split re-applies the rolling window to t and cuts it at
// floor(n*(1-testFraction)): train is the prefix, test the suffix. Rows are
// never shuffled, so every train timestamp precedes every test timestamp.
//
// A cut that leaves one side empty is returned as a valid empty table; the
// trainer rejects it. testFraction outside (0,1) is an error.
func Split(t *model.FeatureTable, testFraction float64, windowDays int) (train, test *model.FeatureTable, err error) {
	if !(testFraction > 0 && testFraction < 1) {
		return nil, nil, fmt.Errorf("%w: %v", model.ErrInvalidFraction, testFraction)
	}

	rows, truncated := window.Tail(t.Rows, windowDays)
	if truncated {
		log.Debug().Str("symbol", t.Symbol).Int("from", t.Len()).Int("to", len(rows)).Msg("split: applied rolling window")
	}
	bounded := t.Slice(t.Len()-len(rows), t.Len())

	cut := int(float64(len(rows)) * (1 - testFraction))
	train, test = bounded.Slice(0, cut), bounded.Slice(cut, len(rows))

	if train.Len() == 0 || test.Len() == 0 {
		log.Warn().
			Str("symbol", t.Symbol).
			Int("rows", len(rows)).
			Float64("test_fraction", testFraction).
			Int("train", train.Len()).
			Int("test", test.Len()).
			Msg("split produced an empty partition")
	}
	return train, test, nil
}
