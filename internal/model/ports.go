package model

import (
	"context"
	"time"
)

// PriceSource fetches daily bars for one symbol from a market-data provider.
// Implementations return bars in any order; consumers sort them.
type PriceSource interface {
	// Name identifies the provider in logs and errors.
	Name() string

	// FetchDaily returns the daily bars in [start, end].
	FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
}
