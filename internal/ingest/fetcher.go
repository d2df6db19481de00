package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Isaadqurashi/mlops-project/internal/features"
	"github.com/Isaadqurashi/mlops-project/internal/logger"
	"github.com/Isaadqurashi/mlops-project/internal/model"
)

// Retry calls fn up to attempts times, waiting delay between attempts.
// It stops early when ctx is done and returns the last error.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(ctx.Err(), lastErr)
			case <-timer.C:
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		logger.Ctx(ctx).Warn().Err(lastErr).
			Int("attempt", attempt).
			Int("attempts", attempts).
			Dur("retry_in", delay).
			Msg("attempt failed")
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Fetcher downloads a symbol's history and stores it as raw CSV.
type Fetcher struct {
	src    model.PriceSource
	cfg    Config
	rawDir string
	now    func() time.Time
}

func NewFetcher(src model.PriceSource, cfg Config, rawDir string) *Fetcher {
	return &Fetcher{src: src, cfg: cfg, rawDir: rawDir, now: time.Now}
}

// RawPath is the raw CSV file of symbol.
func (f *Fetcher) RawPath(symbol string) string {
	return filepath.Join(f.rawDir, symbol+"_daily.csv")
}

// Fetch downloads the last HistoryDays of bars with retries, writes them to
// RawPath sorted by date and returns the path and bars.
func (f *Fetcher) Fetch(ctx context.Context, symbol string) (string, []model.Bar, error) {
	bars, err := f.Recent(ctx, symbol, f.cfg.HistoryDays)
	if err != nil {
		return "", nil, err
	}

	path := f.RawPath(symbol)
	if err := features.WriteBarsFile(path, bars); err != nil {
		return "", nil, fmt.Errorf("write raw %s: %w", symbol, err)
	}
	log.Info().
		Str("symbol", symbol).
		Str("source", f.src.Name()).
		Int("rows", len(bars)).
		Str("path", path).
		Msg("raw data saved")
	return path, bars, nil
}

// Recent downloads the last days of bars with retries without persisting
// them. Bars are returned sorted by date.
func (f *Fetcher) Recent(ctx context.Context, symbol string, days int) ([]model.Bar, error) {
	end := f.now().UTC()
	start := end.AddDate(0, 0, -days)

	var bars []model.Bar
	err := Retry(ctx, f.cfg.Retries, f.cfg.RetryDelay, func(ctx context.Context) error {
		var err error
		bars, err = f.src.FetchDaily(ctx, symbol, start, end)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}
