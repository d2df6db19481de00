package features

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Isaadqurashi/mlops-project/internal/indicator"
	"github.com/Isaadqurashi/mlops-project/internal/model"
	"github.com/Isaadqurashi/mlops-project/internal/window"
)

// Builder produces feature tables. It is stateless apart from its
// configuration and safe for concurrent use.
type Builder struct {
	cfg Config
	log zerolog.Logger
}

// NewBuilder creates a builder for cfg.
func NewBuilder(cfg Config) *Builder {
	return &Builder{
		cfg: cfg,
		log: log.With().Str("component", "features").Logger(),
	}
}

// Config returns the builder configuration.
func (b *Builder) Config() Config { return b.cfg }

// Build runs the full feature pipeline for one symbol:
//
//  1. sort by timestamp, dropping duplicate days (last bar wins)
//  2. keep the most recent RollingWindowDays bars
//  3. compute stationary features and indicators
//  4. attach next-day targets
//  5. drop every row with an undefined value
//
// Build returns model.ErrInsufficientHistory when no row survives pruning.
func (b *Builder) Build(symbol string, bars []model.Bar) (*model.FeatureTable, error) {
	bars = b.normalize(symbol, bars)

	windowed, truncated := window.Tail(bars, b.cfg.RollingWindowDays)
	if b.cfg.RollingWindowDays > 0 && !truncated {
		b.log.Warn().
			Str("symbol", symbol).
			Int("rows", len(bars)).
			Int("window", b.cfg.RollingWindowDays).
			Msg("series not longer than rolling window, skipping truncation")
	}

	rows := b.rows(windowed)
	attachTargets(rows)

	kept := make([]model.FeatureRow, 0, len(rows))
	for i := range rows {
		if defined(&rows[i]) {
			kept = append(kept, rows[i])
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: %s has %d bars, need more than %d",
			model.ErrInsufficientHistory, symbol, len(windowed), b.cfg.Indicators.Warmup()+1)
	}

	b.log.Debug().
		Str("symbol", symbol).
		Int("bars", len(windowed)).
		Int("rows", len(kept)).
		Int("dropped", len(rows)-len(kept)).
		Msg("feature table built")

	return model.NewFeatureTable(symbol, kept), nil
}

// Rows computes indicator rows for bars without targets, windowing or
// pruning. It is the inference path: the last row holds the live feature
// vector, computed by the same code that built the training table.
func (b *Builder) Rows(bars []model.Bar) []model.FeatureRow {
	rows := b.rows(b.normalize("", bars))
	for i := range rows {
		rows[i].TargetPrice = math.NaN()
	}
	return rows
}

func (b *Builder) rows(bars []model.Bar) []model.FeatureRow {
	set := indicator.Compute(model.Closes(bars), b.cfg.Indicators)
	rows := make([]model.FeatureRow, len(bars))
	for i, bar := range bars {
		rows[i] = model.FeatureRow{
			Bar:          bar,
			LogReturn:    set.LogReturn[i],
			PctReturn:    set.PctReturn[i],
			Volatility20: set.Volatility[i],
			PriceZScore:  set.ZScore[i],
			SMA20:        set.SMAFast[i],
			SMA50:        set.SMASlow[i],
			RSI:          set.RSI[i],
			MACD:         set.MACD[i],
			MACDSignal:   set.MACDSignal[i],
		}
	}
	return rows
}

// normalize returns bars sorted by day with duplicate days removed. The
// input is never modified, and normalizing twice is a no-op.
func (b *Builder) normalize(symbol string, bars []model.Bar) []model.Bar {
	out := make([]model.Bar, len(bars))
	for i, bar := range bars {
		bar.Timestamp = model.Day(bar.Timestamp)
		out[i] = bar
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	deduped := out[:0]
	for _, bar := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Timestamp.Equal(bar.Timestamp) {
			deduped[n-1] = bar
			continue
		}
		deduped = append(deduped, bar)
	}
	if dups := len(out) - len(deduped); dups > 0 {
		b.log.Warn().Str("symbol", symbol).Int("duplicates", dups).Msg("dropped duplicate days")
	}
	return deduped
}

// attachTargets sets next-day targets. Equal closes count as down; the last
// row has no next day and keeps an undefined target price.
func attachTargets(rows []model.FeatureRow) {
	for i := range rows {
		if i == len(rows)-1 {
			rows[i].TargetPrice = math.NaN()
			break
		}
		next := rows[i+1].Close
		rows[i].TargetPrice = next
		if next > rows[i].Close {
			rows[i].TargetDirection = 1
		}
	}
}

func defined(r *model.FeatureRow) bool {
	for _, col := range model.AllColumns {
		v, ok := r.Value(col)
		if !ok {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
