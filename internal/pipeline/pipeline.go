// Package pipeline runs the end-to-end batch for a list of tickers:
// fetch raw history, build and persist the feature table, then train and
// save every model. Tickers are processed strictly one after another and a
// failing ticker never stops the batch.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/Isaadqurashi/mlops-project/internal/features"
	"github.com/Isaadqurashi/mlops-project/internal/logger"
	"github.com/Isaadqurashi/mlops-project/internal/metrics"
	"github.com/Isaadqurashi/mlops-project/internal/model"
	"github.com/Isaadqurashi/mlops-project/internal/notification"
	"github.com/Isaadqurashi/mlops-project/internal/trainer"
)

// Stage names used in logs and the stage duration histogram.
const (
	StageFetch   = "fetch"
	StageProcess = "process"
	StageTrain   = "train"
)

// Fetcher downloads a ticker's history and persists it as raw CSV,
// returning the file path.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) (string, []model.Bar, error)
}

// Failure records why one ticker failed.
type Failure struct {
	Symbol string `json:"symbol"`
	Stage  string `json:"stage"`
	Err    string `json:"error"`
}

// Summary is the outcome of one batch.
type Summary struct {
	RunID      string    `json:"run_id"`
	Symbols    []string  `json:"symbols"`
	Successful []string  `json:"successful"`
	Failed     []Failure `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Text renders the one-line batch result sent at the end of a run.
func (s *Summary) Text() string {
	return fmt.Sprintf("Pipeline completed: %d/%d successful", len(s.Successful), len(s.Symbols))
}

// Pipeline wires the batch stages together.
type Pipeline struct {
	fetcher      Fetcher
	builder      *features.Builder
	trainer      *trainer.Trainer
	notifier     notification.Notifier
	metrics      *metrics.Metrics
	processedDir string
	reportsDir   string
	defaults     []string

	now func() time.Time
}

// Options configures a Pipeline. Notifier and Metrics may be nil.
type Options struct {
	Fetcher      Fetcher
	Builder      *features.Builder
	Trainer      *trainer.Trainer
	Notifier     notification.Notifier
	Metrics      *metrics.Metrics
	ProcessedDir string
	ReportsDir   string
	// Defaults are processed when Run gets no symbols.
	Defaults []string
}

func New(opts Options) *Pipeline {
	n := opts.Notifier
	if n == nil {
		n = notification.NewLogNotifier()
	}
	return &Pipeline{
		fetcher:      opts.Fetcher,
		builder:      opts.Builder,
		trainer:      opts.Trainer,
		notifier:     n,
		metrics:      opts.Metrics,
		processedDir: opts.ProcessedDir,
		reportsDir:   opts.ReportsDir,
		defaults:     opts.Defaults,
		now:          time.Now,
	}
}

// ProcessedPath is the feature table file of symbol.
func (p *Pipeline) ProcessedPath(symbol string) string {
	return filepath.Join(p.processedDir, symbol+"_processed.csv")
}

// MetricsPath is the textfile the batch metrics are written to.
func (p *Pipeline) MetricsPath() string {
	return filepath.Join(p.reportsDir, "pipeline.prom")
}

// Run processes symbols, or the default tickers when symbols is empty.
// Per-ticker failures, panics included, are recorded in the summary. The
// returned error is non-nil only when ctx ends the batch early; the summary
// then covers the tickers processed so far.
func (p *Pipeline) Run(ctx context.Context, symbols []string) (*Summary, error) {
	if len(symbols) == 0 {
		symbols = p.defaults
	}
	runID := logger.RunID(ctx)
	if runID == "" {
		runID = logger.NewRunID()
		ctx = logger.WithRunID(ctx, runID)
	}
	l := logger.Ctx(ctx)

	sum := &Summary{RunID: runID, Symbols: symbols, StartedAt: p.now()}
	l.Info().Int("symbols", len(symbols)).Msg("pipeline started")
	p.notify(ctx, notification.AlertInfo, fmt.Sprintf("Starting End-to-End Pipeline for %d symbols...", len(symbols)))

	var runErr error
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		stage, err := p.runSymbol(ctx, sym)
		if err != nil {
			sum.Failed = append(sum.Failed, Failure{Symbol: sym, Stage: stage, Err: err.Error()})
			p.count(metrics.StatusFailure)
			l.Error().Err(err).Str("symbol", sym).Str("stage", stage).Msg("pipeline failed")
			p.notify(ctx, notification.AlertCritical, fmt.Sprintf("Pipeline failed for %s: %v", sym, err))
			continue
		}
		sum.Successful = append(sum.Successful, sym)
		p.count(metrics.StatusSuccess)
		l.Info().Str("symbol", sym).Msg("pipeline completed")
		p.notify(ctx, notification.AlertInfo, fmt.Sprintf("Pipeline completed for %s", sym))
	}

	sum.FinishedAt = p.now()
	ev := l.Info().
		Int("successful", len(sum.Successful)).
		Int("failed", len(sum.Failed)).
		Dur("took", sum.FinishedAt.Sub(sum.StartedAt))
	if len(sum.Failed) > 0 {
		names := make([]string, len(sum.Failed))
		for i, f := range sum.Failed {
			names[i] = f.Symbol
		}
		ev = ev.Str("failed_symbols", strings.Join(names, ","))
	}
	ev.Msg("pipeline batch finished")
	p.notify(ctx, notification.AlertInfo, sum.Text())

	if p.metrics != nil {
		p.metrics.LastRun.Set(float64(sum.FinishedAt.Unix()))
		if p.reportsDir != "" {
			if err := p.metrics.WriteTextfile(p.MetricsPath()); err != nil {
				l.Warn().Err(err).Msg("write pipeline metrics")
			}
		}
	}
	return sum, runErr
}

// runSymbol runs the three stages for one ticker and reports the stage
// that failed. A panic becomes an error of the running stage.
func (p *Pipeline) runSymbol(ctx context.Context, symbol string) (stage string, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Ctx(ctx).Error().Str("symbol", symbol).Str("stage", stage).
				Str("stack", string(debug.Stack())).Msg("panic recovered")
			err = fmt.Errorf("panic in %s: %v", stage, r)
		}
	}()

	stage = StageFetch
	start := time.Now()
	rawPath, _, err := p.fetcher.Fetch(ctx, symbol)
	if err != nil {
		return stage, err
	}
	p.observe(stage, start)

	stage = StageProcess
	start = time.Now()
	table, err := p.builder.Process(rawPath, p.ProcessedPath(symbol))
	if err != nil {
		return stage, err
	}
	// The raw file name may not carry the ticker verbatim.
	table.Symbol = symbol
	p.observe(stage, start)

	stage = StageTrain
	start = time.Now()
	res, err := p.trainer.Run(ctx, table)
	if err != nil {
		return stage, err
	}
	p.observe(stage, start)
	if p.metrics != nil {
		p.metrics.RecordModels(res.Metrics)
	}
	return "", nil
}

func (p *Pipeline) notify(ctx context.Context, level notification.AlertLevel, msg string) {
	if err := p.notifier.Send(ctx, notification.Alert{Level: level, Message: msg}); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("notification failed")
	}
}

func (p *Pipeline) observe(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveStage(stage, time.Since(start))
	}
}

func (p *Pipeline) count(status string) {
	if p.metrics != nil {
		p.metrics.SymbolsTotal.WithLabelValues(status).Inc()
	}
}
