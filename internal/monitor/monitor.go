// Package monitor periodically re-runs the trained models on fresh prices
// and alerts when a symbol's expected move crosses a threshold.
package monitor

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Isaadqurashi/mlops-project/internal/artifact"
	"github.com/Isaadqurashi/mlops-project/internal/features"
	"github.com/Isaadqurashi/mlops-project/internal/logger"
	"github.com/Isaadqurashi/mlops-project/internal/metrics"
	"github.com/Isaadqurashi/mlops-project/internal/model"
	"github.com/Isaadqurashi/mlops-project/internal/notification"
	"github.com/Isaadqurashi/mlops-project/internal/predict"
)

// Config controls the check schedule and the alert rule.
type Config struct {
	Interval     time.Duration `yaml:"interval" default:"3m"`
	ThresholdPct float64       `yaml:"threshold_pct" default:"0.5" validate:"gt=0"`
	LookbackDays int           `yaml:"lookback_days" default:"100" validate:"gte=60"`
	// SymbolDelay spaces provider calls within one sweep.
	SymbolDelay time.Duration `yaml:"symbol_delay" default:"1s"`
	// ResendAfter is the minimum gap between two alerts for one symbol.
	ResendAfter time.Duration `yaml:"resend_after" default:"3m"`
}

func DefaultConfig() Config {
	return Config{
		Interval:     3 * time.Minute,
		ThresholdPct: 0.5,
		LookbackDays: 100,
		SymbolDelay:  time.Second,
		ResendAfter:  3 * time.Minute,
	}
}

// BarSource returns recent daily bars of a symbol, oldest first.
type BarSource interface {
	Recent(ctx context.Context, symbol string, days int) ([]model.Bar, error)
}

// Outcome of one symbol check.
type Outcome string

const (
	Alerted    Outcome = metrics.CheckAlerted
	Quiet      Outcome = metrics.CheckQuiet
	Suppressed Outcome = metrics.CheckSuppressed
)

type sentAlert struct {
	id string
	at time.Time
}

// Monitor checks every symbol that has trained models.
type Monitor struct {
	cfg      Config
	store    *artifact.Store
	builder  *features.Builder
	bars     BarSource
	notifier notification.Notifier
	metrics  *metrics.Metrics
	health   *metrics.HealthStatus
	names    map[string]string

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	mu   sync.Mutex
	sent map[string]sentAlert

	cron *gocron.Scheduler
}

// New creates a monitor. names maps tickers to display names and may be
// nil; m and health may be nil.
func New(cfg Config, store *artifact.Store, builder *features.Builder, bars BarSource,
	notifier notification.Notifier, m *metrics.Metrics, health *metrics.HealthStatus, names map[string]string) *Monitor {
	return &Monitor{
		cfg:      cfg,
		store:    store,
		builder:  builder,
		bars:     bars,
		notifier: notifier,
		metrics:  m,
		health:   health,
		names:    names,
		now:      time.Now,
		sleep:    sleepCtx,
		sent:     make(map[string]sentAlert),
	}
}

// PredictionID identifies a prediction by symbol, day and predicted price
// to two decimals.
func PredictionID(symbol string, day time.Time, predicted float64) string {
	key := fmt.Sprintf("%s_%s_%s", symbol, day.Format(model.DateLayout), decimal.NewFromFloat(predicted).StringFixed(2))
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// CheckSymbol predicts the next close of symbol and sends an alert when the
// expected change reaches the threshold. An identical prediction is never
// resent, and a new one only after ResendAfter.
func (m *Monitor) CheckSymbol(ctx context.Context, symbol string) (Outcome, *predict.Prediction, error) {
	p, err := predict.Load(m.store, symbol, m.builder)
	if err != nil {
		return "", nil, err
	}
	bars, err := m.bars.Recent(ctx, symbol, m.cfg.LookbackDays)
	if err != nil {
		return "", nil, err
	}
	pred, err := p.Predict(bars)
	if err != nil {
		return "", nil, err
	}

	l := logger.Ctx(ctx).With().Str("symbol", symbol).Float64("expected_change_pct", pred.ChangePct).Logger()
	if math.Abs(pred.ChangePct) < m.cfg.ThresholdPct {
		l.Debug().Msg("below threshold")
		return Quiet, pred, nil
	}

	now := m.now()
	id := PredictionID(symbol, now.UTC(), pred.PredictedPrice)

	m.mu.Lock()
	last, seen := m.sent[symbol]
	m.mu.Unlock()
	if seen && (last.id == id || now.Sub(last.at) < m.cfg.ResendAfter) {
		l.Debug().Str("prediction_id", id).Dur("since_last", now.Sub(last.at)).Msg("alert suppressed")
		return Suppressed, pred, nil
	}

	alert := notification.Alert{
		Level:   notification.AlertWarning,
		Title:   "AI MARKET INSIGHT | " + m.displayName(symbol),
		Message: FormatAlert(symbol, m.displayName(symbol), pred, now),
	}
	if err := m.notifier.Send(ctx, alert); err != nil {
		return "", pred, fmt.Errorf("notify %s: %w", symbol, err)
	}

	m.mu.Lock()
	m.sent[symbol] = sentAlert{id: id, at: now}
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.AlertsSent.Inc()
	}
	l.Info().Str("prediction_id", id).Str("direction", pred.Direction).Msg("alert sent")
	return Alerted, pred, nil
}

// CheckAll checks every symbol with a regression artifact and returns the
// number of alerts sent. Per-symbol failures are logged and skipped.
func (m *Monitor) CheckAll(ctx context.Context) (int, error) {
	ctx = logger.WithRunID(ctx, logger.NewRunID())
	l := logger.Ctx(ctx)

	symbols, err := m.store.Symbols()
	if err != nil {
		m.recordHealth(0, err)
		return 0, fmt.Errorf("list symbols: %w", err)
	}
	if len(symbols) == 0 {
		l.Warn().Msg("no trained symbols, waiting for models")
		m.recordHealth(0, nil)
		return 0, nil
	}

	l.Info().Int("symbols", len(symbols)).Msg("monitor sweep started")
	sent := 0
	for i, sym := range symbols {
		if i > 0 {
			if err := m.sleep(ctx, m.cfg.SymbolDelay); err != nil {
				m.recordHealth(len(symbols), nil)
				return sent, err
			}
		}
		outcome, _, err := m.CheckSymbol(ctx, sym)
		if err != nil {
			l.Error().Err(err).Str("symbol", sym).Msg("check failed")
			m.count(metrics.CheckError)
			continue
		}
		m.count(string(outcome))
		if outcome == Alerted {
			sent++
		}
	}
	l.Info().Int("alerts", sent).Dur("next_in", m.cfg.Interval).Msg("monitor sweep complete")
	m.recordHealth(len(symbols), nil)
	return sent, nil
}

// Start schedules CheckAll every Interval, never overlapping runs, and
// returns immediately. The first sweep runs at once.
func (m *Monitor) Start(ctx context.Context) error {
	m.cron = gocron.NewScheduler(time.UTC)
	_, err := m.cron.Every(m.cfg.Interval).SingletonMode().Do(func() {
		if _, err := m.CheckAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("monitor sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule monitor: %w", err)
	}
	m.cron.StartAsync()
	log.Info().Dur("interval", m.cfg.Interval).Float64("threshold_pct", m.cfg.ThresholdPct).Msg("monitor started")
	return nil
}

// Stop stops the scheduler. Running sweeps end when their context does.
func (m *Monitor) Stop() {
	if m.cron != nil {
		m.cron.Stop()
		log.Info().Msg("monitor stopped")
	}
}

func (m *Monitor) displayName(symbol string) string {
	if n, ok := m.names[symbol]; ok && n != "" {
		return n
	}
	return symbol
}

func (m *Monitor) count(result string) {
	if m.metrics != nil {
		m.metrics.MonitorChecks.WithLabelValues(result).Inc()
	}
}

func (m *Monitor) recordHealth(symbols int, err error) {
	if m.health != nil {
		m.health.RecordCheck(symbols, err)
	}
}

// FormatAlert renders the alert body with prices fixed to two decimals.
func FormatAlert(symbol, name string, p *predict.Prediction, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticker: %s\n", symbol)
	fmt.Fprintf(&b, "Company: %s\n\n", name)
	fmt.Fprintf(&b, "Current Price: $%s\n", decimal.NewFromFloat(p.Price).StringFixed(2))
	fmt.Fprintf(&b, "Prediction: %s\n", p.Direction)
	fmt.Fprintf(&b, "Target Price: $%s\n", decimal.NewFromFloat(p.PredictedPrice).StringFixed(2))
	fmt.Fprintf(&b, "Expected Change: %s%%\n\n", signed(p.ChangePct))
	fmt.Fprintf(&b, "Current Movement: %s%%\n", signed(p.DayChangePct))
	fmt.Fprintf(&b, "Timestamp: %s", at.UTC().Format("2006-01-02 15:04:05 UTC"))
	return b.String()
}

func signed(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsNegative() {
		return d.StringFixed(2)
	}
	return "+" + d.StringFixed(2)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
