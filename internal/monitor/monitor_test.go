package monitor

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Isaadqurashi/mlops-project/internal/artifact"
	"github.com/Isaadqurashi/mlops-project/internal/features"
	"github.com/Isaadqurashi/mlops-project/internal/metrics"
	"github.com/Isaadqurashi/mlops-project/internal/model"
	"github.com/Isaadqurashi/mlops-project/internal/notification"
	"github.com/Isaadqurashi/mlops-project/internal/predict"
	"github.com/Isaadqurashi/mlops-project/internal/trainer"
)

func wavyBars(n int) []model.Bar {
	day0 := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, n)
	for i := range bars {
		c := 100 + 0.1*float64(i) + 3*math.Sin(float64(i)*2*math.Pi/7)
		bars[i] = model.Bar{Timestamp: day0.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1e5}
	}
	return bars
}

type fakeBars struct {
	mu   sync.Mutex
	bars map[string][]model.Bar
	err  error
}

func (f *fakeBars) Recent(ctx context.Context, symbol string, days int) ([]model.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.bars[symbol], nil
}

func (f *fakeBars) set(symbol string, bars []model.Bar) {
	f.mu.Lock()
	f.bars[symbol] = bars
	f.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	alerts []notification.Alert
}

func (r *recorder) Send(ctx context.Context, a notification.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

type fixture struct {
	mon     *Monitor
	bars    *fakeBars
	notes   *recorder
	metrics *metrics.Metrics
	health  *metrics.HealthStatus
	clock   *time.Time
	sleeps  []time.Duration
}

func newFixture(t *testing.T, cfg Config, symbols ...string) *fixture {
	t.Helper()
	dir := t.TempDir()
	store := artifact.NewStore(filepath.Join(dir, "models"), filepath.Join(dir, "reports"))
	builder := features.NewBuilder(features.DefaultConfig())

	tcfg := trainer.DefaultConfig()
	tcfg.Trees = 10
	tcfg.KMeansInit = 2
	tr := trainer.New(tcfg, features.DefaultConfig(), store)

	fb := &fakeBars{bars: make(map[string][]model.Bar)}
	for _, sym := range symbols {
		bars := wavyBars(200)
		table, err := builder.Build(sym, bars)
		require.NoError(t, err)
		_, err = tr.Run(context.Background(), table)
		require.NoError(t, err)
		fb.set(sym, bars)
	}

	f := &fixture{bars: fb, notes: &recorder{}, metrics: metrics.New(), health: metrics.NewHealthStatus()}
	now := time.Date(2024, 5, 6, 14, 0, 0, 0, time.UTC)
	f.clock = &now
	f.mon = New(cfg, store, builder, fb, f.notes, f.metrics, f.health, map[string]string{"AAPL": "Apple (AAPL)"})
	f.mon.now = func() time.Time { return *f.clock }
	f.mon.sleep = func(ctx context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return ctx.Err()
	}
	return f
}

// alwaysAlert lowers the threshold so any non-zero expected move alerts.
func alwaysAlert() Config {
	cfg := DefaultConfig()
	cfg.ThresholdPct = 1e-12
	return cfg
}

func TestCheckSymbol_AlertsOnceThenSuppresses(t *testing.T) {
	f := newFixture(t, alwaysAlert(), "AAPL")
	ctx := context.Background()

	outcome, pred, err := f.mon.CheckSymbol(ctx, "AAPL")
	require.NoError(t, err)
	require.Equal(t, Alerted, outcome)
	require.Equal(t, 1, f.notes.count())
	assert.Contains(t, f.notes.alerts[0].Title, "Apple (AAPL)")
	assert.Contains(t, f.notes.alerts[0].Message, "Ticker: AAPL")
	assert.NotZero(t, pred.ChangePct)

	// Inside the resend interval.
	*f.clock = f.clock.Add(time.Minute)
	outcome, _, err = f.mon.CheckSymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, Suppressed, outcome)

	// Past the interval but the same prediction on the same day.
	*f.clock = f.clock.Add(5 * time.Minute)
	outcome, _, err = f.mon.CheckSymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, Suppressed, outcome)

	// A new bar changes the prediction.
	f.bars.set("AAPL", wavyBars(201))
	outcome, _, err = f.mon.CheckSymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, Alerted, outcome)
	assert.Equal(t, 2, f.notes.count())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.AlertsSent))
}

func TestCheckSymbol_BelowThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThresholdPct = 1e6
	f := newFixture(t, cfg, "AAPL")

	outcome, _, err := f.mon.CheckSymbol(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, Quiet, outcome)
	assert.Zero(t, f.notes.count())
}

func TestCheckSymbol_NoModels(t *testing.T) {
	f := newFixture(t, alwaysAlert())
	_, _, err := f.mon.CheckSymbol(context.Background(), "MSFT")
	assert.ErrorIs(t, err, model.ErrArtifactNotFound)
}

func TestCheckAll(t *testing.T) {
	f := newFixture(t, alwaysAlert(), "AAPL", "MSFT", "TSLA")
	f.bars.set("TSLA", wavyBars(10)) // too short to predict

	sent, err := f.mon.CheckAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, f.sleeps)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.MonitorChecks.WithLabelValues(metrics.CheckAlerted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MonitorChecks.WithLabelValues(metrics.CheckError)))
	assert.Equal(t, 3, f.health.Symbols)
}

func TestCheckAll_Empty(t *testing.T) {
	f := newFixture(t, alwaysAlert())
	sent, err := f.mon.CheckAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestCheckAll_ProviderDown(t *testing.T) {
	f := newFixture(t, alwaysAlert(), "AAPL")
	f.bars.err = errors.New("provider down")

	sent, err := f.mon.CheckAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MonitorChecks.WithLabelValues(metrics.CheckError)))
}

func TestPredictionID(t *testing.T) {
	day := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	a := PredictionID("AAPL", day, 101.234)
	assert.Len(t, a, 32)
	assert.Equal(t, a, PredictionID("AAPL", day, 101.2349))
	assert.NotEqual(t, a, PredictionID("AAPL", day, 101.24))
	assert.NotEqual(t, a, PredictionID("AAPL", day.AddDate(0, 0, 1), 101.234))
	assert.NotEqual(t, a, PredictionID("MSFT", day, 101.234))
}

func TestFormatAlert(t *testing.T) {
	p := &predict.Prediction{Price: 189.5, PredictedPrice: 191.123, ChangePct: 0.8565, DayChangePct: -1.2, Direction: predict.Up}
	at := time.Date(2024, 5, 6, 14, 3, 0, 0, time.UTC)

	got := FormatAlert("AAPL", "Apple (AAPL)", p, at)
	want := strings.Join([]string{
		"Ticker: AAPL",
		"Company: Apple (AAPL)",
		"",
		"Current Price: $189.50",
		"Prediction: UP",
		"Target Price: $191.12",
		"Expected Change: +0.86%",
		"",
		"Current Movement: -1.20%",
		"Timestamp: 2024-05-06 14:03:00 UTC",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestStartStop(t *testing.T) {
	cfg := alwaysAlert()
	cfg.Interval = time.Hour
	f := newFixture(t, cfg, "AAPL")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.mon.Start(ctx))
	assert.Eventually(t, func() bool { return f.notes.count() == 1 }, 30*time.Second, 10*time.Millisecond)
	f.mon.Stop()
}
