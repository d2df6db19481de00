// Package metrics exposes Prometheus metrics for pipeline runs and the
// background monitor, either as a textfile after a batch or over HTTP.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/Isaadqurashi/mlops-project/internal/model"
)

// Symbol outcomes.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Monitor check results.
const (
	CheckAlerted    = "alerted"
	CheckQuiet      = "quiet"
	CheckSuppressed = "suppressed"
	CheckError      = "error"
)

// Metrics holds all Prometheus metrics of one process. Each instance owns
// its registry so tests and batch runs never collide.
type Metrics struct {
	Registry *prometheus.Registry

	SymbolsTotal  *prometheus.CounterVec   // labels: status
	StageDuration *prometheus.HistogramVec // labels: stage
	LastRun       prometheus.Gauge

	// Model quality of the latest training run per symbol.
	RegressionRMSE *prometheus.GaugeVec // labels: symbol
	Accuracy       *prometheus.GaugeVec // labels: symbol
	PCAVariance    *prometheus.GaugeVec // labels: symbol
	TrainRows      *prometheus.GaugeVec // labels: symbol

	MonitorChecks *prometheus.CounterVec // labels: result
	AlertsSent    prometheus.Counter
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		SymbolsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insight_symbols_total",
			Help: "Symbols processed by the pipeline, by outcome",
		}, []string{"status"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "insight_stage_duration_seconds",
			Help:    "Duration of one pipeline stage for one symbol",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "insight_last_run_timestamp_seconds",
			Help: "Unix time the last pipeline batch finished",
		}),

		RegressionRMSE: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "insight_regression_rmse",
			Help: "Test-set RMSE of the price regression ensemble",
		}, []string{"symbol"}),
		Accuracy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "insight_classification_accuracy",
			Help: "Test-set accuracy of the direction classifier",
		}, []string{"symbol"}),
		PCAVariance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "insight_pca_variance_explained",
			Help: "Share of feature variance explained by the retained components",
		}, []string{"symbol"}),
		TrainRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "insight_train_rows",
			Help: "Rows in the training partition",
		}, []string{"symbol"}),

		MonitorChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insight_monitor_checks_total",
			Help: "Monitor checks by result",
		}, []string{"result"}),
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "insight_alerts_sent_total",
			Help: "Prediction alerts delivered",
		}),
	}

	m.Registry.MustRegister(
		m.SymbolsTotal,
		m.StageDuration,
		m.LastRun,
		m.RegressionRMSE,
		m.Accuracy,
		m.PCAVariance,
		m.TrainRows,
		m.MonitorChecks,
		m.AlertsSent,
	)
	return m
}

// ObserveStage records how long stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordModels publishes the quality figures of a training run.
func (m *Metrics) RecordModels(rec model.MetricsRecord) {
	sym := rec.Run.Symbol
	m.TrainRows.WithLabelValues(sym).Set(float64(rec.Run.TrainRows))
	if rec.Regression != nil {
		m.RegressionRMSE.WithLabelValues(sym).Set(rec.Regression.RMSE)
	}
	if rec.Classification != nil {
		m.Accuracy.WithLabelValues(sym).Set(rec.Classification.Accuracy)
	}
	if rec.PCA != nil {
		m.PCAVariance.WithLabelValues(sym).Set(rec.PCA.TotalVarianceExplained)
	}
}

// WriteTextfile writes the registry in the text exposition format, for a
// node exporter textfile collector or later inspection.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}

// HealthStatus reports monitor liveness on /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	StartedAt   time.Time `json:"started_at"`
	LastCheckAt time.Time `json:"last_check_at"`
	Symbols     int       `json:"symbols"`
	LastError   string    `json:"last_error,omitempty"`
}

func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

// RecordCheck stores the outcome of one monitor sweep.
func (h *HealthStatus) RecordCheck(symbols int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastCheckAt = time.Now()
	h.Symbols = symbols
	h.LastError = ""
	if err != nil {
		h.LastError = err.Error()
	}
}

// ServeHTTP handles the /healthz endpoint. A sweep that failed as a whole
// reports degraded.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if h.LastError != "" {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	lastCheck := ""
	if !h.LastCheckAt.IsZero() {
		lastCheck = h.LastCheckAt.Format(time.RFC3339)
	}
	body := struct {
		Status      string `json:"status"`
		Uptime      string `json:"uptime"`
		Symbols     int    `json:"symbols"`
		LastCheckAt string `json:"last_check_at"`
		LastError   string `json:"last_error,omitempty"`
	}{
		Status:      status,
		Uptime:      time.Since(h.StartedAt).Round(time.Second).String(),
		Symbols:     h.Symbols,
		LastCheckAt: lastCheck,
		LastError:   h.LastError,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server for m.
func NewServer(addr string, m *Metrics, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the server's mux.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.addr).Msg("metrics server listening")
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
