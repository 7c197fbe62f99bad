package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Symbol outcomes recorded per stage.
const (
	OutcomeEmitted   = "emitted"
	OutcomeSkipped   = "skipped"
	OutcomeDefaulted = "defaulted"
)

// Registry holds the screener's Prometheus collectors on a private registry.
// A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	StageDuration *prometheus.HistogramVec
	StageSymbols  *prometheus.CounterVec
	Runs          *prometheus.CounterVec
	LastSuccess   prometheus.Gauge
	FetchErrors   *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screener_stage_duration_seconds",
				Help:    "Duration of each pipeline stage in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"stage"},
		),
		StageSymbols: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_stage_symbols_total",
				Help: "Symbols processed per stage by outcome",
			},
			[]string{"stage", "outcome"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_runs_total",
				Help: "Pipeline runs by result",
			},
			[]string{"result"},
		),
		LastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "screener_last_success_timestamp_seconds",
				Help: "Unix time of the last successful pipeline run",
			},
		),
		FetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_fetch_errors_total",
				Help: "Market data fetch failures by source",
			},
			[]string{"source"},
		),
	}
	r.reg.MustRegister(r.StageDuration, r.StageSymbols, r.Runs, r.LastSuccess, r.FetchErrors)
	return r
}

// ObserveStage records how long a stage took.
func (r *Registry) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Outcome counts one symbol outcome for a stage.
func (r *Registry) Outcome(stage, outcome string) {
	if r == nil {
		return
	}
	r.StageSymbols.WithLabelValues(stage, outcome).Inc()
}

// RunFinished records a run result; successful runs also move the last-success gauge.
func (r *Registry) RunFinished(err error, at time.Time) {
	if r == nil {
		return
	}
	if err != nil {
		r.Runs.WithLabelValues("error").Inc()
		return
	}
	r.Runs.WithLabelValues("success").Inc()
	r.LastSuccess.Set(float64(at.Unix()))
}

// FetchFailed counts a data source failure.
func (r *Registry) FetchFailed(source string) {
	if r == nil {
		return
	}
	r.FetchErrors.WithLabelValues(source).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Serve runs a /metrics endpoint on addr until ctx is cancelled.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
