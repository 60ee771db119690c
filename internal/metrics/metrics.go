// Package metrics exposes Prometheus counters for the resolution pipeline
// plus a small HTTP listener serving /metrics and /healthz.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's instruments. All record methods are nil-safe
// so components run unchanged when metrics are disabled.
type Metrics struct {
	registry *prometheus.Registry

	sweepRuns     *prometheus.CounterVec
	sweepSkipped  *prometheus.CounterVec
	sweepDuration *prometheus.HistogramVec

	consensusVerdicts prometheus.Counter
	marketsResulted   prometheus.Counter
	betsSettled       *prometheus.CounterVec
	payoutVolume      prometheus.Counter
	eventsIngested    prometheus.Counter
}

// New creates and registers the pipeline metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poolbet_sweep_runs_total",
			Help: "Completed sweep executions per task.",
		}, []string{"task"}),
		sweepSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poolbet_sweep_skipped_total",
			Help: "Ticks dropped because the previous run of the task was still busy.",
		}, []string{"task"}),
		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "poolbet_sweep_duration_seconds",
			Help:    "Sweep execution time per task.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),
		consensusVerdicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poolbet_consensus_verdicts_total",
			Help: "Consensus rounds that produced an actionable verdict.",
		}),
		marketsResulted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poolbet_markets_resulted_total",
			Help: "Markets assigned a winning outcome.",
		}),
		betsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poolbet_bets_settled_total",
			Help: "Bets moved to a terminal status.",
		}, []string{"status"}),
		payoutVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poolbet_payout_volume_total",
			Help: "Sum of payouts credited to wallets.",
		}),
		eventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poolbet_events_ingested_total",
			Help: "New events created by ingestion sweeps.",
		}),
	}

	registry.MustRegister(
		m.sweepRuns, m.sweepSkipped, m.sweepDuration,
		m.consensusVerdicts, m.marketsResulted, m.betsSettled,
		m.payoutVolume, m.eventsIngested,
	)
	return m
}

func (m *Metrics) SweepRan(task string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(task).Inc()
	m.sweepDuration.WithLabelValues(task).Observe(elapsed.Seconds())
}

func (m *Metrics) SweepSkipped(task string) {
	if m == nil {
		return
	}
	m.sweepSkipped.WithLabelValues(task).Inc()
}

func (m *Metrics) ConsensusVerdict() {
	if m == nil {
		return
	}
	m.consensusVerdicts.Inc()
}

func (m *Metrics) MarketResulted() {
	if m == nil {
		return
	}
	m.marketsResulted.Inc()
}

func (m *Metrics) BetSettled(status string, payout float64) {
	if m == nil {
		return
	}
	m.betsSettled.WithLabelValues(status).Inc()
	if payout > 0 {
		m.payoutVolume.Add(payout)
	}
}

func (m *Metrics) EventIngested() {
	if m == nil {
		return
	}
	m.eventsIngested.Inc()
}

// Serve runs the metrics listener until the context is cancelled.
func (m *Metrics) Serve(ctx context.Context, port int, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listener started", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics: serve: %w", err)
	}
}
