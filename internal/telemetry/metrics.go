// Package telemetry exposes prometheus metrics for the live-view subsystem.
//
// Every method is nil-safe so components can run without metrics in tests.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Mutations        *prometheus.CounterVec
	Notifications    *prometheus.CounterVec
	CallbackFailures prometheus.Counter
	Subscriptions    prometheus.Gauge
	ViewReads        *prometheus.CounterVec
	ViewDuration     *prometheus.HistogramVec
	ExternalReloads  prometheus.Counter
}

// New registers every collector on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tracky_mutations_total",
			Help: "Committed entity mutations published to the hub.",
		}, []string{"entity", "action"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tracky_notifications_total",
			Help: "Updates delivered to subscriber callbacks.",
		}, []string{"scheme", "type"}),
		CallbackFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "tracky_callback_failures_total",
			Help: "Subscriber callbacks that returned an error or panicked.",
		}),
		Subscriptions: f.NewGauge(prometheus.GaugeOpts{
			Name: "tracky_subscriptions",
			Help: "Live subscriptions across all resources.",
		}),
		ViewReads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tracky_view_reads_total",
			Help: "Derived view reads by scheme and outcome.",
		}, []string{"scheme", "outcome"}),
		ViewDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tracky_view_read_seconds",
			Help:    "Time to build a derived view.",
			Buckets: prometheus.DefBuckets,
		}, []string{"scheme"}),
		ExternalReloads: f.NewCounter(prometheus.CounterOpts{
			Name: "tracky_external_reloads_total",
			Help: "Out-of-process edits of the data file that triggered a refresh.",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveMutation counts a published mutation.
func (m *Metrics) ObserveMutation(entity, action string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(entity, action).Inc()
}

// ObserveNotification counts one delivered update.
func (m *Metrics) ObserveNotification(scheme, updateType string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(scheme, updateType).Inc()
}

// ObserveCallbackFailure counts a failed subscriber callback.
func (m *Metrics) ObserveCallbackFailure() {
	if m == nil {
		return
	}
	m.CallbackFailures.Inc()
}

// AddSubscriptions moves the live subscription gauge by delta.
func (m *Metrics) AddSubscriptions(delta int) {
	if m == nil {
		return
	}
	m.Subscriptions.Add(float64(delta))
}

// ObserveViewRead records one view build.
func (m *Metrics) ObserveViewRead(scheme string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ViewReads.WithLabelValues(scheme, outcome).Inc()
	m.ViewDuration.WithLabelValues(scheme).Observe(time.Since(started).Seconds())
}

// ObserveExternalReload counts a refresh caused by an external file edit.
func (m *Metrics) ObserveExternalReload() {
	if m == nil {
		return
	}
	m.ExternalReloads.Inc()
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve runs a /metrics endpoint on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
