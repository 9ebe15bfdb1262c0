package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mosaic"

// Exporter adapts a Collector to the Prometheus collector interface.
// Values are read from the Collector at scrape time, so the hot paths
// stay plain atomic adds.
type Exporter struct {
	c *Collector

	sessionsStarted   *prometheus.Desc
	sessionsDestroyed *prometheus.Desc
	sessionsActive    *prometheus.Desc
	graveyardSize     *prometheus.Desc
	tasks             *prometheus.Desc
	completions       *prometheus.Desc
	maintenanceTicks  *prometheus.Desc
	errorsTotal       *prometheus.Desc
}

var _ prometheus.Collector = (*Exporter)(nil)

// NewExporter returns an Exporter reading from c.  A nil c exports
// zeros.
func NewExporter(c *Collector) *Exporter {
	return &Exporter{
		c: c,
		sessionsStarted: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sessions", "started_total"),
			"Sessions created by begin-session.", nil, nil),
		sessionsDestroyed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sessions", "destroyed_total"),
			"Sessions released after draining.", nil, nil),
		sessionsActive: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sessions", "active"),
			"Sessions in the active slot (0 or 1).", nil, nil),
		graveyardSize: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sessions", "graveyard"),
			"Superseded sessions still draining tasks.", nil, nil),
		tasks: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "tasks", "total"),
			"Task lifecycle events by outcome.", []string{"outcome"}, nil),
		completions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "completions", "total"),
			"Operation completions by result.", []string{"result"}, nil),
		maintenanceTicks: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "maintenance", "ticks_total"),
			"Periodic maintenance passes.", nil, nil),
		errorsTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "errors_total"),
			"Error notifications emitted.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.sessionsStarted
	ch <- e.sessionsDestroyed
	ch <- e.sessionsActive
	ch <- e.graveyardSize
	ch <- e.tasks
	ch <- e.completions
	ch <- e.maintenanceTicks
	ch <- e.errorsTotal
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	s := e.c.Snapshot()

	counter := func(d *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v))
	}

	counter(e.sessionsStarted, s.SessionsStarted)
	counter(e.sessionsDestroyed, s.SessionsDestroyed)
	gauge(e.sessionsActive, s.SessionsActive)
	gauge(e.graveyardSize, s.GraveyardSize)

	counter(e.tasks, s.TasksSubmitted, "submitted")
	counter(e.tasks, s.TasksRejected, "rejected")
	counter(e.tasks, s.TasksReaped, "reaped")
	counter(e.tasks, s.TasksStale, "stale")
	counter(e.tasks, s.TaskPanics, "panicked")

	counter(e.completions, s.CompletionsDelivered, "delivered")
	counter(e.completions, s.CompletionsSuppressed, "suppressed")
	counter(e.completions, s.CompletionsFailed, "failed")

	counter(e.maintenanceTicks, s.MaintenanceTicks)
	counter(e.errorsTotal, s.ErrorsTotal)
}

// Handler returns an HTTP handler serving c on a private registry.
func Handler(c *Collector) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewExporter(c)); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

// Serve exposes c at addr under /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, c *Collector) error {
	h, err := Handler(c)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
