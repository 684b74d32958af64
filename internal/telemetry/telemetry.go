// Package telemetry exposes Prometheus metrics about dispatched runs.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wesleyorama2/k6lunge/internal/runner"
)

const namespace = "k6lunge"

// Recorder counts runs and observes their duration. It implements
// runner.Observer.
type Recorder struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ runner.Observer = (*Recorder)(nil)

// NewRecorder returns a Recorder with its own registry, which also carries
// the Go runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Dispatched runs by execution mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of dispatched runs.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 16),
			},
			[]string{"mode"},
		),
	}

	r.registry.MustRegister(
		r.runs,
		r.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// RunFinished records one finished run.
func (r *Recorder) RunFinished(mode runner.Mode, outcome string, elapsed time.Duration) {
	r.runs.WithLabelValues(string(mode), outcome).Inc()
	r.duration.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
