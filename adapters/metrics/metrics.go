// Package metrics provides Prometheus metrics for the dispatch runtime.
package metrics

import (
	"net/http"
	"time"

	"github.com/artpar/hfn/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hfn"

// Frame outcomes.
const (
	OutcomeDispatched = "dispatched"
	outcomeDropped    = "dropped_"
)

// Collector holds all Prometheus metrics for the runtime.
type Collector struct {
	registry *prometheus.Registry

	// Frame metrics
	FramesTotal    *prometheus.CounterVec
	DecodeFailures prometheus.Counter

	// Handler metrics
	HandlerDuration  *prometheus.HistogramVec
	HandlerErrors    *prometheus.CounterVec
	HandlersInFlight prometheus.Gauge

	// Outbound metrics
	StatePushes   *prometheus.CounterVec
	ErrorsDropped prometheus.Counter

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a collector on its own registry, with Go and process
// collectors attached. Serve it with Handler.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c := NewWithRegistry(reg)
	c.registry = reg
	return c
}

// NewWithRegistry registers the runtime metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		FramesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_total",
				Help:      "Inbound frames by outcome",
			},
			[]string{"outcome"},
		),
		DecodeFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decode_failures_total",
				Help:      "Handler inputs that failed to decode",
			},
		),
		HandlerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "handler_duration_seconds",
				Help:      "Handler run time in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"handler"},
		),
		HandlerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handler_errors_total",
				Help:      "Handler failures by kind",
			},
			[]string{"handler", "kind"},
		),
		HandlersInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "handlers_in_flight",
				Help:      "Handlers currently running",
			},
		),
		StatePushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_pushes_total",
				Help:      "State pushes by result",
			},
			[]string{"result"},
		),
		ErrorsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_dropped_total",
				Help:      "Handler errors dropped because the error channel was full",
			},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
	}
}

// Handler serves the collector's registry. Collectors built with
// NewWithRegistry fall back to the default gatherer.
func (c *Collector) Handler() http.Handler {
	if c.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Gatherer returns the registry backing the collector, or nil.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c.registry == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) FrameDispatched() {
	c.FramesTotal.WithLabelValues(OutcomeDispatched).Inc()
}

func (c *Collector) FrameDropped(reason string) {
	c.FramesTotal.WithLabelValues(outcomeDropped + reason).Inc()
}

func (c *Collector) DecodeFailed() {
	c.DecodeFailures.Inc()
}

func (c *Collector) HandlerStarted() {
	c.HandlersInFlight.Inc()
}

func (c *Collector) HandlerFinished(handler string, elapsed time.Duration, failure string) {
	c.HandlersInFlight.Dec()
	c.HandlerDuration.WithLabelValues(handler).Observe(elapsed.Seconds())
	if failure != "" {
		c.HandlerErrors.WithLabelValues(handler, failure).Inc()
	}
}

func (c *Collector) StatePushed(result string) {
	c.StatePushes.WithLabelValues(result).Inc()
}

func (c *Collector) ErrorDropped() {
	c.ErrorsDropped.Inc()
}

// ConfigReloaded records the outcome of a config reload.
func (c *Collector) ConfigReloaded(err error) {
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
}

var _ ports.Metrics = (*Collector)(nil)
