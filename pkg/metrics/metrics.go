// Package metrics exposes bridge activity as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tinyland-inc/gamelink/pkg/bus"
	"github.com/tinyland-inc/gamelink/pkg/worker"
)

const namespace = "gamelink"

var workerStates = []worker.State{
	worker.StateUninitialized,
	worker.StateSetup,
	worker.StateRunning,
	worker.StateStopped,
	worker.StateDestroyed,
}

type Metrics struct {
	Registry *prometheus.Registry

	EventsPublished *prometheus.CounterVec
	Deliveries      *prometheus.CounterVec
	Faults          *prometheus.CounterVec
	WorkerState     *prometheus.GaugeVec
	DisplaySyncs    *prometheus.CounterVec
	FeedPosts       *prometheus.CounterVec
	BreakerOpen     prometheus.Gauge
	Connected       *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published on the bus, by kind.",
		}, []string{"kind"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_deliveries_total",
			Help:      "Events delivered to workers.",
		}, []string{"worker"}),
		Faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_faults_total",
			Help:      "Worker errors and panics, by phase.",
		}, []string{"worker", "phase"}),
		WorkerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_state",
			Help:      "1 for the current lifecycle state of each worker.",
		}, []string{"worker", "state"}),
		DisplaySyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "display_syncs_total",
			Help:      "Display synchronizations, by outcome.",
		}, []string{"worker", "outcome"}),
		FeedPosts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_posts_total",
			Help:      "Feed messages posted to Discord.",
		}, []string{"feed"}),
		BreakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "discord_breaker_open",
			Help:      "1 while the Discord REST circuit breaker is open.",
		}),
		Connected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while the named connection is up.",
		}, []string{"connection"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.EventsPublished,
		m.Deliveries,
		m.Faults,
		m.WorkerState,
		m.DisplaySyncs,
		m.FeedPosts,
		m.BreakerOpen,
		m.Connected,
	)
	return m
}

// Dispatch counts every published event. Register it on the bus.
func (m *Metrics) Dispatch(e bus.Event) {
	m.EventsPublished.WithLabelValues(e.Kind.String()).Inc()
}

func (m *Metrics) Delivered(name string, _ bus.EventKind) {
	m.Deliveries.WithLabelValues(name).Inc()
}

func (m *Metrics) Faulted(name, phase string) {
	m.Faults.WithLabelValues(name, phase).Inc()
}

func (m *Metrics) Transitioned(name string, _, to worker.State) {
	for _, s := range workerStates {
		v := 0.0
		if s == to {
			v = 1
		}
		m.WorkerState.WithLabelValues(name, s.String()).Set(v)
	}
}

func (m *Metrics) DisplaySynced(name, outcome string) {
	m.DisplaySyncs.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) FeedPosted(feed string) {
	m.FeedPosts.WithLabelValues(feed).Inc()
}

func (m *Metrics) BreakerChanged(_, to string) {
	if to == "open" {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}

func (m *Metrics) SetConnected(connection string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.Connected.WithLabelValues(connection).Set(v)
}

var (
	_ worker.Observer = (*Metrics)(nil)
	_ bus.Dispatcher  = (*Metrics)(nil)
)
