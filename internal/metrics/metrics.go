// Package metrics exposes Prometheus collectors for the decision core.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors registered by New.
type Metrics struct {
	// EventsTotal counts handled events by kind and outcome
	EventsTotal *prometheus.CounterVec
	// EventDuration tracks decision latency per event kind
	EventDuration *prometheus.HistogramVec
	// ActionsTotal counts emitted actions by kind
	ActionsTotal *prometheus.CounterVec
	// DispatchTotal counts executed actions by kind and status
	DispatchTotal *prometheus.CounterVec
	// DeniedTotal counts cooldown and quota denials by resource kind
	DeniedTotal *prometheus.CounterVec
	// CacheLookups counts cache lookups by cache and result
	CacheLookups *prometheus.CounterVec
}

// New registers the collectors on reg. A nil registerer uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starboard_events_total",
				Help: "Total handled events by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		EventDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "starboard_event_duration_seconds",
				Help:    "Event decision duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"kind"},
		),
		ActionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starboard_actions_emitted_total",
				Help: "Total emitted actions by kind",
			},
			[]string{"kind"},
		),
		DispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starboard_actions_dispatched_total",
				Help: "Total dispatched actions by kind and status",
			},
			[]string{"kind", "status"},
		),
		DeniedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starboard_denied_total",
				Help: "Total cooldown and quota denials by resource kind",
			},
			[]string{"resource"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starboard_cache_lookups_total",
				Help: "Total cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
	}
}

// ObserveEvent records a handled event.
func (m *Metrics) ObserveEvent(kind string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.EventsTotal.WithLabelValues(kind, outcome).Inc()
	m.EventDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ActionEmitted records an emitted action.
func (m *Metrics) ActionEmitted(kind string) {
	if m == nil {
		return
	}
	m.ActionsTotal.WithLabelValues(kind).Inc()
}

// ActionDispatched records the result of executing an action.
func (m *Metrics) ActionDispatched(kind string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.DispatchTotal.WithLabelValues(kind, status).Inc()
}

// Denied implements governor.Observer.
func (m *Metrics) Denied(kind string) {
	if m == nil {
		return
	}
	m.DeniedTotal.WithLabelValues(kind).Inc()
}

// CacheHit implements cache.Observer.
func (m *Metrics) CacheHit(name string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(name, "hit").Inc()
}

// CacheMiss implements cache.Observer.
func (m *Metrics) CacheMiss(name string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(name, "miss").Inc()
}
