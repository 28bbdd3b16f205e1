// ABOUTME: Prometheus metrics for the auth lifecycle orchestrator
// ABOUTME: All methods are safe on a nil *Metrics so metrics can be disabled

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/2389/printauth/internal/authkey"
)

const namespace = "printauth"

// Label values for result-labelled counters.
const (
	ResultReachable = "reachable"
	ResultTimeout   = "timeout"
	ResultError     = "error"
	ResultSuccess   = "success"
	ResultTransport = "transport"
	ResultProtocol  = "protocol"
	ResultStore     = "store"
	ResultChanged   = "changed"
	ResultUnchanged = "unchanged"
	PhaseSetup      = "setup"
	PhaseCycle      = "cycle"
)

// EventSource reports broadcaster totals.
type EventSource interface {
	Published() uint64
	Dropped() uint64
}

// Metrics holds all the Prometheus metrics for the service.
type Metrics struct {
	reg prometheus.Registerer

	Cycles         *prometheus.CounterVec
	CycleDuration  *prometheus.HistogramVec
	Probes         *prometheus.CounterVec
	Pairings       *prometheus.CounterVec
	Checks         *prometheus.CounterVec
	Credentials    *prometheus.GaugeVec
	AvailableHosts prometheus.Gauge
}

// New creates and registers the metrics with reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		Cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of reconciliation cycles run",
		}, []string{"phase"}),
		CycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one reconciliation cycle",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"phase"}),
		Probes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Host reachability probes by result",
		}, []string{"result"}),
		Pairings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairings_total",
			Help:      "Credential pairing requests by result",
		}, []string{"result"}),
		Checks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Credential status checks by result",
		}, []string{"result"}),
		Credentials: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "credentials",
			Help:      "Registered credentials by status",
		}, []string{"status"}),
		AvailableHosts: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "available_hosts",
			Help:      "Hosts that answered the most recent probe",
		}),
	}
}

// WatchEvents exports the broadcaster's published and dropped totals.
func (m *Metrics) WatchEvents(src EventSource) {
	if m == nil || src == nil {
		return
	}
	f := promauto.With(m.reg)
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Events published to subscribers",
	}, func() float64 { return float64(src.Published()) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Per-subscriber event deliveries dropped on a full buffer",
	}, func() float64 { return float64(src.Dropped()) })
}

// ObserveCycle records one finished cycle of the given phase.
func (m *Metrics) ObserveCycle(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(phase).Inc()
	m.CycleDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// ObserveProbe increments the probe counter for result.
func (m *Metrics) ObserveProbe(result string) {
	if m == nil {
		return
	}
	m.Probes.WithLabelValues(result).Inc()
}

// ObservePairing increments the pairing counter for result.
func (m *Metrics) ObservePairing(result string) {
	if m == nil {
		return
	}
	m.Pairings.WithLabelValues(result).Inc()
}

// ObserveCheck increments the check counter for result.
func (m *Metrics) ObserveCheck(result string) {
	if m == nil {
		return
	}
	m.Checks.WithLabelValues(result).Inc()
}

// SetAvailableHosts sets the reachable host gauge.
func (m *Metrics) SetAvailableHosts(n int) {
	if m == nil {
		return
	}
	m.AvailableHosts.Set(float64(n))
}

// SetCredentials replaces the per-status credential gauges. Statuses absent
// from counts are reported as zero.
func (m *Metrics) SetCredentials(counts map[authkey.Status]int) {
	if m == nil {
		return
	}
	for _, s := range authkey.AllStatuses() {
		m.Credentials.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}
