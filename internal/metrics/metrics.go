// Package metrics exposes prometheus collectors for the poller, the
// reconciliation engine and the Gmail gateway, and a small HTTP server that
// serves them.
//
// All recording methods are safe on a nil *Metrics, so components can be
// built without instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "gmailnotifier"

// Cycle results recorded by ObserveCycle.
const (
	CycleOK        = "ok"
	CycleError     = "error"
	CycleOffline   = "offline"
	CycleLoggedOut = "logged_out"
)

// Metrics bundles every collector the notifier records.
type Metrics struct {
	registry *prometheus.Registry

	cycles           *prometheus.CounterVec
	cycleDuration    prometheus.Histogram
	detailsFetched   prometheus.Counter
	threads          prometheus.Gauge
	unread           prometheus.Gauge
	mutationFailures *prometheus.CounterVec
	gatewayRequests  *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
	notifications    prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry along
// with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_cycles_total",
			Help:      "Reconciliation cycles by result.",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_cycle_duration_seconds",
			Help:      "Wall time of reconciliation cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
		detailsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thread_details_fetched_total",
			Help:      "Thread print views fetched for new or changed threads.",
		}),
		threads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "threads",
			Help:      "Threads in the current snapshot.",
		}),
		unread: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unread_threads",
			Help:      "Threads not yet viewed in this session.",
		}),
		mutationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutation_failures_total",
			Help:      "Background mutations that failed and triggered a resync.",
		}, []string{"cmd"}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Requests issued to Gmail by operation and outcome.",
		}, []string{"op", "outcome"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open).",
		}, []string{"name"}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "New-thread notifications emitted.",
		}),
	}

	reg.MustRegister(
		m.cycles, m.cycleDuration, m.detailsFetched, m.threads, m.unread,
		m.mutationFailures, m.gatewayRequests, m.breakerState, m.notifications,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveCycle records one reconciliation cycle.
func (m *Metrics) ObserveCycle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

// AddDetailsFetched counts fetched thread details.
func (m *Metrics) AddDetailsFetched(n int) {
	if m == nil {
		return
	}
	m.detailsFetched.Add(float64(n))
}

// SetThreads records the size of the latest snapshot.
func (m *Metrics) SetThreads(total, unread int) {
	if m == nil {
		return
	}
	m.threads.Set(float64(total))
	m.unread.Set(float64(unread))
}

// IncMutationFailure counts a failed background mutation.
func (m *Metrics) IncMutationFailure(cmd string) {
	if m == nil {
		return
	}
	m.mutationFailures.WithLabelValues(cmd).Inc()
}

// IncGatewayRequest counts one remote call.
func (m *Metrics) IncGatewayRequest(op, outcome string) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(op, outcome).Inc()
}

// SetBreakerState records the breaker state as 0 closed, 1 half-open, 2 open.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

// IncNotifications counts an emitted notification.
func (m *Metrics) IncNotifications() {
	if m == nil {
		return
	}
	m.notifications.Inc()
}
