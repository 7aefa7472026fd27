package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Metrics holds the LPWAN Core collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	NetworkDispatchTotal    *prometheus.CounterVec
	NetworkDispatchDuration *prometheus.HistogramVec
	ModelFailuresTotal      *prometheus.CounterVec
	UplinksTotal            *prometheus.CounterVec
	MailboxPushesTotal      *prometheus.CounterVec
}

// New creates the collectors under namespace and registers them, together
// with the Go runtime and process collectors, in a private registry.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		NetworkDispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "network_dispatch_total",
				Help:      "Operations dispatched to individual networks.",
			},
			[]string{"network_type_id", "network_id", "outcome"},
		),
		NetworkDispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "network_dispatch_duration_seconds",
				Help:      "Duration of operations dispatched to individual networks.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"network_type_id"},
		),
		ModelFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_operation_failures_total",
				Help:      "Failed model operations.",
			},
			[]string{"role", "operation"},
		),
		UplinksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uplinks_total",
				Help:      "Uplinks received from devices.",
			},
			[]string{"network_type", "outcome"},
		),
		MailboxPushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mailbox_pushes_total",
				Help:      "Downlinks queued in the IP mailbox.",
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.NetworkDispatchTotal,
		m.NetworkDispatchDuration,
		m.ModelFailuresTotal,
		m.UplinksTotal,
		m.MailboxPushesTotal,
	)
	return m
}

// Registry returns the registry the collectors are registered in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveDispatch records one per-network operation of the fan-out engine.
func (m *Metrics) ObserveDispatch(networkTypeID, networkID string, err error, elapsed time.Duration) {
	m.NetworkDispatchTotal.WithLabelValues(networkTypeID, networkID, outcome(err)).Inc()
	m.NetworkDispatchDuration.WithLabelValues(networkTypeID).Observe(elapsed.Seconds())
}

// OperationFailed counts a failed model operation.
func (m *Metrics) OperationFailed(role, operation string) {
	m.ModelFailuresTotal.WithLabelValues(role, operation).Inc()
}

// ObserveUplink counts an ingested uplink.
func (m *Metrics) ObserveUplink(networkType string, err error) {
	m.UplinksTotal.WithLabelValues(networkType, outcome(err)).Inc()
}

// ObserveMailboxPush counts a mailbox push.
func (m *Metrics) ObserveMailboxPush(err error) {
	m.MailboxPushesTotal.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return outcomeFailure
	}
	return outcomeSuccess
}
