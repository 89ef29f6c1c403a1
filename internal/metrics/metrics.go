// Package metrics exposes Prometheus instruments for the metering core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "metering"

// Metrics holds the application's instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	WatchDecisions   *prometheus.CounterVec
	GateDuration     prometheus.Histogram
	SubscriptionOps  *prometheus.CounterVec
	EventsPruned     prometheus.Counter
	IdempotentReplay prometheus.Counter
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WatchDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_decisions_total",
			Help:      "Watch gate decisions by outcome and deny reason.",
		}, []string{"outcome", "reason"}),
		GateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gate_duration_seconds",
			Help:      "Time spent deciding a watch request, including storage.",
			Buckets:   prometheus.DefBuckets,
		}),
		SubscriptionOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_operations_total",
			Help:      "Ledger operations by kind and result.",
		}, []string{"op", "result"}),
		EventsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_events_pruned_total",
			Help:      "Watch events removed by retention on create and delete.",
		}),
		IdempotentReplay: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_idempotent_replays_total",
			Help:      "Watch requests answered from the idempotency cache.",
		}),
	}

	reg.MustRegister(
		m.WatchDecisions,
		m.GateDuration,
		m.SubscriptionOps,
		m.EventsPruned,
		m.IdempotentReplay,
	)
	return m
}

// NewRegistry returns a registry preloaded with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveDecision(outcome, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.WatchDecisions.WithLabelValues(outcome, reason).Inc()
	m.GateDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SubscriptionOp(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SubscriptionOps.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Pruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.EventsPruned.Add(float64(n))
}

func (m *Metrics) Replayed() {
	if m == nil {
		return
	}
	m.IdempotentReplay.Inc()
}
