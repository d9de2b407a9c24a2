// Package metrics holds the Prometheus metrics shared by the consumer
// workers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	MessagesConsumed *prometheus.CounterVec
	BatchesConsumed  prometheus.Counter
	HandlerDuration  prometheus.Histogram
}

// New registers the worker metrics with the given registerer. Workers pass
// prometheus.DefaultRegisterer; tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessagesConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hrms_worker_messages_consumed_total",
			Help: "Messages pulled from the event log, by topic and outcome",
		}, []string{"topic", "outcome"}),
		BatchesConsumed: factory.NewCounter(prometheus.CounterOpts{
			Name: "hrms_worker_batches_consumed_total",
			Help: "Batches handed to the batch handler",
		}),
		HandlerDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hrms_worker_handler_duration_seconds",
			Help:    "Time spent in the message handler",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// TimeHandler starts a timer against HandlerDuration. Call ObserveDuration
// on the returned timer when the handler returns.
func (m *Metrics) TimeHandler() *prometheus.Timer {
	return prometheus.NewTimer(m.HandlerDuration)
}

// ObserveMessage records one handled message.
func (m *Metrics) ObserveMessage(topic string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.MessagesConsumed.WithLabelValues(topic, outcome).Inc()
}

// ObserveBatch records one handled batch of n messages.
func (m *Metrics) ObserveBatch(topic string, n int, err error) {
	m.BatchesConsumed.Inc()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.MessagesConsumed.WithLabelValues(topic, outcome).Add(float64(n))
}
