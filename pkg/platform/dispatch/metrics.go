package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	AsyncDeliveries *prometheus.CounterVec
	FallbackCalls   *prometheus.CounterVec
	DroppedEvents   prometheus.Counter
	QueueDepth      prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AsyncDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hrms_dispatch_async_deliveries_total",
			Help: "Events handed to the async delivery path, by outcome",
		}, []string{"outcome"}),
		FallbackCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hrms_dispatch_fallback_calls_total",
			Help: "Synchronous collaborator calls made when the async path was unavailable, by outcome",
		}, []string{"outcome"}),
		DroppedEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "hrms_dispatch_dropped_events_total",
			Help: "Fire-and-forget events dropped without delivery",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hrms_dispatch_queue_depth",
			Help: "Events waiting in the background publish queue",
		}),
	}
}

// The recording helpers tolerate a nil receiver so the dispatcher works
// without metrics wired.

func (m *Metrics) asyncDelivered(outcome string) {
	if m == nil {
		return
	}
	m.AsyncDeliveries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) fallbackCalled(outcome string) {
	if m == nil {
		return
	}
	m.FallbackCalls.WithLabelValues(outcome).Inc()
}

func (m *Metrics) dropped() {
	if m == nil {
		return
	}
	m.DroppedEvents.Inc()
}

func (m *Metrics) queueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}
