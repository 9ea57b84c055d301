package infrastructure

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the relay's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	webhookEvents *prometheus.CounterVec
	dispatches    *prometheus.CounterVec
	pipeline      prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "webhook_events_total",
			Help:      "Gateway webhook events by kind and disposition.",
		}, []string{"kind", "disposition"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "dispatch_jobs_total",
			Help:      "Best-effort downstream jobs by name and result.",
		}, []string{"job", "result"}),
		pipeline: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "relay",
			Name:      "message_pipeline_seconds",
			Help:      "Time spent persisting an inbound message.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.webhookEvents, m.dispatches, m.pipeline)
	return m
}

func (m *Metrics) ObserveEvent(kind, disposition string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(kind, disposition).Inc()
}

func (m *Metrics) ObserveDispatch(job, result string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(job, result).Inc()
}

func (m *Metrics) ObservePipeline(start time.Time) {
	if m == nil {
		return
	}
	m.pipeline.Observe(time.Since(start).Seconds())
}
