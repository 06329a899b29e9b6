package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics tracks the publisher drain loop.
type OutboxMetrics struct {
	published prometheus.Counter
	failed    prometheus.Counter
	backlog   prometheus.Gauge
}

// NewOutboxMetrics registers outbox publisher metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stockbook",
		Subsystem: "outbox",
		Name:      "events_published_total",
		Help:      "Outbox events successfully published to Pub/Sub.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stockbook",
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Outbox publish attempts that failed.",
	})
	backlog := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stockbook",
		Subsystem: "outbox",
		Name:      "backlog",
		Help:      "Unpublished outbox events seen in the last poll.",
	})
	reg.MustRegister(published, failed, backlog)
	return &OutboxMetrics{
		published: published,
		failed:    failed,
		backlog:   backlog,
	}
}

// IncPublished increments the published counter.
func (o *OutboxMetrics) IncPublished() {
	if o == nil || o.published == nil {
		return
	}
	o.published.Inc()
}

// IncFailed increments the failed counter.
func (o *OutboxMetrics) IncFailed() {
	if o == nil || o.failed == nil {
		return
	}
	o.failed.Inc()
}

// SetBacklog records the size of the most recent unpublished batch.
func (o *OutboxMetrics) SetBacklog(n int) {
	if o == nil || o.backlog == nil {
		return
	}
	o.backlog.Set(float64(n))
}
