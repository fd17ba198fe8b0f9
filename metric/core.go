package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains process-level metrics shared by every receiver in the process.
// Per-receiver stream counters live with the receiver and are registered through
// MetricsRegistry under the receiver's name.
type Metrics struct {
	// Receiver lifecycle
	ReceiverLifecycle *prometheus.GaugeVec
	ReceiverState     *prometheus.GaugeVec

	// Forwarding
	EnsemblesPublished *prometheus.CounterVec
	PublishErrors      *prometheus.CounterVec

	// NATS
	NATSConnected prometheus.Gauge
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		ReceiverLifecycle: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "adcpstream",
				Subsystem: "receiver",
				Name:      "lifecycle",
				Help:      "Receiver lifecycle (0=created, 1=running, 2=ended)",
			},
			[]string{"receiver"},
		),

		ReceiverState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "adcpstream",
				Subsystem: "receiver",
				Name:      "instrument_state",
				Help:      "Instrument conversational state (0=unknown, 1=prompt, 2=collecting data)",
			},
			[]string{"receiver"},
		),

		EnsemblesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "adcpstream",
				Subsystem: "publish",
				Name:      "ensembles_total",
				Help:      "Total number of ensembles forwarded to NATS",
			},
			[]string{"subject"},
		),

		PublishErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "adcpstream",
				Subsystem: "publish",
				Name:      "errors_total",
				Help:      "Total number of failed ensemble publishes",
			},
			[]string{"subject"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "adcpstream",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),
	}
}

func (c *Metrics) mustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		c.ReceiverLifecycle,
		c.ReceiverState,
		c.EnsemblesPublished,
		c.PublishErrors,
		c.NATSConnected,
	)
}

// RecordLifecycle updates the lifecycle gauge for a receiver
func (c *Metrics) RecordLifecycle(receiver string, lifecycle int) {
	c.ReceiverLifecycle.WithLabelValues(receiver).Set(float64(lifecycle))
}

// RecordState updates the instrument state gauge for a receiver
func (c *Metrics) RecordState(receiver string, state int) {
	c.ReceiverState.WithLabelValues(receiver).Set(float64(state))
}

// RecordPublished increments the published ensemble counter
func (c *Metrics) RecordPublished(subject string) {
	c.EnsemblesPublished.WithLabelValues(subject).Inc()
}

// RecordPublishError increments the publish error counter
func (c *Metrics) RecordPublishError(subject string) {
	c.PublishErrors.WithLabelValues(subject).Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}
