package receiver

import (
	stderrors "errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/adcpstream/errors"
	"github.com/c360/adcpstream/metric"
)

// Metrics holds Prometheus metrics for one receiver
type Metrics struct {
	bytesReceived    prometheus.Counter
	reads            prometheus.Counter
	readTimeouts     prometheus.Counter
	socketErrors     prometheus.Counter
	ensemblesDecoded prometheus.Counter
	framesRejected   *prometheus.CounterVec
	timestamps       prometheus.Counter
	linesCompleted   prometheus.Counter
	transitions      prometheus.Counter
	listenerPanics   prometheus.Counter
	instrumentState  prometheus.Gauge
	lastActivity     prometheus.Gauge
}

// newMetrics creates and registers receiver metrics
func newMetrics(registry *metric.MetricsRegistry, name string) (*Metrics, error) {
	// nil registry = nil metrics
	if registry == nil {
		return nil, nil
	}

	labels := prometheus.Labels{"receiver": name}
	counter := func(metricName, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "adcpstream",
			Subsystem:   "receiver",
			Name:        metricName,
			Help:        help,
			ConstLabels: labels,
		})
	}
	gauge := func(metricName, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "adcpstream",
			Subsystem:   "receiver",
			Name:        metricName,
			Help:        help,
			ConstLabels: labels,
		})
	}

	m := &Metrics{
		bytesReceived:    counter("bytes_received_total", "Total bytes read from the instrument"),
		reads:            counter("reads_total", "Successful socket reads"),
		readTimeouts:     counter("read_timeouts_total", "Reads that ended at the read deadline"),
		socketErrors:     counter("socket_errors_total", "Socket read errors encountered"),
		ensemblesDecoded: counter("ensembles_decoded_total", "PD0 ensembles decoded"),
		framesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "adcpstream",
			Subsystem:   "receiver",
			Name:        "frames_rejected_total",
			Help:        "Ensemble frames discarded, by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
		timestamps:      counter("timestamps_total", "Timestamp markers extracted"),
		linesCompleted:  counter("lines_total", "Text lines completed"),
		transitions:     counter("state_transitions_total", "Instrument state transitions"),
		listenerPanics:  counter("listener_panics_total", "Ensemble listener panics recovered"),
		instrumentState: gauge("state", "Instrument state (0=unknown, 1=prompt, 2=collecting data)"),
		lastActivity:    gauge("last_activity_timestamp", "Unix timestamp of last received data"),
	}

	owner := "receiver_" + name
	regs := []error{
		registry.RegisterCounter(owner, "bytes_received", m.bytesReceived),
		registry.RegisterCounter(owner, "reads", m.reads),
		registry.RegisterCounter(owner, "read_timeouts", m.readTimeouts),
		registry.RegisterCounter(owner, "socket_errors", m.socketErrors),
		registry.RegisterCounter(owner, "ensembles_decoded", m.ensemblesDecoded),
		registry.RegisterCounterVec(owner, "frames_rejected", m.framesRejected),
		registry.RegisterCounter(owner, "timestamps", m.timestamps),
		registry.RegisterCounter(owner, "lines", m.linesCompleted),
		registry.RegisterCounter(owner, "state_transitions", m.transitions),
		registry.RegisterCounter(owner, "listener_panics", m.listenerPanics),
		registry.RegisterGauge(owner, "state", m.instrumentState),
		registry.RegisterGauge(owner, "last_activity", m.lastActivity),
	}
	for _, err := range regs {
		if err != nil {
			return nil, errors.Wrap(err, "Receiver", "newMetrics", "register receiver metrics")
		}
	}
	return m, nil
}

// rejectReason labels a discarded frame.
func rejectReason(err error) string {
	if stderrors.Is(err, errors.ErrChecksumFailed) {
		return "checksum"
	}
	return "header"
}
