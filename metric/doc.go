// Package metric provides Prometheus-based metrics collection and an HTTP
// server for adcpstream receivers.
//
// The package offers a centralized registry holding process-level metrics
// (receiver lifecycle, instrument state, ensemble forwarding, NATS health) and
// receiver-specific metrics registered under an owner name. A small HTTP
// server exposes them in Prometheus format next to a JSON health endpoint.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(":9090", "/metrics", registry, rcv.Health)
//	if err := server.Start(); err != nil {
//	    return err
//	}
//	defer server.Stop(ctx)
//
//	core := registry.CoreMetrics()
//	core.RecordLifecycle("adcp-1", 1)
//	core.RecordNATSStatus(true)
//
// # Owner Metrics
//
// Receivers register their own counters through MetricsRegistrar. The key
// is owner plus metric name, so two receivers must use distinct names or
// distinct label values:
//
//	counter := prometheus.NewCounter(prometheus.CounterOpts{
//	    Namespace: "adcpstream",
//	    Subsystem: "receiver",
//	    Name:      "bytes_received_total",
//	    ConstLabels: prometheus.Labels{"receiver": name},
//	})
//	if err := registry.RegisterCounter(name, "bytes_received", counter); err != nil {
//	    return err
//	}
//
// Duplicate registrations return an Invalid-class error from the errors
// package. A nil registry is valid everywhere it is accepted and disables
// metrics for that receiver.
package metric
