// Package health reports whether a receiver and its supporting services are
// doing useful work.
//
// A Status is one of "healthy", "degraded" or "unhealthy". Receivers report
// healthy while running with recent traffic, degraded while running but
// silent, and unhealthy before start and after the loop has ended.
//
// Monitor combines several components into one view. Long-lived objects with
// their own notion of health register a Probe; event-driven ones (the NATS
// connection) push updates:
//
//	monitor := health.NewMonitor()
//	monitor.Watch("receiver", rcv.Health)
//	monitor.Update("nats", health.NewHealthy("nats", "connected"))
//
//	status := monitor.AggregateHealth("adcp-receiver")
//
// FromError strips URLs, paths, addresses and credentials from error text
// before it reaches a status message.
package health
