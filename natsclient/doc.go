// Package natsclient wraps a NATS connection used to forward decoded
// ensembles, with a circuit breaker in front of connection attempts.
//
// The client moves through Disconnected, Connecting, Connected and
// Reconnecting. After a configurable number of consecutive failures the
// circuit opens: Connect and the publish methods fail fast with
// ErrCircuitOpen until the backoff elapses. Each opening doubles the backoff
// up to the configured maximum.
//
// Basic usage:
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("adcp-receiver"),
//	    natsclient.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	err = client.Publish(ctx, "adcp.ensembles", payload)
//
// JetStream is available when the server enables it:
//
//	if _, err := client.EnsureStream(ctx, "ADCP", []string{"adcp.>"}); err != nil {
//	    return err
//	}
//	ack, err := client.PublishToStream(ctx, msg)
//
// For tests, NewTestClient starts a throwaway server with testcontainers.
package natsclient
