// # Usage
//
//	conn, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (net.Conn, error) {
//	    return dialer.DialContext(ctx, "tcp", addr)
//	})
//
// Errors wrapped with NonRetryable, or classified Invalid by the errors
// package, stop the loop immediately. The receiver read loop itself never
// retries; reconnection is the caller's concern and this package serves it.
package retry
