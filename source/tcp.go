package source

import (
	"context"
	"net"
	"time"

	"github.com/c360/adcpstream/errors"
	"github.com/c360/adcpstream/pkg/retry"
)

// DefaultDialTimeout bounds a single connection attempt.
const DefaultDialTimeout = 10 * time.Second

// DialTCP connects to a raw TCP instrument port such as a serial-to-Ethernet
// bridge, retrying with backoff per rc. A zero timeout uses DefaultDialTimeout.
func DialTCP(ctx context.Context, addr string, timeout time.Duration, rc retry.Config) (net.Conn, error) {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}

	conn, err := retry.DoWithResult(ctx, rc, func() (net.Conn, error) {
		return dialer.DialContext(ctx, "tcp", addr)
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "source", "DialTCP", "connect to "+addr)
	}
	return conn, nil
}
