package source

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/c360/adcpstream/errors"
	"github.com/c360/adcpstream/pkg/retry"
)

// Conn is an instrument byte stream. It satisfies receiver.Conn and adds
// Close for the owner.
type Conn interface {
	Read(p []byte) (int, error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// Config selects and dials an instrument source.
type Config struct {
	// Address is "tcp://host:port", "ws://..." or "wss://...". A bare
	// "host:port" is treated as TCP.
	Address     string
	DialTimeout time.Duration
	Retry       retry.Config
	Logger      *slog.Logger
}

// Dial connects to the source named by cfg.Address.
func Dial(ctx context.Context, cfg Config) (Conn, error) {
	if cfg.Address == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "source", "Dial", "validate address")
	}

	scheme, target, err := parseAddress(cfg.Address)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "source", "scheme", scheme)

	rc := cfg.Retry
	onRetry := rc.OnRetry
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("Instrument dial failed, retrying", "attempt", attempt, "delay", delay, "error", err)
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
	}

	switch scheme {
	case "tcp":
		return DialTCP(ctx, target, cfg.DialTimeout, rc)
	default:
		return retry.DoWithResult(ctx, rc, func() (Conn, error) {
			ws, err := DialWebSocket(ctx, target, cfg.DialTimeout)
			if err != nil {
				return nil, err
			}
			return ws, nil
		})
	}
}

func parseAddress(addr string) (scheme, target string, err error) {
	u, perr := url.Parse(addr)
	if perr != nil || u.Scheme == "" || u.Host == "" {
		if _, _, serr := net.SplitHostPort(addr); serr == nil {
			return "tcp", addr, nil
		}
		return "", "", errors.WrapInvalid(
			fmt.Errorf("%w: address %q", errors.ErrInvalidConfig, addr), "source", "Dial", "parse address")
	}

	switch u.Scheme {
	case "tcp":
		return "tcp", u.Host, nil
	case "ws", "wss":
		return u.Scheme, addr, nil
	default:
		return "", "", errors.WrapInvalid(
			fmt.Errorf("%w: unsupported scheme %q", errors.ErrInvalidConfig, u.Scheme), "source", "Dial", "parse address")
	}
}
