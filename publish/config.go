package publish

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360/adcpstream/errors"
	"github.com/c360/adcpstream/metric"
)

// Defaults
const (
	DefaultSubject   = "adcp.ensembles"
	DefaultQueueSize = 256
	DefaultTimeout   = 2 * time.Second
)

// Config configures a Publisher.
type Config struct {
	// Subject ensembles are published on.
	Subject string
	// JetStream publishes through JetStream and waits for acks. The sender
	// must implement StreamSender.
	JetStream bool
	// IncludeRaw adds the complete frame, base64 encoded, to each message.
	IncludeRaw bool
	// QueueSize bounds ensembles waiting to be sent.
	QueueSize int
	// Timeout bounds a single publish.
	Timeout time.Duration

	Logger          *slog.Logger
	MetricsRegistry *metric.MetricsRegistry
}

// DefaultConfig returns the defaults with raw frames included.
func DefaultConfig() Config {
	return Config{
		Subject:    DefaultSubject,
		IncludeRaw: true,
		QueueSize:  DefaultQueueSize,
		Timeout:    DefaultTimeout,
	}
}

// Validate rejects negative sizes and subjects NATS would refuse.
func (c Config) Validate() error {
	if c.QueueSize < 0 {
		return invalid("queue size must not be negative, got %d", c.QueueSize)
	}
	if c.Timeout < 0 {
		return invalid("timeout must not be negative, got %v", c.Timeout)
	}
	if strings.ContainsAny(c.Subject, " \t\r\n") {
		return invalid("subject %q contains whitespace", c.Subject)
	}
	if strings.ContainsAny(c.Subject, "*>") {
		return invalid("subject %q contains wildcards", c.Subject)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: "+format, append([]any{errors.ErrInvalidConfig}, args...)...),
		"Config", "Validate", "validate publish config")
}

func (c Config) withDefaults() Config {
	if c.Subject == "" {
		c.Subject = DefaultSubject
	}
	if c.QueueSize == 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}
