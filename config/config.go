package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/adcpstream/errors"
	"github.com/c360/adcpstream/pkg/retry"
	"github.com/c360/adcpstream/publish"
	"github.com/c360/adcpstream/receiver"
	"github.com/c360/adcpstream/source"
	"github.com/c360/adcpstream/tracker"
	"github.com/c360/adcpstream/transcript"
)

// Config is the complete receiver process configuration.
type Config struct {
	Instrument InstrumentConfig `yaml:"instrument"`
	Receiver   ReceiverConfig   `yaml:"receiver"`
	Transcript TranscriptConfig `yaml:"transcript"`
	NATS       NATSConfig       `yaml:"nats"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// InstrumentConfig says where the instrument byte stream comes from.
type InstrumentConfig struct {
	// Address is "tcp://host:port", "host:port", "ws://..." or "wss://...".
	Address     string        `yaml:"address"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	Retry       RetryConfig   `yaml:"retry"`
}

// RetryConfig configures dial retries.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	Jitter       bool          `yaml:"jitter"`
}

// ReceiverConfig holds the receiver construction parameters.
type ReceiverConfig struct {
	Name             string        `yaml:"name"`
	ChunkSize        int           `yaml:"chunk_size"`
	OOIDigi          bool          `yaml:"ooi_digi"`
	Prompt           string        `yaml:"prompt"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	MaxMarkerLen     int           `yaml:"max_marker_len"`
	SilenceThreshold time.Duration `yaml:"silence_threshold"`
	// Executor is "goroutine" or "cooperative".
	Executor string `yaml:"executor"`
}

// TranscriptConfig enables the rotating transcript file when Path is set.
type TranscriptConfig struct {
	Path        string `yaml:"path"`
	PrefixState bool   `yaml:"prefix_state"`
	MaxSizeMB   int    `yaml:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age_days"`
	Compress    bool   `yaml:"compress"`
}

// NATSConfig enables ensemble forwarding when URL is set.
type NATSConfig struct {
	URL           string        `yaml:"url"`
	Name          string        `yaml:"name"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	Token         string        `yaml:"token"`
	TLSCert       string        `yaml:"tls_cert"`
	TLSKey        string        `yaml:"tls_key"`
	TLSCA         string        `yaml:"tls_ca"`
	MaxReconnects int           `yaml:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
	Timeout       time.Duration `yaml:"timeout"`
	Subject       string        `yaml:"subject"`
	JetStream     bool          `yaml:"jetstream"`
	Stream        string        `yaml:"stream"`
	IncludeRaw    bool          `yaml:"include_raw"`
	QueueSize     int           `yaml:"queue_size"`
}

// MetricsConfig enables the /metrics and /health endpoint when Enabled.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	rc := retry.DefaultConfig()
	pc := publish.DefaultConfig()
	return &Config{
		Instrument: InstrumentConfig{
			DialTimeout: source.DefaultDialTimeout,
			Retry: RetryConfig{
				MaxAttempts:  rc.MaxAttempts,
				InitialDelay: rc.InitialDelay,
				MaxDelay:     rc.MaxDelay,
				Multiplier:   rc.Multiplier,
				Jitter:       rc.AddJitter,
			},
		},
		Receiver: ReceiverConfig{
			Name:             "adcp",
			ChunkSize:        receiver.DefaultChunkSize,
			Prompt:           tracker.DefaultPrompt,
			ReadTimeout:      receiver.DefaultReadTimeout,
			SilenceThreshold: receiver.DefaultSilenceThreshold,
			Executor:         receiver.ModeGoroutine.String(),
		},
		Transcript: TranscriptConfig{
			PrefixState: true,
			MaxSizeMB:   100,
			MaxBackups:  10,
		},
		NATS: NATSConfig{
			Name:          "adcp-receiver",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			Timeout:       5 * time.Second,
			Subject:       pc.Subject,
			IncludeRaw:    pc.IncludeRaw,
			QueueSize:     pc.QueueSize,
		},
		Metrics: MetricsConfig{
			Address: ":9090",
			Path:    "/metrics",
		},
	}
}

// Validate checks every section and reports the first problem found.
func (c *Config) Validate() error {
	if c.Instrument.Address == "" {
		return invalid("instrument.address is required")
	}
	if c.Instrument.DialTimeout < 0 {
		return invalid("instrument.dial_timeout must not be negative")
	}
	if c.Instrument.Retry.MaxDelay > 0 && c.Instrument.Retry.MaxDelay < c.Instrument.Retry.InitialDelay {
		return invalid("instrument.retry.max_delay must be >= initial_delay")
	}

	if _, err := receiver.ParseMode(c.Receiver.Executor); err != nil {
		return err
	}
	rc := c.ReceiverConfig()
	if err := rc.Validate(); err != nil {
		return err
	}

	if c.Transcript.MaxSizeMB < 0 || c.Transcript.MaxBackups < 0 || c.Transcript.MaxAgeDays < 0 {
		return invalid("transcript rotation limits must not be negative")
	}

	if c.NATS.URL != "" {
		if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
			return invalid(fmt.Sprintf("nats.url %q must start with nats:// or tls://", c.NATS.URL))
		}
		if (c.NATS.TLSCert == "") != (c.NATS.TLSKey == "") {
			return invalid("nats.tls_cert and nats.tls_key must be set together")
		}
		if c.NATS.JetStream && c.NATS.Stream == "" {
			return invalid("nats.stream is required when nats.jetstream is set")
		}
		if err := c.PublishConfig().Validate(); err != nil {
			return err
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return invalid("metrics.path must start with /")
	}
	return nil
}

func invalid(msg string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg), "Config", "Validate", "validate config")
}

// SourceConfig returns the dial parameters for source.Dial.
func (c *Config) SourceConfig() source.Config {
	r := c.Instrument.Retry
	return source.Config{
		Address:     c.Instrument.Address,
		DialTimeout: c.Instrument.DialTimeout,
		Retry: retry.Config{
			MaxAttempts:  r.MaxAttempts,
			InitialDelay: r.InitialDelay,
			MaxDelay:     r.MaxDelay,
			Multiplier:   r.Multiplier,
			AddJitter:    r.Jitter,
		},
	}
}

// ReceiverConfig returns the receiver parameters. Callbacks, transcript,
// logger and registry are left for the caller to wire.
func (c *Config) ReceiverConfig() receiver.Config {
	return receiver.Config{
		Name:             c.Receiver.Name,
		ChunkSize:        c.Receiver.ChunkSize,
		OOIDigi:          c.Receiver.OOIDigi,
		Prompt:           c.Receiver.Prompt,
		ReadTimeout:      c.Receiver.ReadTimeout,
		NoStatePrefix:    !c.Transcript.PrefixState,
		MaxMarkerLen:     c.Receiver.MaxMarkerLen,
		SilenceThreshold: c.Receiver.SilenceThreshold,
	}
}

// ExecutorMode returns the parsed receiver executor.
func (c *Config) ExecutorMode() receiver.Mode {
	mode, _ := receiver.ParseMode(c.Receiver.Executor)
	return mode
}

// RotateConfig returns the transcript file settings.
func (c *Config) RotateConfig() transcript.RotateConfig {
	return transcript.RotateConfig{
		Filename:   c.Transcript.Path,
		MaxSizeMB:  c.Transcript.MaxSizeMB,
		MaxBackups: c.Transcript.MaxBackups,
		MaxAgeDays: c.Transcript.MaxAgeDays,
		Compress:   c.Transcript.Compress,
	}
}

// PublishConfig returns the publisher settings.
func (c *Config) PublishConfig() publish.Config {
	return publish.Config{
		Subject:    c.NATS.Subject,
		JetStream:  c.NATS.JetStream,
		IncludeRaw: c.NATS.IncludeRaw,
		QueueSize:  c.NATS.QueueSize,
	}
}

// String renders the configuration as YAML with credentials masked.
func (c *Config) String() string {
	masked := *c
	for _, s := range []*string{&masked.NATS.Password, &masked.NATS.Token} {
		if *s != "" {
			*s = "***"
		}
	}
	data, err := yaml.Marshal(&masked)
	if err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return string(data)
}
