package receiver

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/c360/adcpstream/errors"
	"github.com/c360/adcpstream/metric"
	"github.com/c360/adcpstream/pd0"
	"github.com/c360/adcpstream/tracker"
	"github.com/c360/adcpstream/transcript"
)

// Defaults
const (
	DefaultChunkSize        = 4096
	DefaultReadTimeout      = 400 * time.Millisecond
	DefaultSilenceThreshold = 30 * time.Second
)

// Listener receives each decoded ensemble on the receiver's execution
// context. It must not block for long: the read loop waits for it.
type Listener func(e *pd0.Ensemble)

// Config holds the receiver construction parameters.
type Config struct {
	// Name identifies the receiver in logs and metrics.
	Name string

	// ChunkSize is the number of bytes requested per read.
	ChunkSize int

	// OOIDigi marks a direct digital link: no timestamp or ensemble
	// extraction, all bytes are treated as text.
	OOIDigi bool

	// Prompt is the instrument's idle prompt.
	Prompt string

	// ReadTimeout bounds each read so End is noticed promptly.
	ReadTimeout time.Duration

	// NoStatePrefix turns off the state annotation inserted after each
	// newline of a Transcript. It does not apply to TranscriptWriter, which
	// carries its own setting.
	NoStatePrefix bool

	// MaxMarkerLen bounds an unterminated timestamp marker.
	MaxMarkerLen int

	// SilenceThreshold is how long a running receiver may go without data
	// before it reports itself degraded.
	SilenceThreshold time.Duration

	// Listener is called once per decoded ensemble. Optional.
	Listener Listener

	// Transcript receives a copy of the raw traffic. Optional. The receiver
	// writes the end marker but leaves closing to the owner.
	Transcript io.Writer

	// TranscriptWriter is a ready transcript, such as one from
	// transcript.OpenRotating. It takes precedence over Transcript.
	TranscriptWriter *transcript.Writer

	// OnTransition observes instrument state changes. Optional.
	OnTransition func(tracker.Transition)

	Logger          *slog.Logger
	MetricsRegistry *metric.MetricsRegistry
}

// DefaultConfig returns the receiver defaults.
func DefaultConfig() Config {
	return Config{
		Name:             "adcp",
		ChunkSize:        DefaultChunkSize,
		Prompt:           tracker.DefaultPrompt,
		ReadTimeout:      DefaultReadTimeout,
		SilenceThreshold: DefaultSilenceThreshold,
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.ChunkSize < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: chunk size %d", errors.ErrInvalidConfig, c.ChunkSize),
			"Config", "Validate", "chunk size validation")
	}
	if c.ReadTimeout < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: read timeout %v", errors.ErrInvalidConfig, c.ReadTimeout),
			"Config", "Validate", "read timeout validation")
	}
	if c.SilenceThreshold < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: silence threshold %v", errors.ErrInvalidConfig, c.SilenceThreshold),
			"Config", "Validate", "silence threshold validation")
	}
	return nil
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "adcp"
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Prompt == "" {
		c.Prompt = tracker.DefaultPrompt
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.SilenceThreshold == 0 {
		c.SilenceThreshold = DefaultSilenceThreshold
	}
	return c
}
