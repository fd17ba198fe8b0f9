package receiver

import (
	"fmt"
	"strings"

	"github.com/c360/adcpstream/errors"
)

// Mode selects the execution context of a receiver's read loop.
type Mode int

const (
	// ModeGoroutine runs the loop on a dedicated goroutine.
	ModeGoroutine Mode = iota
	// ModeCooperative queues the loop on a CooperativeExecutor.
	ModeCooperative
)

func (m Mode) String() string {
	switch m {
	case ModeGoroutine:
		return "goroutine"
	case ModeCooperative:
		return "cooperative"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses a mode name as used in configuration.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "goroutine":
		return ModeGoroutine, nil
	case "cooperative":
		return ModeCooperative, nil
	default:
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: unknown executor %q", errors.ErrInvalidConfig, s),
			"receiver", "ParseMode", "parse executor mode")
	}
}

// Builder creates receivers bound to one execution strategy.
type Builder struct {
	Mode Mode

	// Executor overrides Mode when set. In ModeCooperative the builder
	// creates a CooperativeExecutor on first use and every receiver it
	// builds shares it.
	Executor Executor
}

// NewBuilder creates a builder for mode.
func NewBuilder(mode Mode) *Builder {
	return &Builder{Mode: mode}
}

// Build creates a receiver for conn.
func (b *Builder) Build(conn Conn, cfg Config) (*Receiver, error) {
	exec, err := b.executor()
	if err != nil {
		return nil, err
	}
	return New(conn, cfg, exec)
}

func (b *Builder) executor() (Executor, error) {
	if b.Executor != nil {
		return b.Executor, nil
	}
	switch b.Mode {
	case ModeGoroutine:
		b.Executor = GoExecutor{}
	case ModeCooperative:
		b.Executor = NewCooperativeExecutor()
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrInvalidConfig, b.Mode),
			"Builder", "Build", "select executor")
	}
	return b.Executor, nil
}
