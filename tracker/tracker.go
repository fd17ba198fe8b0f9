// Package tracker follows the instrument's conversational state from the
// text and ensembles it emits, and keeps a bounded history of recent lines.
//
// A Tracker has exactly one writer, the receiver loop. Accessors may be
// called from any goroutine and return eventually-consistent snapshots.
package tracker

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/c360/adcpstream/metric"
	"github.com/c360/adcpstream/pd0"
	"github.com/c360/adcpstream/pkg/buffer"
	"github.com/c360/adcpstream/tsmark"
)

// MaxLines is the Line History capacity. The oldest line is dropped first.
const MaxLines = 1024

// MaxLineLen bounds a line held without a '\n'. A link that never sends one
// still produces history entries of this size.
const MaxLineLen = 64 * 1024

// DefaultPrompt is the idle prompt of the Workhorse command interface.
const DefaultPrompt = ">"

// State is the instrument's conversational state.
type State int32

const (
	// StateUnknown is the initial state.
	StateUnknown State = iota
	// StatePrompt means the instrument is idle at its prompt.
	StatePrompt
	// StateCollectingData means ensembles are arriving.
	StateCollectingData
	// StateUnset is held after a non-prompt line. It is reported as
	// StateUnknown by Tracker.State but is visible in transitions.
	StateUnset
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "TBD"
	case StatePrompt:
		return "PROMPT"
	case StateCollectingData:
		return "COLLECTING_DATA"
	case StateUnset:
		return "NONE"
	default:
		return "INVALID"
	}
}

// Transition records a change of the held state.
type Transition struct {
	From State
	To   State
	// Line is the last completed text line when the transition happened.
	Line string
}

// Options configures a Tracker.
type Options struct {
	// Prompt is matched against each completed line after trimming
	// trailing whitespace. Defaults to DefaultPrompt.
	Prompt string

	// OnTransition is called synchronously on the writer goroutine.
	OnTransition func(Transition)

	Logger *slog.Logger

	// MetricsRegistry and Name export Line History buffer metrics.
	MetricsRegistry *metric.MetricsRegistry
	Name            string
}

// Tracker derives the conversational state.
type Tracker struct {
	prompt       string
	onTransition func(Transition)
	logger       *slog.Logger

	lines   buffer.Buffer[string]
	partial []byte

	state           atomic.Int32
	lastLine        atomic.Pointer[string]
	latestEnsemble  atomic.Pointer[pd0.Ensemble]
	latestTimestamp atomic.Pointer[tsmark.Marker]
	linesTotal      atomic.Int64
	transitions     atomic.Int64
}

// New creates a tracker in StateUnknown.
func New(opts Options) (*Tracker, error) {
	prompt := opts.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "tracker")
	}

	bufOpts := []buffer.Option[string]{buffer.WithOverflowPolicy[string](buffer.DropOldest)}
	if opts.MetricsRegistry != nil && opts.Name != "" {
		bufOpts = append(bufOpts, buffer.WithMetrics[string](opts.MetricsRegistry, opts.Name+"_lines"))
	}
	lines, err := buffer.NewCircularBuffer(MaxLines, bufOpts...)
	if err != nil {
		return nil, err
	}

	t := &Tracker{
		prompt:       prompt,
		onTransition: opts.OnTransition,
		logger:       logger,
		lines:        lines,
	}
	empty := ""
	t.lastLine.Store(&empty)
	return t, nil
}

// OnText consumes text bytes. Every '\n' completes a line, as does a
// partial line reaching MaxLineLen bytes. A completed line is added to the
// history and then decides the state: the prompt gives StatePrompt, any
// other line gives StateUnset.
func (t *Tracker) OnText(text []byte) {
	for _, c := range text {
		if c != '\n' {
			t.partial = append(t.partial, c)
			if len(t.partial) >= MaxLineLen {
				t.completeLine()
			}
			continue
		}
		t.completeLine()
	}
}

func (t *Tracker) completeLine() {
	line := string(t.partial)
	t.partial = t.partial[:0]
	_ = t.lines.Write(line)
	t.lastLine.Store(&line)
	t.linesTotal.Add(1)

	if strings.TrimRightFunc(line, unicode.IsSpace) == t.prompt {
		t.setState(StatePrompt)
	} else {
		t.setState(StateUnset)
	}
}

// OnEnsemble records a decoded ensemble; the state becomes
// StateCollectingData regardless of the previous state.
func (t *Tracker) OnEnsemble(e *pd0.Ensemble) {
	t.setState(StateCollectingData)
	t.latestEnsemble.Store(e)
	t.logger.Debug("Ensemble received", "ensemble", e.String())
}

// OnTimestamp records a decoded timestamp marker.
func (t *Tracker) OnTimestamp(m *tsmark.Marker) {
	t.latestTimestamp.Store(m)
	t.logger.Debug("Timestamp received", "timestamp", m.String(), "seconds", m.Seconds)
}

func (t *Tracker) setState(to State) {
	from := State(t.state.Load())
	if from == to {
		return
	}
	t.state.Store(int32(to))
	t.transitions.Add(1)

	last := t.LastLine()
	t.logger.Info("State transition", "from", from.String(), "to", to.String(), "line", last)
	if last != "" && t.logger.Enabled(context.Background(), slog.LevelDebug) {
		t.logger.Debug("Line history", "lines", strings.Join(t.lines.Snapshot(), "\n\t|"))
	}

	if t.onTransition != nil {
		t.onTransition(Transition{From: from, To: to, Line: last})
	}
}

// State returns the public state; StateUnset is reported as StateUnknown.
func (t *Tracker) State() State {
	if s := t.RawState(); s != StateUnset {
		return s
	}
	return StateUnknown
}

// RawState returns the held state including StateUnset.
func (t *Tracker) RawState() State {
	return State(t.state.Load())
}

// Lines returns the Line History, oldest first.
func (t *Tracker) Lines() []string {
	return t.lines.Snapshot()
}

// LastLine returns the most recently completed line.
func (t *Tracker) LastLine() string {
	return *t.lastLine.Load()
}

// LatestEnsemble returns the last decoded ensemble, or nil.
func (t *Tracker) LatestEnsemble() *pd0.Ensemble {
	return t.latestEnsemble.Load()
}

// LatestTimestamp returns the last decoded timestamp, or nil.
func (t *Tracker) LatestTimestamp() *tsmark.Marker {
	return t.latestTimestamp.Load()
}

// LinesTotal returns the number of lines completed since creation.
func (t *Tracker) LinesTotal() int64 {
	return t.linesTotal.Load()
}

// Transitions returns the number of state transitions since creation.
func (t *Tracker) Transitions() int64 {
	return t.transitions.Load()
}
