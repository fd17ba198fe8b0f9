// Package filter composes the stream decoding stages into a push pipeline.
//
// Raw bytes enter at the first stage. Each stage may lift a structured field
// out of the bytes and passes the accumulated Fields plus the remaining bytes
// to the next stage. The sink at the end receives fields and residual text in
// stream order. The standard chain is
//
//	bytes -> TimestampStage -> EnsembleStage -> Sink
//
// A direct digital link skips both stages and hands raw bytes to the sink.
//
// A Pipeline is driven from a single goroutine and serves one connection.
package filter

import (
	"sync"

	"github.com/c360/adcpstream/pd0"
	"github.com/c360/adcpstream/tsmark"
)

// Fields is the set of structured values extracted so far for a span of bytes.
type Fields struct {
	Timestamp *tsmark.Marker
	Ensemble  *pd0.Ensemble
}

// IsZero reports whether no field is set.
func (f Fields) IsZero() bool {
	return f.Timestamp == nil && f.Ensemble == nil
}

// merge returns f with every field set in add overriding its own.
func (f Fields) merge(add Fields) Fields {
	if add.Timestamp != nil {
		f.Timestamp = add.Timestamp
	}
	if add.Ensemble != nil {
		f.Ensemble = add.Ensemble
	}
	return f
}

// Emit passes fields and bytes to the next element of the chain. data is
// only valid for the duration of the call.
type Emit func(f Fields, data []byte)

// Stage is one transformation step. It owns the bytes it holds between calls.
type Stage interface {
	// Process handles one chunk and emits zero or more outputs.
	Process(f Fields, data []byte, next Emit)

	// Idle releases held bytes that can no longer be completed by a read
	// already in flight. It is called when a read times out.
	Idle(next Emit)

	// Flush releases held bytes downstream when the stream ends.
	Flush(next Emit)
}

// Sink terminates the chain.
type Sink interface {
	Accept(f Fields, text []byte)
	Close() error
}

// Pipeline chains stages in front of a sink.
type Pipeline struct {
	stages []Stage
	sink   Sink
	emits  []Emit

	closeOnce sync.Once
	closed    bool
	closeErr  error
}

// New builds a pipeline running stages left to right in front of sink.
func New(sink Sink, stages ...Stage) *Pipeline {
	p := &Pipeline{
		stages: stages,
		sink:   sink,
		emits:  make([]Emit, len(stages)+1),
	}

	p.emits[len(stages)] = sink.Accept
	for i := len(stages) - 1; i >= 0; i-- {
		stage, next := stages[i], p.emits[i+1]
		p.emits[i] = func(f Fields, data []byte) {
			stage.Process(f, data, next)
		}
	}
	return p
}

// Push feeds one chunk into the pipeline. Pushing after Close is a no-op.
func (p *Pipeline) Push(data []byte) {
	if p.closed || len(data) == 0 {
		return
	}
	p.emits[0](Fields{}, data)
}

// Idle lets every stage release bytes it holds only in case more arrive.
// The receiver calls it when a read times out.
func (p *Pipeline) Idle() {
	if p.closed {
		return
	}
	for i, stage := range p.stages {
		stage.Idle(p.emits[i+1])
	}
}

// Close flushes every stage in order and closes the sink. Only the first
// call has any effect; later calls return the same error.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.closed = true
		for i, stage := range p.stages {
			stage.Flush(p.emits[i+1])
		}
		p.closeErr = p.sink.Close()
	})
	return p.closeErr
}

// Options configures the standard chain.
type Options struct {
	// MaxMarkerLen bounds an unterminated timestamp marker.
	MaxMarkerLen int

	// OnReject observes every discarded ensemble frame.
	OnReject func(err error)
}

// NewStandard builds the timestamp -> ensemble chain used for a raw
// instrument connection.
func NewStandard(sink Sink, opts Options) *Pipeline {
	return New(sink,
		NewTimestampStage(opts.MaxMarkerLen),
		NewEnsembleStage(opts.OnReject),
	)
}

// NewDirect builds a chain with no decoding stages, used for a direct
// digital link.
func NewDirect(sink Sink) *Pipeline {
	return New(sink)
}

// carrier forwards upstream fields with the first output only, so a field
// reaches the sink exactly once however many outputs a stage produces.
type carrier struct {
	upstream Fields
	sent     bool
	next     Emit
}

func (c *carrier) emit(add Fields, data []byte) {
	f := add
	if !c.sent {
		f = c.upstream.merge(add)
		c.sent = true
	}
	c.next(f, data)
}

func (c *carrier) done() {
	if !c.sent && !c.upstream.IsZero() {
		c.next(c.upstream, nil)
	}
}
