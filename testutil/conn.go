package testutil

import (
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// Step is one scripted read result.
type Step struct {
	Data    []byte
	Err     error
	timeout bool
}

// Data scripts a successful read.
func Data(b []byte) Step {
	return Step{Data: b}
}

// Timeout scripts an immediate deadline expiry.
func Timeout() Step {
	return Step{timeout: true}
}

// Fail scripts a read error.
func Fail(err error) Step {
	return Step{Err: err}
}

// ScriptedConn is an in-memory byte source with read deadlines.
type ScriptedConn struct {
	// EOFAtEnd makes reads return io.EOF once the script is exhausted.
	EOFAtEnd bool

	mu       sync.Mutex
	steps    []Step
	deadline time.Time
	reads    int
	closed   bool

	wake    chan struct{}
	closeCh chan struct{}
}

// NewScriptedConn creates a connection that plays steps in order.
func NewScriptedConn(steps ...Step) *ScriptedConn {
	return &ScriptedConn{
		steps:   steps,
		wake:    make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}
}

// Push appends steps and wakes a blocked reader.
func (c *ScriptedConn) Push(steps ...Step) {
	c.mu.Lock()
	c.steps = append(c.steps, steps...)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Read returns the next scripted result. A data step larger than p is
// returned over several reads.
func (c *ScriptedConn) Read(p []byte) (int, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return 0, net.ErrClosed
		}
		c.reads++

		if len(c.steps) > 0 {
			step := c.steps[0]
			n := copy(p, step.Data)
			if n < len(step.Data) {
				c.steps[0].Data = step.Data[n:]
				c.mu.Unlock()
				return n, nil
			}
			c.steps = c.steps[1:]
			c.mu.Unlock()

			if step.timeout {
				return 0, os.ErrDeadlineExceeded
			}
			return n, step.Err
		}

		if c.EOFAtEnd {
			c.mu.Unlock()
			return 0, io.EOF
		}
		deadline := c.deadline
		c.mu.Unlock()

		wait := time.Until(deadline)
		if deadline.IsZero() {
			wait = time.Hour
		}
		if wait <= 0 {
			return 0, os.ErrDeadlineExceeded
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			return 0, os.ErrDeadlineExceeded
		case <-c.wake:
			timer.Stop()
		case <-c.closeCh:
			timer.Stop()
			return 0, net.ErrClosed
		}
	}
}

// SetReadDeadline implements the receiver connection contract.
func (c *ScriptedConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	c.deadline = t
	return nil
}

// Close unblocks pending reads; later reads fail with net.ErrClosed.
func (c *ScriptedConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closeCh)
	}
	return nil
}

// Reads returns the number of Read calls so far.
func (c *ScriptedConn) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Remaining returns the number of unplayed steps.
func (c *ScriptedConn) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.steps)
}
