package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/c360/adcpstream/errors"
	"github.com/c360/adcpstream/filter"
	"github.com/c360/adcpstream/health"
	"github.com/c360/adcpstream/metric"
	"github.com/c360/adcpstream/pd0"
	"github.com/c360/adcpstream/pkg/timestamp"
	"github.com/c360/adcpstream/tracker"
	"github.com/c360/adcpstream/transcript"
	"github.com/c360/adcpstream/tsmark"
)

// Conn is the byte source contract. Any net.Conn qualifies.
type Conn interface {
	Read(p []byte) (int, error)
	SetReadDeadline(t time.Time) error
}

// Lifecycle is the receiver lifecycle state.
type Lifecycle int32

// Lifecycle states. Ended is terminal.
const (
	LifecycleCreated Lifecycle = iota
	LifecycleRunning
	LifecycleEnded
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleCreated:
		return "created"
	case LifecycleRunning:
		return "running"
	case LifecycleEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Receiver reads an instrument stream and decodes it.
type Receiver struct {
	id       string
	name     string
	cfg      Config
	conn     Conn
	executor Executor
	logger   *slog.Logger

	tracker    *tracker.Tracker
	pipeline   *filter.Pipeline
	transcript *transcript.Writer

	lifecycle atomic.Int32
	active    atomic.Bool
	done      chan struct{}
	doneOnce  sync.Once

	startTime atomic.Int64 // unix ms, 0 before Start
	recvTime  atomic.Int64 // unix ms, 0 before the first read

	bytesReceived    atomic.Int64
	ensemblesDecoded atomic.Int64
	framesRejected   atomic.Int64

	errMu   sync.Mutex
	exitErr error

	metrics *Metrics
	core    *metric.Metrics
}

// New creates a receiver reading from conn. A nil exec runs the loop on its
// own goroutine.
func New(conn Conn, cfg Config, exec Executor) (*Receiver, error) {
	if conn == nil {
		return nil, errors.WrapInvalid(errors.ErrNoConnection, "Receiver", "New", "check connection")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	if exec == nil {
		exec = GoExecutor{}
	}

	id := uuid.New().String()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "receiver", "receiver", cfg.Name, "session", id)

	metrics, err := newMetrics(cfg.MetricsRegistry, cfg.Name)
	if err != nil {
		return nil, err
	}

	r := &Receiver{
		id:       id,
		name:     cfg.Name,
		cfg:      cfg,
		conn:     conn,
		executor: exec,
		logger:   logger,
		done:     make(chan struct{}),
		metrics:  metrics,
	}
	if cfg.MetricsRegistry != nil {
		r.core = cfg.MetricsRegistry.CoreMetrics()
	}

	r.tracker, err = tracker.New(tracker.Options{
		Prompt:          cfg.Prompt,
		OnTransition:    r.onTransition,
		Logger:          logger,
		MetricsRegistry: cfg.MetricsRegistry,
		Name:            cfg.Name,
	})
	if err != nil {
		return nil, errors.Wrap(err, "Receiver", "New", "create state tracker")
	}

	switch {
	case cfg.TranscriptWriter != nil:
		r.transcript = cfg.TranscriptWriter
	case cfg.Transcript != nil:
		r.transcript = transcript.New(cfg.Transcript, !cfg.NoStatePrefix)
	}

	s := &sink{r: r}
	if cfg.OOIDigi {
		r.pipeline = filter.NewDirect(s)
	} else {
		r.pipeline = filter.NewStandard(s, filter.Options{
			MaxMarkerLen: cfg.MaxMarkerLen,
			OnReject:     r.onReject,
		})
	}

	r.recordLifecycle(LifecycleCreated)
	return r, nil
}

// Start schedules the read loop on the executor.
func (r *Receiver) Start() error {
	if !r.lifecycle.CompareAndSwap(int32(LifecycleCreated), int32(LifecycleRunning)) {
		if r.Lifecycle() == LifecycleEnded {
			return errors.WrapInvalid(errors.ErrReceiverEnded, "Receiver", "Start", "check lifecycle")
		}
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Receiver", "Start", "check lifecycle")
	}

	r.startTime.Store(timestamp.Now())
	r.active.Store(true)
	r.recordLifecycle(LifecycleRunning)
	r.executor.Execute(r.run)
	return nil
}

// End requests a graceful stop. It returns immediately; the loop exits
// within one read timeout. Calling End more than once has no further effect.
func (r *Receiver) End() {
	r.active.Store(false)

	// Never started: there is no loop to finish the teardown.
	if r.lifecycle.CompareAndSwap(int32(LifecycleCreated), int32(LifecycleEnded)) {
		r.finish(nil)
	}
}

// Done is closed once the receiver has ended and its pipeline is closed.
func (r *Receiver) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the receiver has ended or ctx is done.
func (r *Receiver) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return errors.WrapTransient(ctx.Err(), "Receiver", "Wait", "wait for read loop exit")
	}
}

// run is the read loop. Nothing escapes it: errors and panics end the
// receiver.
func (r *Receiver) run() {
	var exitErr error
	defer func() {
		if p := recover(); p != nil {
			exitErr = errors.WrapFatal(fmt.Errorf("panic: %v", p), "Receiver", "run", "read loop")
			r.logger.Error("Receiver loop panicked", "panic", p, "stack", string(debug.Stack()))
		}
		r.active.Store(false)
		r.finish(exitErr)
	}()

	r.logger.Info("Receiver running",
		"chunk_size", r.cfg.ChunkSize,
		"read_timeout", r.cfg.ReadTimeout,
		"ooi_digi", r.cfg.OOIDigi,
		"transcript", r.transcript != nil)

	buf := make([]byte, r.cfg.ChunkSize)
	for r.active.Load() {
		if err := r.conn.SetReadDeadline(time.Now().Add(r.cfg.ReadTimeout)); err != nil {
			exitErr = r.socketError(err, "set read deadline")
			return
		}

		n, err := r.conn.Read(buf)
		if n > 0 && r.active.Load() {
			r.receive(buf[:n])
		}
		if err == nil {
			continue
		}

		if errors.IsTimeout(err) {
			if r.metrics != nil {
				r.metrics.readTimeouts.Inc()
			}
			r.pipeline.Idle()
			continue
		}

		exitErr = r.socketError(err, "socket read")
		return
	}
}

func (r *Receiver) socketError(err error, action string) error {
	if r.metrics != nil {
		r.metrics.socketErrors.Inc()
	}
	if !r.active.Load() {
		// Ending anyway; a closed socket is the expected way out.
		r.logger.Debug("Socket error after end requested", "error", err)
		return nil
	}
	r.logger.Warn("Socket error, receiver ending", "error", err, "action", action)
	return errors.WrapFatal(err, "Receiver", "run", action)
}

// receive handles one successful read. data is only valid for the call.
func (r *Receiver) receive(data []byte) {
	now := time.Now()
	r.recvTime.Store(timestamp.ToUnixMs(now))
	r.bytesReceived.Add(int64(len(data)))

	if r.metrics != nil {
		r.metrics.reads.Inc()
		r.metrics.bytesReceived.Add(float64(len(data)))
		r.metrics.lastActivity.Set(float64(now.Unix()))
	}

	if r.transcript != nil {
		if err := r.transcript.Mirror(data, r.tracker.RawState().String()); err != nil {
			r.logger.Debug("Transcript write failed", "error", err)
		}
	}

	r.pipeline.Push(data)
}

// finish tears the receiver down exactly once.
func (r *Receiver) finish(exitErr error) {
	r.doneOnce.Do(func() {
		if err := r.pipeline.Close(); err != nil {
			r.logger.Debug("Pipeline close failed", "error", err)
		}

		r.errMu.Lock()
		r.exitErr = exitErr
		r.errMu.Unlock()

		r.lifecycle.Store(int32(LifecycleEnded))
		r.recordLifecycle(LifecycleEnded)

		r.logger.Info("Receiver ended",
			"error", exitErr,
			"bytes_received", r.bytesReceived.Load(),
			"ensembles", r.ensemblesDecoded.Load(),
			"state", r.tracker.State().String())
		close(r.done)
	})
}

func (r *Receiver) onTransition(t tracker.Transition) {
	if r.metrics != nil {
		r.metrics.transitions.Inc()
		r.metrics.instrumentState.Set(float64(r.tracker.State()))
	}
	if r.core != nil {
		r.core.RecordState(r.name, int(r.tracker.State()))
	}
	if r.cfg.OnTransition != nil {
		r.cfg.OnTransition(t)
	}
}

func (r *Receiver) onReject(err error) {
	r.framesRejected.Add(1)
	if r.metrics != nil {
		r.metrics.framesRejected.WithLabelValues(rejectReason(err)).Inc()
	}
	r.logger.Debug("Ensemble frame rejected", "error", err)
}

// dispatch hands e to the listener; a panicking listener does not end the
// receiver.
func (r *Receiver) dispatch(e *pd0.Ensemble) {
	defer func() {
		if p := recover(); p != nil {
			if r.metrics != nil {
				r.metrics.listenerPanics.Inc()
			}
			r.logger.Error("Ensemble listener panicked", "panic", p)
		}
	}()
	r.cfg.Listener(e)
}

func (r *Receiver) recordLifecycle(l Lifecycle) {
	if r.core != nil {
		r.core.RecordLifecycle(r.name, int(l))
	}
}

// sink is the terminal pipeline stage.
type sink struct {
	r *Receiver
}

// Accept dispatches in stream order: timestamp, ensemble, text.
func (s *sink) Accept(f filter.Fields, text []byte) {
	r := s.r

	if f.Timestamp != nil {
		r.tracker.OnTimestamp(f.Timestamp)
		if r.metrics != nil {
			r.metrics.timestamps.Inc()
		}
	}

	if f.Ensemble != nil {
		r.ensemblesDecoded.Add(1)
		if r.metrics != nil {
			r.metrics.ensemblesDecoded.Inc()
		}
		r.tracker.OnEnsemble(f.Ensemble)
		if r.cfg.Listener != nil {
			r.dispatch(f.Ensemble)
		}
	}

	if len(text) > 0 {
		before := r.tracker.LinesTotal()
		r.tracker.OnText(text)
		if r.metrics != nil {
			r.metrics.linesCompleted.Add(float64(r.tracker.LinesTotal() - before))
		}
	}
}

// Close writes the transcript end marker.
func (s *sink) Close() error {
	if s.r.transcript == nil {
		return nil
	}
	return s.r.transcript.End()
}

// ID returns the session ID assigned at construction.
func (r *Receiver) ID() string { return r.id }

// Name returns the configured receiver name.
func (r *Receiver) Name() string { return r.name }

// Lifecycle returns the lifecycle state.
func (r *Receiver) Lifecycle() Lifecycle {
	return Lifecycle(r.lifecycle.Load())
}

// State returns the instrument's conversational state.
func (r *Receiver) State() tracker.State {
	return r.tracker.State()
}

// RecvTime returns the time of the last successful read, or the zero time.
func (r *Receiver) RecvTime() time.Time {
	ms := r.recvTime.Load()
	if ms == 0 {
		return time.Time{}
	}
	return timestamp.FromUnixMs(ms)
}

// Lines returns a snapshot of the line history, oldest first.
func (r *Receiver) Lines() []string {
	return r.tracker.Lines()
}

// LatestEnsemble returns the last decoded ensemble, or nil.
func (r *Receiver) LatestEnsemble() *pd0.Ensemble {
	return r.tracker.LatestEnsemble()
}

// LatestTimestamp returns the last decoded timestamp marker, or nil.
func (r *Receiver) LatestTimestamp() *tsmark.Marker {
	return r.tracker.LatestTimestamp()
}

// Err returns the error that ended the loop, or nil.
func (r *Receiver) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.exitErr
}

// Health reports the receiver's health. A running receiver that has been
// silent longer than the silence threshold is degraded.
func (r *Receiver) Health() health.Status {
	var status health.Status
	switch r.Lifecycle() {
	case LifecycleCreated:
		status = health.NewUnhealthy(r.name, "receiver not started")
	case LifecycleEnded:
		if err := r.Err(); err != nil {
			status = health.FromError(r.name, err)
		} else {
			status = health.NewUnhealthy(r.name, "receiver ended")
		}
	default:
		last := r.RecvTime()
		if last.IsZero() {
			last = timestamp.FromUnixMs(r.startTime.Load())
		}
		if silent := time.Since(last); silent > r.cfg.SilenceThreshold {
			status = health.NewDegraded(r.name, fmt.Sprintf("no data for %s", silent.Truncate(time.Second)))
		} else {
			status = health.NewHealthy(r.name, "receiving")
		}
	}

	var uptime time.Duration
	if started := r.startTime.Load(); started != 0 {
		uptime = timestamp.Since(started)
	}
	return status.WithMetrics(&health.Metrics{
		Uptime:           uptime,
		BytesReceived:    r.bytesReceived.Load(),
		EnsemblesDecoded: r.ensemblesDecoded.Load(),
		FramesRejected:   r.framesRejected.Load(),
		LastActivity:     r.RecvTime(),
		InstrumentState:  r.State().String(),
	})
}
