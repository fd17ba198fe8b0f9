package publish

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/adcpstream/errors"
	"github.com/c360/adcpstream/health"
	"github.com/c360/adcpstream/metric"
	"github.com/c360/adcpstream/pd0"
	"github.com/c360/adcpstream/pkg/timestamp"
	"github.com/c360/adcpstream/pkg/worker"
	"github.com/c360/adcpstream/tsmark"
)

// Header names set on every message when the sender supports headers.
const (
	HeaderReceiver = "Adcp-Receiver"
	HeaderSession  = "Adcp-Session"
)

// Sender publishes a payload on a subject. *natsclient.Client implements it.
type Sender interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// HeaderSender is a Sender that can publish messages with headers.
type HeaderSender interface {
	PublishMsg(ctx context.Context, msg *nats.Msg) error
}

// StreamSender publishes through JetStream and waits for the ack.
type StreamSender interface {
	PublishToStream(ctx context.Context, msg *nats.Msg) (*jetstream.PubAck, error)
}

// Source identifies the receiver an ensemble came from.
// *receiver.Receiver implements it.
type Source interface {
	ID() string
	Name() string
	LatestTimestamp() *tsmark.Marker
}

// Message is the JSON document published per ensemble.
type Message struct {
	ID             string      `json:"id"`
	Receiver       string      `json:"receiver,omitempty"`
	Session        string      `json:"session,omitempty"`
	ReceivedAt     string      `json:"received_at"`
	InstrumentTime string      `json:"instrument_time,omitempty"`
	Ensemble       pd0.Summary `json:"ensemble"`
	Raw            []byte      `json:"raw,omitempty"`
}

// Stats counts publisher outcomes.
type Stats struct {
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

// Publisher forwards ensembles from the receiver loop to NATS. The loop only
// enqueues; a single worker encodes and sends in arrival order, so a slow or
// absent server never stalls reception.
type Publisher struct {
	cfg    Config
	sender Sender
	logger *slog.Logger
	core   *metric.Metrics
	pool   *worker.Pool[*Message]

	source atomic.Pointer[Source]

	published atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
	// lastFailed is true when the most recent send failed.
	lastFailed atomic.Bool
}

// New validates cfg and creates a stopped publisher.
func New(sender Sender, cfg Config) (*Publisher, error) {
	if sender == nil {
		return nil, errors.WrapInvalid(errors.ErrNoConnection, "Publisher", "New", "validate sender")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if cfg.JetStream {
		if _, ok := sender.(StreamSender); !ok {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: sender %T cannot publish to JetStream", errors.ErrInvalidConfig, sender),
				"Publisher", "New", "validate sender")
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Publisher{
		cfg:    cfg,
		sender: sender,
		logger: logger.With("component", "publisher", "subject", cfg.Subject),
	}
	if cfg.MetricsRegistry != nil {
		p.core = cfg.MetricsRegistry.CoreMetrics()
	}

	var poolOpts []worker.Option[*Message]
	if cfg.MetricsRegistry != nil {
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[*Message](cfg.MetricsRegistry, "publish_"+cfg.Subject))
	}
	pool, err := worker.NewPool(1, cfg.QueueSize, p.send, poolOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Publisher", "New", "create worker pool")
	}
	p.pool = pool
	return p, nil
}

// Bind attaches the receiver whose identity and latest timestamp are stamped
// on each message. Ensembles seen before Bind carry no receiver fields.
func (p *Publisher) Bind(src Source) {
	p.source.Store(&src)
}

// Start launches the send worker.
func (p *Publisher) Start(ctx context.Context) error {
	if err := p.pool.Start(ctx); err != nil {
		return errors.WrapInvalid(err, "Publisher", "Start", "start worker pool")
	}
	p.logger.Info("Publisher started", "jetstream", p.cfg.JetStream, "queue_size", p.cfg.QueueSize)
	return nil
}

// Stop refuses new ensembles and waits up to timeout for queued ones to be sent.
func (p *Publisher) Stop(timeout time.Duration) error {
	err := p.pool.Stop(timeout)
	stats := p.Stats()
	p.logger.Info("Publisher stopped",
		"published", stats.Published, "failed", stats.Failed, "dropped", stats.Dropped)
	if err != nil {
		return errors.WrapTransient(err, "Publisher", "Stop", "drain queue")
	}
	return nil
}

// Listener returns the callback to install as the receiver's listener.
func (p *Publisher) Listener() func(*pd0.Ensemble) {
	return p.Enqueue
}

// Enqueue builds the message for e and queues it. It never blocks; when the
// queue is full the ensemble is dropped and counted.
func (p *Publisher) Enqueue(e *pd0.Ensemble) {
	msg := p.newMessage(e)
	if err := p.pool.Submit(msg); err != nil {
		p.dropped.Add(1)
		if p.core != nil {
			p.core.RecordPublishError(p.cfg.Subject)
		}
		if stderrors.Is(err, worker.ErrQueueFull) {
			p.logger.Warn("Publish queue full, ensemble dropped", "id", msg.ID)
		} else {
			p.logger.Debug("Publisher not accepting ensembles", "id", msg.ID, "error", err)
		}
	}
}

func (p *Publisher) newMessage(e *pd0.Ensemble) *Message {
	msg := &Message{
		ID:         uuid.NewString(),
		ReceivedAt: timestamp.Format(timestamp.Now()),
		Ensemble:   e.Summary(),
	}
	if p.cfg.IncludeRaw {
		msg.Raw = e.Raw
	}
	if src := p.source.Load(); src != nil {
		s := *src
		msg.Receiver = s.Name()
		msg.Session = s.ID()
		if ts := s.LatestTimestamp(); ts != nil {
			msg.InstrumentTime = ts.String()
		}
	}
	return msg
}

func (p *Publisher) send(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return p.fail(msg, errors.WrapInvalid(err, "Publisher", "send", "encode message"))
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	switch {
	case p.cfg.JetStream:
		_, err = p.sender.(StreamSender).PublishToStream(ctx, p.natsMsg(msg, data))
	case p.headers():
		err = p.sender.(HeaderSender).PublishMsg(ctx, p.natsMsg(msg, data))
	default:
		err = p.sender.Publish(ctx, p.cfg.Subject, data)
	}
	if err != nil {
		return p.fail(msg, err)
	}

	p.published.Add(1)
	p.lastFailed.Store(false)
	if p.core != nil {
		p.core.RecordPublished(p.cfg.Subject)
	}
	return nil
}

func (p *Publisher) headers() bool {
	_, ok := p.sender.(HeaderSender)
	return ok
}

func (p *Publisher) natsMsg(msg *Message, data []byte) *nats.Msg {
	m := nats.NewMsg(p.cfg.Subject)
	m.Data = data
	// JetStream de-duplicates on this header.
	m.Header.Set(jetstream.MsgIDHeader, msg.ID)
	if msg.Receiver != "" {
		m.Header.Set(HeaderReceiver, msg.Receiver)
	}
	if msg.Session != "" {
		m.Header.Set(HeaderSession, msg.Session)
	}
	return m
}

func (p *Publisher) fail(msg *Message, err error) error {
	p.failed.Add(1)
	p.lastFailed.Store(true)
	if p.core != nil {
		p.core.RecordPublishError(p.cfg.Subject)
	}
	p.logger.Warn("Publish failed", "id", msg.ID, "error", err)
	return err
}

// Stats returns the publish counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
	}
}

// Health is degraded while publishes fail or ensembles are dropped. It is
// never unhealthy: reception continues without the publisher.
func (p *Publisher) Health() health.Status {
	stats := p.Stats()
	switch {
	case p.lastFailed.Load():
		return health.NewDegraded("publisher", fmt.Sprintf("publishing failing, %d failures", stats.Failed))
	case stats.Dropped > 0:
		return health.NewDegraded("publisher", fmt.Sprintf("%d ensembles dropped", stats.Dropped))
	default:
		return health.NewHealthy("publisher", fmt.Sprintf("%d ensembles published", stats.Published))
	}
}
