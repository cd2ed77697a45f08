package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

// subscriptionBuffer bounds each subscription's channel. The NATS callback
// must never block, so payloads beyond it are dropped and counted.
const subscriptionBuffer = 256

// NATSPublisher publishes dirty notifications on their per-variant subject.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects the server side of the bus.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("plantlog-server"))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

// PublishDirty sends n unless ctx has already ended.
func (p *NATSPublisher) PublishDirty(ctx context.Context, n model.DirtyNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := EncodeDirty(n)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(TopicFor(n))
	msg.Header.Set(HeaderKind, string(n.Kind))
	msg.Data = data
	return p.conn.PublishMsg(msg)
}

// Flush waits until the server has received everything published so far.
func (p *NATSPublisher) Flush() error {
	return p.conn.FlushTimeout(5 * time.Second)
}

// Close drains pending publishes before closing the connection.
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("draining NATS connection: %w", err)
	}
	return nil
}

// NATSSubscriber is the client side of the bus.
type NATSSubscriber struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNATSSubscriber connects with unlimited reconnects. Extra options, such
// as a reconnect handler, are appended to the defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	defaults := []nats.Option{
		nats.Name("plantlog-client"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc, logger: slog.Default()}, nil
}

// Subscription delivers decoded notifications from one subject.
type Subscription struct {
	sub     *nats.Subscription
	ch      chan model.DirtyNotification
	dropped atomic.Uint64

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

// C returns the delivery channel. It is closed by Unsubscribe.
func (s *Subscription) C() <-chan model.DirtyNotification { return s.ch }

// Dropped counts notifications lost to a full channel. Any increase means
// the consumer has missed invalidations and must resynchronize.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Unsubscribe stops delivery and closes C. It is safe to call twice.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		_ = s.sub.Unsubscribe()
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

func (s *Subscription) deliver(n model.DirtyNotification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- n:
	default:
		s.dropped.Add(1)
	}
}

// SubscribeDirty subscribes to subject (wildcards allowed). Malformed
// payloads are logged and skipped.
func (ns *NATSSubscriber) SubscribeDirty(subject string) (*Subscription, error) {
	s := &Subscription{ch: make(chan model.DirtyNotification, subscriptionBuffer)}
	sub, err := ns.conn.Subscribe(subject, func(msg *nats.Msg) {
		n, err := DecodeDirty(msg.Data)
		if err != nil {
			ns.logger.Warn("skipping malformed dirty payload", "subject", msg.Subject, "error", err)
			return
		}
		s.deliver(n)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	s.sub = sub
	// Register the interest on the server before returning so publishes
	// from other connections are routed to it.
	if err := ns.conn.Flush(); err != nil {
		s.Unsubscribe()
		return nil, fmt.Errorf("flushing subscription: %w", err)
	}
	return s, nil
}

// Close closes the connection and with it every subscription.
func (ns *NATSSubscriber) Close() error {
	ns.conn.Close()
	return nil
}
