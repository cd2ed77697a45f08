// Package notify fans dirty notifications out to connected observers.
//
// Every observer owns a bounded queue. Publish blocks until each observer has
// room rather than dropping; an observer that stays full for longer than
// SlowObserverTimeout is evicted and must reconnect and replay from the ring.
package notify

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/alfredjeanlab/plantlog/internal/idgen"
	"github.com/alfredjeanlab/plantlog/internal/metrics"
	"github.com/alfredjeanlab/plantlog/internal/model"
)

const (
	DefaultQueueSize           = 250
	DefaultReplaySize          = 1000
	DefaultSlowObserverTimeout = 5 * time.Second
)

// Message is a published notification with its sequence number.
type Message struct {
	Seq          uint64
	Notification model.DirtyNotification
}

// Options configures a Hub. Zero fields take the defaults.
type Options struct {
	QueueSize           int
	ReplaySize          int
	SlowObserverTimeout time.Duration
	Logger              *slog.Logger
}

// Hub is the server-owned notification fan-out.
type Hub struct {
	opts   Options
	logger *slog.Logger
	epoch  string

	// pubMu serializes publishers so every observer sees sequence order.
	pubMu sync.Mutex

	mu        sync.RWMutex
	observers map[*Observer]struct{}
	closed    bool

	ringMu  sync.RWMutex
	ring    []Message
	ringPos int
	ringLen int
	seq     uint64
}

// Observer is one subscriber's queue.
type Observer struct {
	ID string

	ch      chan Message
	done    chan struct{}
	once    sync.Once
	evicted bool
}

// C returns the observer's delivery channel. It is never closed; select on
// Done as well.
func (o *Observer) C() <-chan Message { return o.ch }

// Done is closed when the observer is unsubscribed or evicted.
func (o *Observer) Done() <-chan struct{} { return o.done }

// Evicted reports whether the hub dropped the observer for falling behind.
// Only meaningful after Done is closed.
func (o *Observer) Evicted() bool {
	select {
	case <-o.done:
		return o.evicted
	default:
		return false
	}
}

// New returns an empty hub.
func New(opts Options) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.ReplaySize <= 0 {
		opts.ReplaySize = DefaultReplaySize
	}
	if opts.SlowObserverTimeout <= 0 {
		opts.SlowObserverTimeout = DefaultSlowObserverTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	epoch, err := idgen.GenerateWithPrefix("")
	if err != nil {
		epoch = strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return &Hub{
		opts:      opts,
		logger:    logger,
		epoch:     epoch,
		observers: make(map[*Observer]struct{}),
		ring:      make([]Message, opts.ReplaySize),
	}
}

// Subscribe registers a new observer. Call Unsubscribe when done.
func (h *Hub) Subscribe() *Observer {
	id, err := idgen.Observer()
	if err != nil {
		h.logger.Warn("failed to generate observer id", "error", err)
	}
	o := &Observer{
		ID:   id,
		ch:   make(chan Message, h.opts.QueueSize),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		o.once.Do(func() { close(o.done) })
		return o
	}
	h.observers[o] = struct{}{}
	h.mu.Unlock()
	metrics.ObserversConnected.Inc()
	return o
}

// Unsubscribe removes an observer. It is safe to call more than once and
// after eviction.
func (h *Hub) Unsubscribe(o *Observer) {
	h.remove(o, false)
}

func (h *Hub) remove(o *Observer, evicted bool) {
	h.mu.Lock()
	_, ok := h.observers[o]
	delete(h.observers, o)
	h.mu.Unlock()
	if !ok {
		return
	}
	metrics.ObserversConnected.Dec()
	o.once.Do(func() {
		o.evicted = evicted
		close(o.done)
	})
}

// Observers returns the number of subscribed observers.
func (h *Hub) Observers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Publish assigns the next sequence number to n, records it for replay and
// delivers it to every observer. If ctx ends while waiting on a full queue,
// that observer is evicted, the remaining observers get the message only if
// they have room (the others are evicted too), and ctx's error is returned.
// An evicted observer recovers the message from the replay ring when it
// reconnects.
func (h *Hub) Publish(ctx context.Context, n model.DirtyNotification) (Message, error) {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	h.ringMu.Lock()
	h.seq++
	msg := Message{Seq: h.seq, Notification: n}
	h.ring[h.ringPos] = msg
	h.ringPos = (h.ringPos + 1) % len(h.ring)
	if h.ringLen < len(h.ring) {
		h.ringLen++
	}
	h.ringMu.Unlock()
	metrics.NotificationsPublished.WithLabelValues(string(n.Kind)).Inc()

	h.mu.RLock()
	targets := make([]*Observer, 0, len(h.observers))
	for o := range h.observers {
		targets = append(targets, o)
	}
	h.mu.RUnlock()

	start := time.Now()
	defer func() {
		metrics.PublishWait.Observe(float64(time.Since(start).Microseconds()) / 1000)
	}()
	var interrupted error
	for _, o := range targets {
		if interrupted != nil {
			if !h.offer(o, msg) {
				h.evict(o, msg, "publish interrupted")
			}
			continue
		}
		if err := h.deliver(ctx, o, msg); err != nil {
			interrupted = err
			h.evict(o, msg, "publish interrupted")
		}
	}
	return msg, interrupted
}

// offer delivers msg without waiting. It reports false only when the
// observer is still subscribed and its queue is full.
func (h *Hub) offer(o *Observer, msg Message) bool {
	select {
	case o.ch <- msg:
		return true
	case <-o.done:
		return true
	default:
		return false
	}
}

func (h *Hub) deliver(ctx context.Context, o *Observer, msg Message) error {
	if h.offer(o, msg) {
		return nil
	}

	timer := time.NewTimer(h.opts.SlowObserverTimeout)
	defer timer.Stop()
	select {
	case o.ch <- msg:
	case <-o.done:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		h.evict(o, msg, "slow observer")
	}
	return nil
}

func (h *Hub) evict(o *Observer, msg Message, reason string) {
	h.logger.Warn("evicting observer", "observer", o.ID, "reason", reason, "seq", msg.Seq, "queue", cap(o.ch))
	metrics.ObserversEvicted.Inc()
	h.remove(o, true)
}

// Epoch identifies this hub instance. Sequence numbers are only comparable
// within one epoch; a new process starts a new epoch.
func (h *Hub) Epoch() string { return h.epoch }

// Seq returns the last assigned sequence number.
func (h *Hub) Seq() uint64 {
	h.ringMu.RLock()
	defer h.ringMu.RUnlock()
	return h.seq
}

// Since returns the messages published after seq, oldest first. ok is false
// when the ring no longer covers seq or seq is ahead of the hub (the server
// restarted); the caller must then resynchronize from scratch.
func (h *Hub) Since(seq uint64) (msgs []Message, ok bool) {
	h.ringMu.RLock()
	defer h.ringMu.RUnlock()

	if seq > h.seq {
		return nil, false
	}
	if seq == h.seq {
		return nil, true
	}
	oldest := h.seq - uint64(h.ringLen) + 1
	if seq+1 < oldest {
		return nil, false
	}

	start := h.ringPos - h.ringLen
	if start < 0 {
		start += len(h.ring)
	}
	for i := 0; i < h.ringLen; i++ {
		m := h.ring[(start+i)%len(h.ring)]
		if m.Seq > seq {
			msgs = append(msgs, m)
		}
	}
	return msgs, true
}

// Close ends every observer's stream and refuses new subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	observers := make([]*Observer, 0, len(h.observers))
	for o := range h.observers {
		observers = append(observers, o)
	}
	h.mu.Unlock()
	for _, o := range observers {
		h.remove(o, false)
	}
}
