package client

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/plantlog/internal/events"
)

// NATSSource reads dirty notifications from the NATS bus instead of the
// server stream. Core NATS does not replay, so a reconnect or a dropped
// payload is reported as a resync.
type NATSSource struct {
	sub         events.Subscriber
	reconnected chan struct{}
}

// NewNATSSource connects to the bus at url.
func NewNATSSource(url string) (*NATSSource, error) {
	s := &NATSSource{reconnected: make(chan struct{}, 1)}
	sub, err := events.NewNATSSubscriber(url,
		nats.ReconnectHandler(func(*nats.Conn) {
			select {
			case s.reconnected <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	s.sub = sub
	return s, nil
}

// Dirty subscribes to every dirty subject until ctx ends.
func (s *NATSSource) Dirty(ctx context.Context) <-chan DirtyMessage {
	out := make(chan DirtyMessage, 64)
	go func() {
		defer close(out)
		sub, err := s.sub.SubscribeDirty(events.TopicDirtyAll)
		if err != nil {
			slog.Error("nats dirty subscription failed", "error", err)
			return
		}
		defer sub.Unsubscribe()

		var dropped uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.reconnected:
				if !emit(ctx, out, DirtyMessage{Resync: true}) {
					return
				}
			case n, ok := <-sub.C():
				if !ok {
					return
				}
				if d := sub.Dropped(); d != dropped {
					dropped = d
					if !emit(ctx, out, DirtyMessage{Resync: true}) {
						return
					}
				}
				if !emit(ctx, out, DirtyMessage{Notification: n}) {
					return
				}
			}
		}
	}()
	return out
}

func (s *NATSSource) Close() error {
	return s.sub.Close()
}
