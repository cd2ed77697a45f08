package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

// ErrEvicted ends a stream whose observer fell too far behind.
var ErrEvicted = errors.New("observer evicted")

// FrameType labels a frame on a dirty stream.
type FrameType string

const (
	// FrameReady opens a fresh stream and carries the resume position.
	FrameReady FrameType = "ready"
	// FrameDirty carries one notification.
	FrameDirty FrameType = "dirty"
	// FrameResync tells the receiver that notifications were lost and every
	// cached entry must be treated as stale.
	FrameResync FrameType = "resync"
)

// Frame is one unit sent to a stream observer. ID is the resume position
// ("<epoch>.<seq>") to present when reconnecting.
type Frame struct {
	ID           string                   `json:"id"`
	Type         FrameType                `json:"type"`
	Notification *model.DirtyNotification `json:"notification,omitempty"`
}

// FormatID builds a resume position.
func FormatID(epoch string, seq uint64) string {
	return epoch + "." + strconv.FormatUint(seq, 10)
}

// ParseID splits a resume position.
func ParseID(id string) (epoch string, seq uint64, err error) {
	i := strings.LastIndexByte(id, '.')
	if i <= 0 {
		return "", 0, fmt.Errorf("malformed stream position %q", id)
	}
	seq, err = strconv.ParseUint(id[i+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed stream position %q: %w", id, err)
	}
	return id[:i], seq, nil
}

// StreamOptions tunes Stream. OnIdle, when set, runs every Keepalive while
// no frame is sent.
type StreamOptions struct {
	Keepalive time.Duration
	OnIdle    func() error
}

// Stream subscribes to the hub and calls send for every frame until ctx ends
// (nil), the observer is evicted (ErrEvicted), or send fails. With an empty
// lastID the stream opens with a ready frame; otherwise it replays what the
// observer missed, or sends a resync frame when that is no longer possible.
func (h *Hub) Stream(ctx context.Context, lastID string, opts StreamOptions, send func(Frame) error) error {
	obs := h.Subscribe()
	defer h.Unsubscribe(obs)

	var sent uint64
	if lastID == "" {
		sent = h.Seq()
		if err := send(Frame{ID: FormatID(h.epoch, sent), Type: FrameReady}); err != nil {
			return err
		}
	} else {
		epoch, seq, err := ParseID(lastID)
		var missed []Message
		ok := err == nil && epoch == h.epoch
		if ok {
			missed, ok = h.Since(seq)
		}
		if !ok {
			sent = h.Seq()
			if err := send(Frame{ID: FormatID(h.epoch, sent), Type: FrameResync}); err != nil {
				return err
			}
		} else {
			sent = seq
			for _, m := range missed {
				if err := send(h.frame(m)); err != nil {
					return err
				}
				sent = m.Seq
			}
		}
	}

	var idle <-chan time.Time
	if opts.Keepalive > 0 && opts.OnIdle != nil {
		t := time.NewTicker(opts.Keepalive)
		defer t.Stop()
		idle = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-obs.Done():
			if obs.Evicted() {
				return ErrEvicted
			}
			return nil
		case m := <-obs.C():
			// Replay and live delivery overlap right after subscribing.
			if m.Seq <= sent {
				continue
			}
			if m.Seq != sent+1 {
				var err error
				if sent, err = h.fillGap(sent, send); err != nil {
					return err
				}
				if m.Seq <= sent {
					continue
				}
			}
			if err := send(h.frame(m)); err != nil {
				return err
			}
			sent = m.Seq
		case <-idle:
			if err := opts.OnIdle(); err != nil {
				return err
			}
		}
	}
}

// fillGap sends the messages after sent that never reached the observer's
// queue, or a resync frame when the ring no longer holds them. It returns
// the new stream position.
func (h *Hub) fillGap(sent uint64, send func(Frame) error) (uint64, error) {
	missed, ok := h.Since(sent)
	if !ok {
		seq := h.Seq()
		return seq, send(Frame{ID: FormatID(h.epoch, seq), Type: FrameResync})
	}
	for _, m := range missed {
		if err := send(h.frame(m)); err != nil {
			return sent, err
		}
		sent = m.Seq
	}
	return sent, nil
}

func (h *Hub) frame(m Message) Frame {
	n := m.Notification
	return Frame{ID: FormatID(h.epoch, m.Seq), Type: FrameDirty, Notification: &n}
}
