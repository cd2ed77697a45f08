// Package events bridges dirty notifications onto the NATS bus so clients
// that do not hold an SSE stream can still invalidate their caches.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

// Dirty notification subjects, one per variant.
const (
	TopicDirtyEntity    = "plantlog.dirty.entity"
	TopicDirtyEvent     = "plantlog.dirty.event"
	TopicDirtyEventType = "plantlog.dirty.event_type"

	// TopicDirtyAll matches every dirty subject.
	TopicDirtyAll = "plantlog.dirty.>"
)

// HeaderKind carries the notification variant so consumers can filter
// without decoding the body.
const HeaderKind = "Plantlog-Kind"

// Publisher puts committed dirty notifications on the bus.
type Publisher interface {
	PublishDirty(ctx context.Context, n model.DirtyNotification) error
	Close() error
}

// Subscriber hands out subscriptions to dirty subjects.
type Subscriber interface {
	SubscribeDirty(subject string) (*Subscription, error)
	Close() error
}

// TopicFor returns the subject a notification is published on.
func TopicFor(n model.DirtyNotification) string {
	switch n.Kind {
	case model.DirtyEntity:
		return TopicDirtyEntity
	case model.DirtyEvent:
		return TopicDirtyEvent
	case model.DirtyEventType:
		return TopicDirtyEventType
	}
	return "plantlog.dirty." + string(n.Kind)
}

// EncodeDirty returns the bus payload for n.
func EncodeDirty(n model.DirtyNotification) ([]byte, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encoding dirty notification: %w", err)
	}
	return data, nil
}

// DecodeDirty parses a payload received on a dirty subject.
func DecodeDirty(data []byte) (model.DirtyNotification, error) {
	var n model.DirtyNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return n, fmt.Errorf("decoding dirty notification: %w", err)
	}
	return n, nil
}
