package events

import (
	"context"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

// NoopPublisher discards notifications. The server uses it when
// PLANTLOG_NATS_URL is unset; SSE and gRPC observers still receive every
// notification.
type NoopPublisher struct{}

func (*NoopPublisher) PublishDirty(context.Context, model.DirtyNotification) error { return nil }

func (*NoopPublisher) Close() error { return nil }
