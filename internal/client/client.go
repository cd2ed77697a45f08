// Package client talks to the plantlog server. HTTPClient and GRPCClient
// implement the same Client interface; notification sources (SSE, gRPC
// stream, NATS) deliver dirty notifications to the client-side cache.
package client

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

// Client is the interface that CLI commands and the client cache use to
// reach the server. It is implemented by HTTPClient (default) and GRPCClient.
type Client interface {
	Health(ctx context.Context) (string, error)

	// Event types
	EventTypes(ctx context.Context, since time.Time) ([]*model.EventType, error)
	EventType(ctx context.Context, id uuid.UUID) (*model.EventType, error)
	CreateEventType(ctx context.Context, n model.NewEventType) (*model.EventType, error)

	// Events
	PutEvent(ctx context.Context, n model.NewEvent) (*model.EventInstance, error)
	GetEvents(ctx context.Context, q model.EventQuery) ([]*model.EventInstance, error)
	AddPhoto(ctx context.Context, entity uuid.UUID, contentType string, takenAt time.Time, data []byte) (*model.Photo, *model.EventInstance, error)

	DirtySource

	// Lifecycle
	Close() error
}

// DirtyMessage is one item from a notification source. When Resync is set
// the source lost notifications and every cached entry must be treated as
// stale; Notification is then empty.
type DirtyMessage struct {
	Notification model.DirtyNotification
	Resync       bool
}

// DirtySource delivers dirty notifications until ctx ends, reconnecting as
// needed. The channel is closed when ctx ends.
type DirtySource interface {
	Dirty(ctx context.Context) <-chan DirtyMessage
}
