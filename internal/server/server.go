// Package server exposes the event registry, the event store and the dirty
// notification stream over HTTP (JSON + SSE) and gRPC (JSON codec). Both
// transports call the same Server methods.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/events"
	"github.com/alfredjeanlab/plantlog/internal/eventstore"
	"github.com/alfredjeanlab/plantlog/internal/model"
	"github.com/alfredjeanlab/plantlog/internal/notify"
	"github.com/alfredjeanlab/plantlog/internal/photos"
	"github.com/alfredjeanlab/plantlog/internal/registry"
	"github.com/alfredjeanlab/plantlog/internal/store"
)

const (
	// maxPhotoBytes caps a single photo upload.
	maxPhotoBytes = 20 << 20
	// notifyTimeout bounds fan-out after a committed write, independent of
	// the request that made it.
	notifyTimeout = 30 * time.Second
)

// Options holds the optional collaborators of a Server.
type Options struct {
	Hub       *notify.Hub      // default: notify.New with default options
	Publisher events.Publisher // default: events.NoopPublisher
	Photos    photos.Store     // nil disables photo uploads
	Logger    *slog.Logger
}

// Server owns the notification hub and routes every write through
// validation, storage and notification.
type Server struct {
	store     store.Store
	registry  *registry.Registry
	events    *eventstore.EventStore
	hub       *notify.Hub
	publisher events.Publisher
	photos    photos.Store
	logger    *slog.Logger
	now       func() time.Time
}

// New returns a Server backed by s.
func New(s store.Store, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hub := opts.Hub
	if hub == nil {
		hub = notify.New(notify.Options{Logger: logger})
	}
	pub := opts.Publisher
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	return &Server{
		store:     s,
		registry:  registry.New(s, logger),
		events:    eventstore.New(s, logger),
		hub:       hub,
		publisher: pub,
		photos:    opts.Photos,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Hub returns the server's notification hub.
func (s *Server) Hub() *notify.Hub { return s.hub }

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// Init ensures the built-in event types exist.
func (s *Server) Init(ctx context.Context) error {
	return s.registry.EnsureBuiltins(ctx)
}

// Health reports whether the store is reachable.
func (s *Server) Health(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return model.WrapStorage("ping", err)
	}
	return nil
}

// EventTypes returns every event type, or only those created after since.
func (s *Server) EventTypes(ctx context.Context, since time.Time) ([]*model.EventType, error) {
	return s.registry.GetAll(ctx, since)
}

// EventType returns one event type.
func (s *Server) EventType(ctx context.Context, id uuid.UUID) (*model.EventType, error) {
	return s.registry.GetOne(ctx, id)
}

// CreateEventType registers a new event type and announces it.
func (s *Server) CreateEventType(ctx context.Context, n model.NewEventType) (*model.EventType, error) {
	et, err := s.registry.Create(ctx, n)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, model.EventTypeDirty(et.ID))
	return et, nil
}

// ApplySeed creates the seed types that do not exist yet and announces each.
func (s *Server) ApplySeed(ctx context.Context, seeds []model.NewEventType) ([]*model.EventType, error) {
	created, err := s.registry.Seed(ctx, seeds)
	for _, et := range created {
		s.notify(ctx, model.EventTypeDirty(et.ID))
	}
	if err != nil {
		return created, err
	}
	if len(created) > 0 {
		s.logger.Info("seed applied", "created", len(created))
	}
	return created, nil
}

// PutEvent stores an event and marks the entity's series dirty.
func (s *Server) PutEvent(ctx context.Context, n model.NewEvent) (*model.EventInstance, error) {
	if n.EntityID == uuid.Nil {
		return nil, inputError("entity_id is required")
	}
	ev, err := s.events.PutEvent(ctx, n)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, model.EventDirty(ev.EntityID, ev.EventTypeID, ev.EventDate))
	return ev, nil
}

// GetEvents runs an event query.
func (s *Server) GetEvents(ctx context.Context, q model.EventQuery) ([]*model.EventInstance, error) {
	return s.events.GetEvents(ctx, q)
}

// AddPhoto stores a photo blob, records it with its photo event and marks
// the entity dirty. A zero takenAt means now.
func (s *Server) AddPhoto(ctx context.Context, entity uuid.UUID, contentType string, takenAt time.Time, data []byte) (*model.Photo, *model.EventInstance, error) {
	if s.photos == nil {
		return nil, nil, fmt.Errorf("photo storage is not configured")
	}
	if entity == uuid.Nil {
		return nil, nil, inputError("entity id is required")
	}
	if !photos.IsImage(contentType) {
		return nil, nil, inputError(fmt.Sprintf("content type %q is not an image", contentType))
	}
	if len(data) == 0 {
		return nil, nil, inputError("photo body is empty")
	}
	if len(data) > maxPhotoBytes {
		return nil, nil, inputError(fmt.Sprintf("photo exceeds %d bytes", maxPhotoBytes))
	}
	if takenAt.IsZero() {
		takenAt = s.now()
	}

	key, err := photos.Key(entity, contentType)
	if err != nil {
		return nil, nil, err
	}
	location, err := s.photos.Put(ctx, key, contentType, data)
	if err != nil {
		return nil, nil, fmt.Errorf("store photo blob: %w", err)
	}
	p := &model.Photo{
		ID:          uuid.New(),
		EntityID:    entity,
		Location:    location,
		ContentType: contentType,
		Size:        int64(len(data)),
		TakenAt:     takenAt.UTC(),
	}
	ev, err := s.events.AddPhoto(ctx, p)
	if err != nil {
		s.logger.Warn("photo blob stored but not recorded", "location", location, "error", err)
		return nil, nil, err
	}
	s.notify(ctx, model.EventDirty(entity, model.PhotoEventTypeID, ev.EventDate))
	s.notify(ctx, model.EntityDirty(entity))
	return p, ev, nil
}

// notify publishes n to the hub and the bus. The write it describes has
// already committed, so the request's cancellation does not apply and
// failures are logged rather than returned.
func (s *Server) notify(ctx context.Context, n model.DirtyNotification) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if _, err := s.hub.Publish(ctx, n); err != nil {
		s.logger.Warn("notification delivery interrupted", "notification", n.String(), "error", err)
	}
	if err := s.publisher.PublishDirty(ctx, n); err != nil {
		s.logger.Warn("failed to publish notification", "topic", events.TopicFor(n), "error", err)
	}
}
