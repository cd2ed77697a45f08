// Package registry is the authoritative catalogue of event types.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/metrics"
	"github.com/alfredjeanlab/plantlog/internal/model"
	"github.com/alfredjeanlab/plantlog/internal/store"
)

// Registry reads and creates event types through a store.Store.
type Registry struct {
	store  store.Store
	logger *slog.Logger
	newID  func() uuid.UUID
}

// New returns a Registry backed by s.
func New(s store.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: s, logger: logger, newID: uuid.New}
}

// GetAll returns every event type when since is zero, otherwise only the
// types created strictly after since.
func (r *Registry) GetAll(ctx context.Context, since time.Time) ([]*model.EventType, error) {
	types, err := r.store.ListEventTypes(ctx, since)
	if err != nil {
		return nil, model.WrapStorage("list event types", err)
	}
	return types, nil
}

// GetOne returns the event type with the given id.
func (r *Registry) GetOne(ctx context.Context, id uuid.UUID) (*model.EventType, error) {
	et, err := r.store.GetEventType(ctx, id)
	if err != nil {
		return nil, model.WrapStorage("get event type", err)
	}
	return et, nil
}

// Create validates and persists a new event type.
func (r *Registry) Create(ctx context.Context, n model.NewEventType) (*model.EventType, error) {
	if err := model.ValidateNewEventType(&n); err != nil {
		return nil, err
	}
	et := &model.EventType{
		ID:         r.newID(),
		Name:       n.Name,
		Kind:       n.Kind,
		Deletable:  n.Deletable,
		Modifiable: n.Modifiable,
		IsUnique:   n.IsUnique,
	}
	if err := r.store.CreateEventType(ctx, et); err != nil {
		return nil, model.WrapStorage("create event type", err)
	}
	metrics.EventTypesCreated.Inc()
	r.logger.Info("event type created", "id", et.ID, "name", et.Name, "kind", et.Kind.Type, "unique", et.IsUnique)
	return et, nil
}

// EnsureBuiltins inserts the built-in event types when they are missing.
func (r *Registry) EnsureBuiltins(ctx context.Context) error {
	if err := r.store.EnsureEventType(ctx, model.PhotoEventType()); err != nil {
		return model.WrapStorage("ensure builtin event types", err)
	}
	return nil
}

// Seed creates each seed type whose name is not registered yet and returns
// the ones it created. Invalid seeds abort before anything is written.
func (r *Registry) Seed(ctx context.Context, seeds []model.NewEventType) ([]*model.EventType, error) {
	for i := range seeds {
		if err := model.ValidateNewEventType(&seeds[i]); err != nil {
			return nil, fmt.Errorf("seed %q: %w", seeds[i].Name, err)
		}
	}
	existing, err := r.GetAll(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(existing))
	for _, et := range existing {
		names[et.Name] = true
	}

	var created []*model.EventType
	for _, seed := range seeds {
		if names[seed.Name] {
			continue
		}
		et, err := r.Create(ctx, seed)
		if err != nil {
			return created, fmt.Errorf("seed %q: %w", seed.Name, err)
		}
		names[seed.Name] = true
		created = append(created, et)
	}
	return created, nil
}
