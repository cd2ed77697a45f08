package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

// Discipline selects the table an event type's instances live in.
type Discipline int

const (
	// Append keeps every write as a new row.
	Append Discipline = iota
	// Unique keeps one row per (event type, entity) and overwrites it.
	Unique
)

func (d Discipline) String() string {
	if d == Unique {
		return "unique"
	}
	return "append"
}

// DisciplineOf returns the storage discipline for an event type.
func DisciplineOf(et *model.EventType) Discipline {
	if et.IsUnique {
		return Unique
	}
	return Append
}

// Store defines the persistence interface for event types, event instances
// and photos. Lookups of missing ids return an error matching model.ErrNotFound.
type Store interface {
	// Event types
	CreateEventType(ctx context.Context, et *model.EventType) error
	EnsureEventType(ctx context.Context, et *model.EventType) error // no-op when the id exists
	GetEventType(ctx context.Context, id uuid.UUID) (*model.EventType, error)
	ListEventTypes(ctx context.Context, since time.Time) ([]*model.EventType, error)

	// Events
	InsertEvent(ctx context.Context, ev *model.EventInstance) error
	UpsertUniqueEvent(ctx context.Context, ev *model.EventInstance) error // rewrites ev with the stored row
	QueryEvents(ctx context.Context, d Discipline, eventTypeID, entityID uuid.UUID, mode model.QueryMode) ([]*model.EventInstance, error)

	// Photos
	RecordPhoto(ctx context.Context, p *model.Photo) error

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
