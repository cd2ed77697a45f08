// Package memstore implements store.Store in process memory. It backs tests
// and `plantlog serve --memory`; nothing survives a restart.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/model"
	"github.com/alfredjeanlab/plantlog/internal/store"
)

type seriesKey struct {
	eventType uuid.UUID
	entity    uuid.UUID
}

// Store is an in-memory store.Store.
type Store struct {
	mu      sync.RWMutex
	types   map[uuid.UUID]*model.EventType
	appends map[seriesKey][]*model.EventInstance
	uniques map[seriesKey]*model.EventInstance
	photos  map[uuid.UUID]*model.Photo
	now     func() time.Time

	// Err, when non-nil, is returned by every write (for failure tests).
	Err error
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		types:   make(map[uuid.UUID]*model.EventType),
		appends: make(map[seriesKey][]*model.EventInstance),
		uniques: make(map[seriesKey]*model.EventInstance),
		photos:  make(map[uuid.UUID]*model.Photo),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the clock used for created_at stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) CreateEventType(_ context.Context, et *model.EventType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.types[et.ID]; ok {
		return fmt.Errorf("event type %s already exists", et.ID)
	}
	et.CreatedAt = s.now()
	clone := *et
	s.types[et.ID] = &clone
	return nil
}

func (s *Store) EnsureEventType(_ context.Context, et *model.EventType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.types[et.ID]; ok {
		return nil
	}
	clone := *et
	clone.CreatedAt = s.now()
	s.types[et.ID] = &clone
	return nil
}

func (s *Store) GetEventType(_ context.Context, id uuid.UUID) (*model.EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	et, ok := s.types[id]
	if !ok {
		return nil, model.EventTypeNotFound(id)
	}
	clone := *et
	return &clone, nil
}

func (s *Store) ListEventTypes(_ context.Context, since time.Time) ([]*model.EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []*model.EventType{}
	for _, et := range s.types {
		if since.IsZero() || et.CreatedAt.After(since) {
			clone := *et
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (s *Store) InsertEvent(_ context.Context, ev *model.EventInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	key := seriesKey{ev.EventTypeID, ev.EntityID}
	clone := *ev
	s.appends[key] = append(s.appends[key], &clone)
	return nil
}

func (s *Store) UpsertUniqueEvent(_ context.Context, ev *model.EventInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	key := seriesKey{ev.EventTypeID, ev.EntityID}
	if existing, ok := s.uniques[key]; ok {
		ev.ID = existing.ID
	}
	clone := *ev
	s.uniques[key] = &clone
	return nil
}

func (s *Store) QueryEvents(_ context.Context, d store.Discipline, eventTypeID, entityID uuid.UUID, mode model.QueryMode) ([]*model.EventInstance, error) {
	s.mu.RLock()
	key := seriesKey{eventTypeID, entityID}
	var series []*model.EventInstance
	if d == store.Unique {
		if ev, ok := s.uniques[key]; ok {
			series = []*model.EventInstance{ev}
		}
	} else {
		series = append(series, s.appends[key]...)
	}
	s.mu.RUnlock()

	return sortedSelect(series, mode)
}

func sortedSelect(series []*model.EventInstance, mode model.QueryMode) ([]*model.EventInstance, error) {
	sorted := make([]*model.EventInstance, len(series))
	copy(sorted, series)
	model.SortInstances(sorted)
	return model.ApplyMode(sorted, mode)
}

func (s *Store) RecordPhoto(_ context.Context, p *model.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	clone := *p
	s.photos[p.ID] = &clone
	return nil
}

// Photos returns the recorded photos for an entity.
func (s *Store) Photos(entity uuid.UUID) []*model.Photo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Photo
	for _, p := range s.photos {
		if p.EntityID == entity {
			clone := *p
			out = append(out, &clone)
		}
	}
	return out
}

// RunInTransaction runs fn against the store and restores the prior contents
// when fn fails. Concurrent writers are not isolated from each other.
func (s *Store) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	types   map[uuid.UUID]*model.EventType
	appends map[seriesKey][]*model.EventInstance
	uniques map[seriesKey]*model.EventInstance
	photos  map[uuid.UUID]*model.Photo
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{
		types:   make(map[uuid.UUID]*model.EventType, len(s.types)),
		appends: make(map[seriesKey][]*model.EventInstance, len(s.appends)),
		uniques: make(map[seriesKey]*model.EventInstance, len(s.uniques)),
		photos:  make(map[uuid.UUID]*model.Photo, len(s.photos)),
	}
	for k, v := range s.types {
		snap.types[k] = v
	}
	for k, v := range s.appends {
		snap.appends[k] = append([]*model.EventInstance(nil), v...)
	}
	for k, v := range s.uniques {
		snap.uniques[k] = v
	}
	for k, v := range s.photos {
		snap.photos[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	s.types, s.appends, s.uniques, s.photos = snap.types, snap.appends, snap.uniques, snap.photos
	s.mu.Unlock()
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
