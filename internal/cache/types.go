package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

// TypeFetcher lists event types created after since (all when zero).
type TypeFetcher interface {
	EventTypes(ctx context.Context, since time.Time) ([]*model.EventType, error)
}

// EventTypes caches the full event type set. Refresh asks only for types
// created after the newest one already held.
type EventTypes struct {
	mu     sync.RWMutex
	types  map[uuid.UUID]*model.EventType
	cursor time.Time
}

// NewEventTypes returns an empty type cache.
func NewEventTypes() *EventTypes {
	return &EventTypes{types: make(map[uuid.UUID]*model.EventType)}
}

// Refresh fetches new event types and merges them. It returns how many
// were added.
func (t *EventTypes) Refresh(ctx context.Context, f TypeFetcher) (int, error) {
	t.mu.RLock()
	since := t.cursor
	t.mu.RUnlock()

	types, err := f.EventTypes(ctx, since)
	if err != nil {
		return 0, err
	}
	return t.Merge(types), nil
}

// Merge adds or replaces types and advances the refresh cursor.
func (t *EventTypes) Merge(types []*model.EventType) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	added := 0
	for _, et := range types {
		if et == nil {
			continue
		}
		if _, ok := t.types[et.ID]; !ok {
			added++
		}
		t.types[et.ID] = et
		if et.CreatedAt.After(t.cursor) {
			t.cursor = et.CreatedAt
		}
	}
	return added
}

// Get returns one cached type.
func (t *EventTypes) Get(id uuid.UUID) (*model.EventType, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	et, ok := t.types[id]
	return et, ok
}

// Lookup finds a type by name.
func (t *EventTypes) Lookup(name string) (*model.EventType, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, et := range t.types {
		if et.Name == name {
			return et, true
		}
	}
	return nil, false
}

// All returns every cached type sorted by name.
func (t *EventTypes) All() []*model.EventType {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*model.EventType, 0, len(t.types))
	for _, et := range t.types {
		out = append(out, et)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Clear forgets every type so the next Refresh fetches the full set.
func (t *EventTypes) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.types = make(map[uuid.UUID]*model.EventType)
	t.cursor = time.Time{}
}
