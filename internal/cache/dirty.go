package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

// DirtyManager records dirty notifications until the data they describe has
// been refetched.
type DirtyManager struct {
	mu         sync.Mutex
	entities   map[uuid.UUID]struct{}
	events     map[uuid.UUID]*dirtyEvents
	eventTypes map[uuid.UUID]struct{}

	// gen holds the mark counter value of each (entity, type) pair's latest mark.
	gen  map[seriesKey]uint64
	mark uint64
}

type dirtyEvents struct {
	types    map[uuid.UUID]struct{}
	earliest time.Time
}

type seriesKey struct {
	entity, eventType uuid.UUID
}

// NewDirtyManager returns an empty ledger.
func NewDirtyManager() *DirtyManager {
	return &DirtyManager{
		entities:   make(map[uuid.UUID]struct{}),
		events:     make(map[uuid.UUID]*dirtyEvents),
		eventTypes: make(map[uuid.UUID]struct{}),
		gen:        make(map[seriesKey]uint64),
	}
}

// Mark records n.
func (d *DirtyManager) Mark(n model.DirtyNotification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch n.Kind {
	case model.DirtyEntity:
		d.entities[n.EntityID] = struct{}{}
	case model.DirtyEvent:
		de, ok := d.events[n.EntityID]
		if !ok {
			de = &dirtyEvents{types: make(map[uuid.UUID]struct{}), earliest: n.EventDate}
			d.events[n.EntityID] = de
		}
		de.types[n.EventTypeID] = struct{}{}
		if n.EventDate.Before(de.earliest) {
			de.earliest = n.EventDate
		}
		d.mark++
		d.gen[seriesKey{n.EntityID, n.EventTypeID}] = d.mark
	case model.DirtyEventType:
		d.eventTypes[n.EventTypeID] = struct{}{}
	}
}

// IsDirty reports whether the entity's series of eventType is stale.
func (d *DirtyManager) IsDirty(entity, eventType uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	de, ok := d.events[entity]
	if !ok {
		return false
	}
	_, ok = de.types[eventType]
	return ok
}

// Generation identifies the latest mark of (entity, eventType). Read it
// before a fetch and pass it to CleanIf afterwards.
func (d *DirtyManager) Generation(entity, eventType uuid.UUID) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen[seriesKey{entity, eventType}]
}

// Clean clears (entity, eventType), dropping the entity's entry once no type
// is left.
func (d *DirtyManager) Clean(entity, eventType uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleanLocked(entity, eventType)
}

// CleanIf clears (entity, eventType) only if no mark arrived after gen was
// read. It reports whether the pair is now clean.
func (d *DirtyManager) CleanIf(entity, eventType uuid.UUID, gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen[seriesKey{entity, eventType}] != gen {
		return false
	}
	d.cleanLocked(entity, eventType)
	return true
}

func (d *DirtyManager) cleanLocked(entity, eventType uuid.UUID) {
	de, ok := d.events[entity]
	if !ok {
		return
	}
	delete(de.types, eventType)
	if len(de.types) == 0 {
		delete(d.events, entity)
	}
}

// EarliestDirty returns the earliest event date among the entity's dirty
// series.
func (d *DirtyManager) EarliestDirty(entity uuid.UUID) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	de, ok := d.events[entity]
	if !ok {
		return time.Time{}, false
	}
	return de.earliest, true
}

func (d *DirtyManager) IsEntityDirty(entity uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entities[entity]
	return ok
}

func (d *DirtyManager) CleanEntity(entity uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entities, entity)
}

func (d *DirtyManager) IsEventTypeDirty(eventType uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.eventTypes[eventType]
	return ok
}

func (d *DirtyManager) CleanEventType(eventType uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.eventTypes, eventType)
}

// DirtyEventTypes returns the event types marked dirty.
func (d *DirtyManager) DirtyEventTypes() []uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]uuid.UUID, 0, len(d.eventTypes))
	for id := range d.eventTypes {
		out = append(out, id)
	}
	return out
}

// Reset forgets every mark. Generations keep increasing so fetches that
// started before the reset cannot clean marks made after it.
func (d *DirtyManager) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entities = make(map[uuid.UUID]struct{})
	d.events = make(map[uuid.UUID]*dirtyEvents)
	d.eventTypes = make(map[uuid.UUID]struct{})
	d.mark++
	for k := range d.gen {
		d.gen[k] = d.mark
	}
}
