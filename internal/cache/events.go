// Package cache holds the client-side view of server state: cached event
// series, the ledger of dirty notifications not yet reconciled, the event
// type set, and the Reconciler that decides between the cache and a fetch.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

// EventCache caches event series per entity and event type. Within a series
// instances are keyed and ordered by (event_date, id), so two instances at
// the same date never collide.
type EventCache struct {
	mu       sync.RWMutex
	entities map[uuid.UUID]*entityEvents
	epoch    uint64
}

type entityEvents struct {
	earliest    time.Time
	hasEarliest bool
	series      map[uuid.UUID]*series
}

type series struct {
	items []*model.EventInstance // sorted by model.LessInstance
	byID  map[uuid.UUID]*model.EventInstance
	cover coverage
}

// coverage is the date range a series is known to hold completely, learned
// from the modes of the fetches merged into it.
type coverage struct {
	valid   bool
	from    time.Time
	to      time.Time
	openEnd bool
}

// coverageOf returns what a successful fetch of mode proves about a series.
func coverageOf(mode model.QueryMode, fetched []*model.EventInstance) coverage {
	switch mode.Kind {
	case model.ModeAll:
		return coverage{valid: true, openEnd: true}
	case model.ModeSpan:
		return coverage{valid: true, from: mode.From, to: mode.To}
	case model.ModeLastNth:
		if mode.N <= 0 {
			return coverage{}
		}
		if len(fetched) < mode.N {
			return coverage{valid: true, openEnd: true}
		}
		oldest := fetched[0].EventDate
		for _, ev := range fetched[1:] {
			if ev.EventDate.Before(oldest) {
				oldest = ev.EventDate
			}
		}
		// Instances sharing the oldest date may have been cut off.
		return coverage{valid: true, from: oldest.Add(time.Nanosecond), openEnd: true}
	}
	return coverage{}
}

func (c coverage) contains(from, to time.Time) bool {
	return c.valid && !from.Before(c.from) && (c.openEnd || !to.After(c.to))
}

// union widens c by o when the two ranges overlap; disjoint ranges keep the
// newer one.
func (c coverage) union(o coverage) coverage {
	switch {
	case !o.valid:
		return c
	case !c.valid:
		return o
	case !c.openEnd && o.from.After(c.to), !o.openEnd && c.from.After(o.to):
		return o
	}
	u := c
	if o.from.Before(u.from) {
		u.from = o.from
	}
	u.openEnd = c.openEnd || o.openEnd
	if !u.openEnd && o.to.After(u.to) {
		u.to = o.to
	}
	return u
}

// NewEventCache returns an empty cache.
func NewEventCache() *EventCache {
	return &EventCache{entities: make(map[uuid.UUID]*entityEvents)}
}

// Get reads one series with the server's query semantics. ok is false when
// the series is unknown; a known empty series returns an empty slice.
func (c *EventCache) Get(entity, eventType uuid.UUID, mode model.QueryMode) ([]*model.EventInstance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.seriesLocked(entity, eventType)
	if s == nil {
		return nil, false
	}
	out, err := model.ApplyMode(s.items, mode)
	if err != nil {
		return nil, false
	}
	return out, true
}

// Merge inserts or overwrites instances. An instance whose id is already
// cached at another date replaces that entry.
func (c *EventCache) Merge(instances []*model.EventInstance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mergeLocked(instances)
}

// MergeEmpty records that a fetch for the series returned nothing.
func (c *EventCache) MergeEmpty(entity, eventType uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureSeries(entity, eventType)
}

// Epoch changes whenever entries are cleared. Pair it with MergeAt so a
// fetch that raced a clear does not repopulate stale data.
func (c *EventCache) Epoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// MergeAt merges the result of fetching q unless the cache was cleared
// since epoch. An empty result marks the series known empty. The range
// q.Mode fetched is recorded as complete; with replace, coverage learned
// from earlier fetches is dropped first.
func (c *EventCache) MergeAt(epoch uint64, q model.EventQuery, instances []*model.EventInstance, replace bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}
	s := c.ensureSeries(q.EntityID, q.EventTypeID)
	c.mergeLocked(instances)
	if replace {
		s.cover = coverage{}
	}
	s.cover = s.cover.union(coverageOf(q.Mode, instances))
	return true
}

// CanSatisfy reports whether mode can be answered from the cache alone. A
// span is answerable only inside the range earlier fetches of the same
// series proved complete; LastNth needs n cached instances.
func (c *EventCache) CanSatisfy(entity, eventType uuid.UUID, mode model.QueryMode) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.seriesLocked(entity, eventType)
	if s == nil {
		return false
	}
	switch mode.Kind {
	case model.ModeSpan:
		return s.cover.contains(mode.From, mode.To)
	case model.ModeLastNth:
		return mode.N >= 0 && len(s.items) >= mode.N
	}
	return false
}

// EarliestCached returns the earliest event date cached for the entity
// across all of its series.
func (c *EventCache) EarliestCached(entity uuid.UUID) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entities[entity]
	if !ok || !e.hasEarliest {
		return time.Time{}, false
	}
	return e.earliest, true
}

// Len returns the number of cached instances in one series.
func (c *EventCache) Len(entity, eventType uuid.UUID) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s := c.seriesLocked(entity, eventType); s != nil {
		return len(s.items)
	}
	return 0
}

// HasEntity reports whether anything is cached for the entity.
func (c *EventCache) HasEntity(entity uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entities[entity]
	return ok
}

// Clear drops every entry.
func (c *EventCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entities = make(map[uuid.UUID]*entityEvents)
	c.epoch++
}

// ClearEntity drops every series of one entity.
func (c *EventCache) ClearEntity(entity uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entities[entity]; ok {
		delete(c.entities, entity)
		c.epoch++
	}
}

func (c *EventCache) seriesLocked(entity, eventType uuid.UUID) *series {
	e, ok := c.entities[entity]
	if !ok {
		return nil
	}
	return e.series[eventType]
}

func (c *EventCache) ensureSeries(entity, eventType uuid.UUID) *series {
	e, ok := c.entities[entity]
	if !ok {
		e = &entityEvents{series: make(map[uuid.UUID]*series)}
		c.entities[entity] = e
	}
	s, ok := e.series[eventType]
	if !ok {
		s = &series{byID: make(map[uuid.UUID]*model.EventInstance)}
		e.series[eventType] = s
	}
	return s
}

func (c *EventCache) mergeLocked(instances []*model.EventInstance) {
	for _, in := range instances {
		if in == nil {
			continue
		}
		ev := *in
		s := c.ensureSeries(ev.EntityID, ev.EventTypeID)
		if old, ok := s.byID[ev.ID]; ok {
			s.remove(old)
		}
		s.insert(&ev)

		e := c.entities[ev.EntityID]
		if !e.hasEarliest || ev.EventDate.Before(e.earliest) {
			e.earliest, e.hasEarliest = ev.EventDate, true
		}
	}
}

func (s *series) search(ev *model.EventInstance) int {
	return sort.Search(len(s.items), func(i int) bool { return !model.LessInstance(s.items[i], ev) })
}

func (s *series) insert(ev *model.EventInstance) {
	i := s.search(ev)
	s.items = append(s.items, nil)
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = ev
	s.byID[ev.ID] = ev
}

func (s *series) remove(ev *model.EventInstance) {
	i := s.search(ev)
	if i < len(s.items) && s.items[i].ID == ev.ID {
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
	delete(s.byID, ev.ID)
}
