// Package sync keeps a client's caches in step with the server: a ticker
// refreshes event types and a notification loop feeds dirty notifications
// into the DirtyManager.
package sync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/cache"
	"github.com/alfredjeanlab/plantlog/internal/client"
	"github.com/alfredjeanlab/plantlog/internal/model"
)

// DefaultRefreshInterval is how often event types are refreshed when no
// interval is configured.
const DefaultRefreshInterval = 60 * time.Second

// TypeClient is the subset of client.Client the scheduler needs.
type TypeClient interface {
	cache.TypeFetcher
	EventType(ctx context.Context, id uuid.UUID) (*model.EventType, error)
}

// Options configures a Scheduler.
type Options struct {
	Types  *cache.EventTypes
	Events *cache.EventCache
	Dirty  *cache.DirtyManager
	Client TypeClient
	// Source may be nil, leaving only the refresh ticker.
	Source   client.DirtySource
	Interval time.Duration
	Logger   *slog.Logger
	// OnInvalidate runs on the scheduler goroutine after a notification or
	// resync has been applied to the caches.
	OnInvalidate func(client.DirtyMessage)
}

// Scheduler runs the refresh ticker and the notification loop.
type Scheduler struct {
	opts   Options
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler returns a scheduler over opts. Nil caches are created.
func NewScheduler(opts Options) *Scheduler {
	if opts.Types == nil {
		opts.Types = cache.NewEventTypes()
	}
	if opts.Events == nil {
		opts.Events = cache.NewEventCache()
	}
	if opts.Dirty == nil {
		opts.Dirty = cache.NewDirtyManager()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultRefreshInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{opts: opts, logger: logger}
}

// Types returns the event type cache the scheduler maintains.
func (s *Scheduler) Types() *cache.EventTypes { return s.opts.Types }

// Start begins the loops. It refreshes event types immediately, then on
// each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the loop to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.refreshTypes(ctx)

	var notes <-chan client.DirtyMessage
	if s.opts.Source != nil {
		notes = s.opts.Source.Dirty(ctx)
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshTypes(ctx)
		case m, ok := <-notes:
			if !ok {
				notes = nil
				continue
			}
			s.Apply(ctx, m)
		}
	}
}

// Apply folds one notification into the caches. It is exported so callers
// driving their own loop can reuse the routing.
func (s *Scheduler) Apply(ctx context.Context, m client.DirtyMessage) {
	if m.Resync {
		s.logger.Info("notification stream resynchronized; dropping cached state")
		s.opts.Events.Clear()
		s.opts.Dirty.Reset()
		s.opts.Types.Clear()
		s.refreshTypes(ctx)
		s.invalidate(m)
		return
	}

	n := m.Notification
	s.opts.Dirty.Mark(n)
	switch n.Kind {
	case model.DirtyEntity:
		// Every series of the entity may have changed; the next read is a
		// cold fetch.
		s.opts.Events.ClearEntity(n.EntityID)
		s.opts.Dirty.CleanEntity(n.EntityID)
	case model.DirtyEventType:
		s.resolveType(ctx, n.EventTypeID)
	}
	s.invalidate(m)
}

func (s *Scheduler) resolveType(ctx context.Context, id uuid.UUID) {
	if s.opts.Client == nil {
		return
	}
	if _, err := s.opts.Types.Refresh(ctx, s.opts.Client); err != nil {
		s.logger.Warn("event type refresh failed", "error", err)
		return
	}
	if _, ok := s.opts.Types.Get(id); !ok {
		et, err := s.opts.Client.EventType(ctx, id)
		if err != nil {
			s.logger.Warn("fetch event type failed", "id", id, "error", err)
			return
		}
		s.opts.Types.Merge([]*model.EventType{et})
	}
	s.opts.Dirty.CleanEventType(id)
}

func (s *Scheduler) refreshTypes(ctx context.Context) {
	if s.opts.Client == nil {
		return
	}
	n, err := s.opts.Types.Refresh(ctx, s.opts.Client)
	if err != nil {
		s.logger.Warn("event type refresh failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Debug("event types refreshed", "added", n)
	}
}

func (s *Scheduler) invalidate(m client.DirtyMessage) {
	if s.opts.OnInvalidate != nil {
		s.opts.OnInvalidate(m)
	}
}
