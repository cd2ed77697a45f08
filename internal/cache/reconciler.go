package cache

import (
	"context"
	"log/slog"

	"github.com/alfredjeanlab/plantlog/internal/metrics"
	"github.com/alfredjeanlab/plantlog/internal/model"
)

// Fetcher runs an event query against the server.
type Fetcher interface {
	GetEvents(ctx context.Context, q model.EventQuery) ([]*model.EventInstance, error)
}

// Outcome says how the Reconciler answered a read.
type Outcome int

const (
	// OutcomeColdFetch: nothing was cached for the entity.
	OutcomeColdFetch Outcome = iota
	// OutcomeDirtyFetch: the series was marked dirty.
	OutcomeDirtyFetch
	// OutcomeHit: served from the cache.
	OutcomeHit
	// OutcomeMissFetch: the cache could not prove it held the answer.
	OutcomeMissFetch
	// OutcomeRejected: the query was invalid; neither cache nor server was asked.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeColdFetch:
		return "cold_fetch"
	case OutcomeDirtyFetch:
		return "dirty_fetch"
	case OutcomeHit:
		return "hit"
	case OutcomeMissFetch:
		return "miss_fetch"
	case OutcomeRejected:
		return "rejected"
	}
	return "unknown"
}

// Reconciler answers event reads from the cache when it safely can and
// from the server otherwise. Dirty state is consulted before the cache.
type Reconciler struct {
	fetcher Fetcher
	cache   *EventCache
	dirty   *DirtyManager
	logger  *slog.Logger
}

// NewReconciler wires a fetcher to a cache and its dirty ledger.
func NewReconciler(f Fetcher, c *EventCache, d *DirtyManager, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{fetcher: f, cache: c, dirty: d, logger: logger}
}

// Get answers q. On a fetch failure the error is returned unchanged and
// neither the cache nor the dirty ledger is modified.
func (r *Reconciler) Get(ctx context.Context, q model.EventQuery) ([]*model.EventInstance, Outcome, error) {
	if err := model.ValidateQuery(&q); err != nil {
		return nil, OutcomeRejected, err
	}

	var outcome Outcome
	switch {
	case !r.cache.HasEntity(q.EntityID):
		outcome = OutcomeColdFetch
	case r.dirty.IsDirty(q.EntityID, q.EventTypeID):
		outcome = OutcomeDirtyFetch
	case r.cache.CanSatisfy(q.EntityID, q.EventTypeID, q.Mode):
		if evs, ok := r.cache.Get(q.EntityID, q.EventTypeID, q.Mode); ok {
			metrics.ReconcileOutcomes.WithLabelValues(OutcomeHit.String()).Inc()
			return evs, OutcomeHit, nil
		}
		outcome = OutcomeMissFetch
	default:
		outcome = OutcomeMissFetch
	}

	evs, err := r.fetch(ctx, q, outcome == OutcomeDirtyFetch)
	if err != nil {
		return nil, outcome, err
	}
	metrics.ReconcileOutcomes.WithLabelValues(outcome.String()).Inc()
	return evs, outcome, nil
}

// fetch runs q and merges the result. After a dirty mark the series may lack
// the new instance anywhere in its old coverage, so replace drops it.
func (r *Reconciler) fetch(ctx context.Context, q model.EventQuery, replace bool) ([]*model.EventInstance, error) {
	gen := r.dirty.Generation(q.EntityID, q.EventTypeID)
	epoch := r.cache.Epoch()

	evs, err := r.fetcher.GetEvents(ctx, q)
	if err != nil {
		return nil, err
	}
	if !r.cache.MergeAt(epoch, q, evs, replace) {
		r.logger.Debug("cache cleared during fetch; result not cached", "entity", q.EntityID, "event_type", q.EventTypeID)
		return evs, nil
	}
	if !r.dirty.CleanIf(q.EntityID, q.EventTypeID, gen) {
		r.logger.Debug("series marked dirty during fetch", "entity", q.EntityID, "event_type", q.EventTypeID)
	}
	return evs, nil
}
