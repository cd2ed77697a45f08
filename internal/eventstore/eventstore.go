// Package eventstore reads and writes event instances, routing each event
// type to its storage discipline after checking the data against the type's
// declared kind.
package eventstore

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/metrics"
	"github.com/alfredjeanlab/plantlog/internal/model"
	"github.com/alfredjeanlab/plantlog/internal/store"
)

// EventStore is the server-side event service.
type EventStore struct {
	store  store.Store
	logger *slog.Logger
	newID  func() uuid.UUID
}

// New returns an EventStore over s.
func New(s store.Store, logger *slog.Logger) *EventStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventStore{store: s, logger: logger, newID: uuid.New}
}

// GetEvents returns one entity's instances of one event type selected by
// q.Mode. An unknown event type fails the query.
func (s *EventStore) GetEvents(ctx context.Context, q model.EventQuery) ([]*model.EventInstance, error) {
	if err := model.ValidateQuery(&q); err != nil {
		return nil, err
	}
	et, err := s.store.GetEventType(ctx, q.EventTypeID)
	if err != nil {
		return nil, model.WrapStorage("resolve event type", err)
	}
	events, err := s.store.QueryEvents(ctx, store.DisciplineOf(et), q.EventTypeID, q.EntityID, q.Mode)
	if err != nil {
		return nil, model.WrapStorage("query events", err)
	}
	return events, nil
}

// PutEvent validates n against its event type and stores it. Unique types
// replace the entity's single instance and keep its id; other types append
// a new instance. The returned instance is the stored row.
func (s *EventStore) PutEvent(ctx context.Context, n model.NewEvent) (*model.EventInstance, error) {
	et, err := s.store.GetEventType(ctx, n.EventTypeID)
	if err != nil {
		metrics.EventsRejected.WithLabelValues("unknown_type").Inc()
		return nil, model.WrapStorage("resolve event type", err)
	}
	if err := model.ValidateData(n.Data, et.Kind); err != nil {
		metrics.EventsRejected.WithLabelValues("kind_mismatch").Inc()
		return nil, err
	}
	return s.write(ctx, s.store, et, n)
}

func (s *EventStore) write(ctx context.Context, st store.Store, et *model.EventType, n model.NewEvent) (*model.EventInstance, error) {
	ev := n.Instance(s.newID())
	d := store.DisciplineOf(et)
	if d == store.Unique {
		if err := st.UpsertUniqueEvent(ctx, ev); err != nil {
			return nil, model.WrapStorage("upsert unique event", err)
		}
	} else {
		if err := st.InsertEvent(ctx, ev); err != nil {
			return nil, model.WrapStorage("insert event", err)
		}
	}
	metrics.EventsWritten.WithLabelValues(d.String()).Inc()
	s.logger.Debug("event written", "id", ev.ID, "event_type", et.Name, "entity", ev.EntityID, "discipline", d)
	return ev, nil
}

// AddPhoto records an uploaded photo and its photo event in one transaction.
// p.Location must already point at the stored blob.
func (s *EventStore) AddPhoto(ctx context.Context, p *model.Photo) (*model.EventInstance, error) {
	et, err := s.store.GetEventType(ctx, model.PhotoEventTypeID)
	if err != nil {
		return nil, model.WrapStorage("resolve photo event type", err)
	}
	n := model.NewEvent{
		EventTypeID: model.PhotoEventTypeID,
		EntityID:    p.EntityID,
		Data:        model.String{Value: p.Location},
		EventDate:   p.TakenAt,
	}
	if err := model.ValidateData(n.Data, et.Kind); err != nil {
		return nil, err
	}

	var ev *model.EventInstance
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.RecordPhoto(ctx, p); err != nil {
			return model.WrapStorage("record photo", err)
		}
		var werr error
		ev, werr = s.write(ctx, tx, et, n)
		return werr
	})
	if err != nil {
		return nil, model.WrapStorage("add photo", err)
	}
	return ev, nil
}
