package server

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/model"
	"github.com/alfredjeanlab/plantlog/internal/notify"
	"github.com/alfredjeanlab/plantlog/internal/store/memstore"
)

func TestServer_NotifyOutlivesRequest(t *testing.T) {
	hub := notify.New(notify.Options{QueueSize: 1})
	s := New(memstore.New(), Options{Hub: hub})
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	et, err := s.CreateEventType(context.Background(), model.NewEventType{Name: "height", Kind: model.NumberKind()})
	if err != nil {
		t.Fatal(err)
	}

	obs := hub.Subscribe()
	defer hub.Unsubscribe(obs)
	hub.Publish(context.Background(), model.EntityDirty(uuid.New()))

	received := make(chan model.DirtyNotification, 2)
	go func() {
		time.Sleep(20 * time.Millisecond)
		for i := 0; i < 2; i++ {
			select {
			case m := <-obs.C():
				received <- m.Notification
			case <-obs.Done():
				return
			}
		}
	}()

	// The request is gone before the write, but the write still commits and
	// its notification must still reach the slow reader.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	plant := uuid.New()
	if _, err := s.PutEvent(ctx, model.NewEvent{EventTypeID: et.ID, EntityID: plant, Data: model.Number{Value: 3}, EventDate: day0}); err != nil {
		t.Fatalf("PutEvent: %v", err)
	}

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("queued notification never drained")
	}
	select {
	case n := <-received:
		if want := model.EventDirty(plant, et.ID, day0); n != want {
			t.Errorf("notification = %v, want %v", n, want)
		}
	case <-time.After(time.Second):
		t.Fatal("notification lost when the request context ended")
	}
	if obs.Evicted() {
		t.Error("draining observer was evicted")
	}
}
