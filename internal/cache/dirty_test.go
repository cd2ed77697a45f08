package cache

import (
	"testing"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

func TestDirtyManager_MarkRoutesByVariant(t *testing.T) {
	d := NewDirtyManager()
	plant, et := uuid.New(), uuid.New()

	d.Mark(model.EntityDirty(plant))
	d.Mark(model.EventTypeDirty(et))
	if !d.IsEntityDirty(plant) || !d.IsEventTypeDirty(et) {
		t.Fatal("entity/event type marks not recorded")
	}
	if d.IsDirty(plant, et) {
		t.Fatal("entity mark leaked into the event ledger")
	}

	d.Mark(model.EventDirty(plant, et, day0.AddDate(0, 0, 5)))
	d.Mark(model.EventDirty(plant, et, day0.AddDate(0, 0, 2)))
	if !d.IsDirty(plant, et) {
		t.Fatal("event mark not recorded")
	}
	if got, ok := d.EarliestDirty(plant); !ok || !got.Equal(day0.AddDate(0, 0, 2)) {
		t.Errorf("EarliestDirty = %v, %v", got, ok)
	}

	d.CleanEntity(plant)
	d.CleanEventType(et)
	if d.IsEntityDirty(plant) || d.IsEventTypeDirty(et) {
		t.Error("clean did not clear entity/event type marks")
	}
	if len(d.DirtyEventTypes()) != 0 {
		t.Error("DirtyEventTypes not empty")
	}
}

func TestDirtyManager_CleanDropsEmptyEntity(t *testing.T) {
	d := NewDirtyManager()
	plant, a, b := uuid.New(), uuid.New(), uuid.New()
	d.Mark(model.EventDirty(plant, a, day0))
	d.Mark(model.EventDirty(plant, b, day0))

	d.Clean(plant, a)
	if d.IsDirty(plant, a) || !d.IsDirty(plant, b) {
		t.Fatal("Clean touched the wrong type")
	}
	if _, ok := d.EarliestDirty(plant); !ok {
		t.Fatal("entity entry dropped while a type is still dirty")
	}
	d.Clean(plant, b)
	if _, ok := d.EarliestDirty(plant); ok {
		t.Error("entity entry kept after its last type was cleaned")
	}
}

func TestDirtyManager_CleanIfKeepsNewerMark(t *testing.T) {
	d := NewDirtyManager()
	plant, et := uuid.New(), uuid.New()
	d.Mark(model.EventDirty(plant, et, day0))

	gen := d.Generation(plant, et)
	d.Mark(model.EventDirty(plant, et, day0.AddDate(0, 0, 1))) // arrives while fetching
	if d.CleanIf(plant, et, gen) {
		t.Fatal("CleanIf cleared a mark newer than the fetch")
	}
	if !d.IsDirty(plant, et) {
		t.Fatal("newer mark lost")
	}
	if !d.CleanIf(plant, et, d.Generation(plant, et)) || d.IsDirty(plant, et) {
		t.Error("CleanIf with the current generation did not clean")
	}
}

func TestDirtyManager_Reset(t *testing.T) {
	d := NewDirtyManager()
	plant, et := uuid.New(), uuid.New()
	d.Mark(model.EventDirty(plant, et, day0))
	gen := d.Generation(plant, et)
	d.Reset()
	if d.IsDirty(plant, et) {
		t.Fatal("mark survived Reset")
	}
	if d.Generation(plant, et) == gen {
		t.Error("Reset did not advance the generation")
	}
}
