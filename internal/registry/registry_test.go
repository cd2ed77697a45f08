package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/model"
	"github.com/alfredjeanlab/plantlog/internal/store/memstore"
)

func newTestRegistry(t *testing.T) (*Registry, *memstore.Store) {
	t.Helper()
	s := memstore.New()
	return New(s, nil), s
}

func TestCreateAndGetOne(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)

	et, err := r.Create(ctx, model.NewEventType{Name: "light", Kind: model.CustomEnumKind("shade", "partial", "sun"), IsUnique: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if et.ID == uuid.Nil {
		t.Fatal("Create did not assign an id")
	}

	got, err := r.GetOne(ctx, et.ID)
	if err != nil {
		t.Fatalf("GetOne: %v", err)
	}
	if got.Name != "light" || !got.IsUnique || len(got.Kind.Options) != 3 {
		t.Errorf("GetOne = %+v", got)
	}
}

func TestGetOne_Unknown(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.GetOne(context.Background(), uuid.New())
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreate_Invalid(t *testing.T) {
	r, s := newTestRegistry(t)
	for _, n := range []model.NewEventType{
		{Name: "", Kind: model.NumberKind()},
		{Name: "light", Kind: model.CustomEnumKind()},
		{Name: "light", Kind: model.CustomEnumKind("sun", "sun")},
		{Name: "odd", Kind: model.EventDataKind{Type: "colour"}},
	} {
		_, err := r.Create(context.Background(), n)
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Create(%+v) = %v, want ValidationError", n, err)
		}
	}
	if all, _ := s.ListEventTypes(context.Background(), time.Time{}); len(all) != 0 {
		t.Errorf("invalid creates stored %d types", len(all))
	}
}

func TestCreate_StorageFailure(t *testing.T) {
	r, s := newTestRegistry(t)
	s.Err = errors.New("connection reset")
	_, err := r.Create(context.Background(), model.NewEventType{Name: "watered", Kind: model.DateTimeKind()})
	if !errors.Is(err, model.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestGetAll_Since(t *testing.T) {
	ctx := context.Background()
	r, s := newTestRegistry(t)
	clock := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return clock })

	first, err := r.Create(ctx, model.NewEventType{Name: "watered", Kind: model.DateTimeKind()})
	if err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(time.Minute)
	second, err := r.Create(ctx, model.NewEventType{Name: "height", Kind: model.NumberKind()})
	if err != nil {
		t.Fatal(err)
	}

	all, err := r.GetAll(ctx, time.Time{})
	if err != nil || len(all) != 2 {
		t.Fatalf("GetAll(zero) = %d types, err %v", len(all), err)
	}
	delta, err := r.GetAll(ctx, first.CreatedAt)
	if err != nil {
		t.Fatal(err)
	}
	if len(delta) != 1 || delta[0].ID != second.ID {
		t.Errorf("GetAll(since) = %v, want only %s", delta, second.ID)
	}
}

func TestEnsureBuiltins_Idempotent(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)
	for i := 0; i < 2; i++ {
		if err := r.EnsureBuiltins(ctx); err != nil {
			t.Fatalf("EnsureBuiltins #%d: %v", i, err)
		}
	}
	et, err := r.GetOne(ctx, model.PhotoEventTypeID)
	if err != nil {
		t.Fatalf("photo type missing: %v", err)
	}
	if et.Kind.Type != model.KindString || et.IsUnique {
		t.Errorf("photo type = %+v", et)
	}
}

func TestSeed_SkipsExistingNames(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)
	if _, err := r.Create(ctx, model.NewEventType{Name: "watered", Kind: model.DateTimeKind()}); err != nil {
		t.Fatal(err)
	}

	created, err := r.Seed(ctx, []model.NewEventType{
		{Name: "watered", Kind: model.DateTimeKind()},
		{Name: "repotted", Kind: model.DateTimeKind()},
		{Name: "display-name", Kind: model.StringKind(), IsUnique: true},
	})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created %d types, want 2", len(created))
	}

	again, err := r.Seed(ctx, []model.NewEventType{{Name: "repotted", Kind: model.DateTimeKind()}})
	if err != nil || len(again) != 0 {
		t.Errorf("second Seed created %d, err %v", len(again), err)
	}
}

func TestSeed_InvalidWritesNothing(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)
	_, err := r.Seed(ctx, []model.NewEventType{
		{Name: "repotted", Kind: model.DateTimeKind()},
		{Name: "", Kind: model.NumberKind()},
	})
	if err == nil {
		t.Fatal("expected error for invalid seed")
	}
	if all, _ := r.GetAll(ctx, time.Time{}); len(all) != 0 {
		t.Errorf("invalid seed stored %d types", len(all))
	}
}
