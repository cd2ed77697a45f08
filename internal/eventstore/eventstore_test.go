package eventstore

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/model"
	"github.com/alfredjeanlab/plantlog/internal/store"
	"github.com/alfredjeanlab/plantlog/internal/store/memstore"
)

var day0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	es      *EventStore
	mem     *memstore.Store
	plant   uuid.UUID
	watered *model.EventType
	name    *model.EventType
	light   *model.EventType
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := memstore.New()
	f := &fixture{
		es:      New(mem, nil),
		mem:     mem,
		plant:   uuid.New(),
		watered: &model.EventType{ID: uuid.New(), Name: "watered", Kind: model.DateTimeKind()},
		name:    &model.EventType{ID: uuid.New(), Name: "display-name", Kind: model.StringKind(), IsUnique: true},
		light:   &model.EventType{ID: uuid.New(), Name: "light", Kind: model.CustomEnumKind("shade", "sun")},
	}
	for _, et := range []*model.EventType{f.watered, f.name, f.light, model.PhotoEventType()} {
		if err := mem.CreateEventType(ctx, et); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func (f *fixture) put(t *testing.T, et *model.EventType, data model.EventData, at time.Time) *model.EventInstance {
	t.Helper()
	ev, err := f.es.PutEvent(context.Background(), model.NewEvent{EventTypeID: et.ID, EntityID: f.plant, Data: data, EventDate: at})
	if err != nil {
		t.Fatalf("PutEvent: %v", err)
	}
	return ev
}

func (f *fixture) rows(t *testing.T, et *model.EventType) int {
	t.Helper()
	got, err := f.mem.QueryEvents(context.Background(), store.DisciplineOf(et), et.ID, f.plant, model.All())
	if err != nil {
		t.Fatal(err)
	}
	return len(got)
}

func TestPutEvent_KindMismatchWritesNothing(t *testing.T) {
	f := newFixture(t)
	for _, tc := range []struct {
		name string
		et   *model.EventType
		data model.EventData
	}{
		{"NumberForDateTime", f.watered, model.Number{Value: 3}},
		{"StringForEnum", f.light, model.String{Value: "sun"}},
		{"EnumOutOfRange", f.light, model.CustomEnum{Selected: 2}},
		{"NilData", f.name, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.es.PutEvent(context.Background(), model.NewEvent{EventTypeID: tc.et.ID, EntityID: f.plant, Data: tc.data, EventDate: day0})
			if !errors.Is(err, model.ErrKindMismatch) {
				t.Fatalf("expected ErrKindMismatch, got %v", err)
			}
			if n := f.rows(t, tc.et); n != 0 {
				t.Errorf("rejected write stored %d rows", n)
			}
		})
	}
}

func TestPutEvent_UnknownType(t *testing.T) {
	f := newFixture(t)
	_, err := f.es.PutEvent(context.Background(), model.NewEvent{EventTypeID: uuid.New(), EntityID: f.plant, Data: model.Number{Value: 1}, EventDate: day0})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutEvent_UniqueUpsert(t *testing.T) {
	f := newFixture(t)
	first := f.put(t, f.name, model.String{Value: "Fern"}, day0)
	second := f.put(t, f.name, model.String{Value: "Boston Fern"}, day0.Add(24*time.Hour))

	if second.ID != first.ID {
		t.Errorf("unique upsert changed id: %s -> %s", first.ID, second.ID)
	}
	got, err := f.es.GetEvents(context.Background(), model.EventQuery{EventTypeID: f.name.ID, EntityID: f.plant, Mode: model.All()})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d instances, want 1", len(got))
	}
	if v := got[0].Data.(model.String).Value; v != "Boston Fern" {
		t.Errorf("data = %q, want Boston Fern", v)
	}
	if !got[0].EventDate.Equal(day0.Add(24 * time.Hour)) {
		t.Errorf("event_date = %v, want the second write's date", got[0].EventDate)
	}
}

func TestPutEvent_AppendGrows(t *testing.T) {
	f := newFixture(t)
	ids := map[uuid.UUID]bool{}
	for i := 0; i < 3; i++ {
		ev := f.put(t, f.watered, model.DateTime{At: day0}, day0.AddDate(0, 0, i))
		ids[ev.ID] = true
	}
	if len(ids) != 3 {
		t.Errorf("append writes reused ids: %v", ids)
	}
	if n := f.rows(t, f.watered); n != 3 {
		t.Errorf("rows = %d, want 3", n)
	}
}

func TestGetEvents_Modes(t *testing.T) {
	f := newFixture(t)
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jan5 := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	jan9 := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)
	for _, d := range []time.Time{jan5, jan1, jan9} {
		f.put(t, f.watered, model.DateTime{At: d}, d)
	}

	for _, tc := range []struct {
		name string
		mode model.QueryMode
		want []time.Time
	}{
		{"SpanInclusive", model.Span(jan1, jan5), []time.Time{jan1, jan5}},
		{"LastNth", model.LastNth(2), []time.Time{jan9, jan5}},
		{"LastNthZero", model.LastNth(0), nil},
		{"LastNthBeyond", model.LastNth(10), []time.Time{jan9, jan5, jan1}},
		{"All", model.All(), []time.Time{jan1, jan5, jan9}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.es.GetEvents(context.Background(), model.EventQuery{EventTypeID: f.watered.ID, EntityID: f.plant, Mode: tc.mode})
			if err != nil {
				t.Fatalf("GetEvents: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d instances, want %d", len(got), len(tc.want))
			}
			for i, want := range tc.want {
				if !got[i].EventDate.Equal(want) {
					t.Errorf("[%d] event_date = %v, want %v", i, got[i].EventDate, want)
				}
			}
		})
	}
}

func TestGetEvents_UnknownTypeAborts(t *testing.T) {
	f := newFixture(t)
	_, err := f.es.GetEvents(context.Background(), model.EventQuery{EventTypeID: uuid.New(), EntityID: f.plant, Mode: model.All()})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetEvents_InvalidMode(t *testing.T) {
	f := newFixture(t)
	_, err := f.es.GetEvents(context.Background(), model.EventQuery{EventTypeID: f.watered.ID, EntityID: f.plant, Mode: model.LastNth(-1)})
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestPutEvent_StorageFailure(t *testing.T) {
	f := newFixture(t)
	f.put(t, f.watered, model.DateTime{At: day0}, day0)
	f.mem.Err = errors.New("boom")
	_, err := f.es.PutEvent(context.Background(), model.NewEvent{EventTypeID: f.watered.ID, EntityID: f.plant, Data: model.DateTime{At: day0}, EventDate: day0})
	if !errors.Is(err, model.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestAddPhoto(t *testing.T) {
	f := newFixture(t)
	p := &model.Photo{ID: uuid.New(), EntityID: f.plant, Location: "photos/abc.jpg", ContentType: "image/jpeg", Size: 12, TakenAt: day0}
	ev, err := f.es.AddPhoto(context.Background(), p)
	if err != nil {
		t.Fatalf("AddPhoto: %v", err)
	}
	if s, ok := ev.Data.(model.String); !ok || s.Value != "photos/abc.jpg" {
		t.Errorf("photo event data = %#v", ev.Data)
	}
	if n := len(f.mem.Photos(f.plant)); n != 1 {
		t.Errorf("photos = %d, want 1", n)
	}
	if n := f.rows(t, model.PhotoEventType()); n != 1 {
		t.Errorf("photo events = %d, want 1", n)
	}
}

func TestPutEvent_NonFiniteNumberWritesNothing(t *testing.T) {
	f := newFixture(t)
	height := &model.EventType{ID: uuid.New(), Name: "height", Kind: model.NumberKind()}
	if err := f.mem.CreateEventType(context.Background(), height); err != nil {
		t.Fatal(err)
	}
	_, err := f.es.PutEvent(context.Background(), model.NewEvent{EventTypeID: height.ID, EntityID: f.plant, Data: model.Number{Value: math.Inf(1)}, EventDate: day0})
	if !errors.Is(err, model.ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}
	if n := f.rows(t, height); n != 0 {
		t.Errorf("rejected write stored %d rows", n)
	}
}
