package cache

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

var day0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func instance(entity, eventType uuid.UUID, day int) *model.EventInstance {
	return &model.EventInstance{
		ID:          uuid.New(),
		EventTypeID: eventType,
		EntityID:    entity,
		Data:        model.Number{Value: float64(day)},
		EventDate:   day0.AddDate(0, 0, day),
	}
}

func TestEventCache_UnknownVersusKnownEmpty(t *testing.T) {
	c := NewEventCache()
	plant, et := uuid.New(), uuid.New()

	if _, ok := c.Get(plant, et, model.All()); ok {
		t.Fatal("unknown series reported as known")
	}
	c.MergeEmpty(plant, et)
	got, ok := c.Get(plant, et, model.All())
	if !ok || len(got) != 0 {
		t.Fatalf("known empty series = %v, %v", got, ok)
	}
	if !c.HasEntity(plant) {
		t.Error("HasEntity false after MergeEmpty")
	}
	if _, ok := c.Get(plant, uuid.New(), model.All()); ok {
		t.Error("other series of the entity reported as known")
	}
}

func TestEventCache_SameDateDoesNotCollide(t *testing.T) {
	c := NewEventCache()
	plant, et := uuid.New(), uuid.New()
	a, b := instance(plant, et, 3), instance(plant, et, 3)
	c.Merge([]*model.EventInstance{a, b})

	got, _ := c.Get(plant, et, model.All())
	if len(got) != 2 {
		t.Fatalf("got %d instances at the same date, want 2", len(got))
	}
	if got[0].ID == got[1].ID {
		t.Error("duplicate instance returned")
	}
}

func TestEventCache_MergeOverwritesByID(t *testing.T) {
	c := NewEventCache()
	plant, et := uuid.New(), uuid.New()
	name := &model.EventInstance{ID: uuid.New(), EventTypeID: et, EntityID: plant, Data: model.String{Value: "Fern"}, EventDate: day0}
	c.Merge([]*model.EventInstance{name})

	moved := *name
	moved.Data = model.String{Value: "Ficus"}
	moved.EventDate = day0.AddDate(0, 0, 2)
	c.Merge([]*model.EventInstance{&moved})

	got, _ := c.Get(plant, et, model.All())
	if len(got) != 1 {
		t.Fatalf("got %d instances after upsert, want 1", len(got))
	}
	if got[0].Data != (model.String{Value: "Ficus"}) || !got[0].EventDate.Equal(moved.EventDate) {
		t.Errorf("cached = %+v", got[0])
	}

	// Merge copies its input.
	moved.Data = model.String{Value: "mutated"}
	if got, _ := c.Get(plant, et, model.All()); got[0].Data != (model.String{Value: "Ficus"}) {
		t.Error("cache aliases merged instance")
	}
}

func TestEventCache_EarliestCached(t *testing.T) {
	c := NewEventCache()
	plant := uuid.New()
	if _, ok := c.EarliestCached(plant); ok {
		t.Fatal("earliest set on empty cache")
	}
	c.Merge([]*model.EventInstance{instance(plant, uuid.New(), 5), instance(plant, uuid.New(), 2), instance(plant, uuid.New(), 9)})
	got, ok := c.EarliestCached(plant)
	if !ok || !got.Equal(day0.AddDate(0, 0, 2)) {
		t.Errorf("earliest = %v, %v", got, ok)
	}
}

func TestEventCache_CanSatisfy(t *testing.T) {
	c := NewEventCache()
	plant, et, emptyType := uuid.New(), uuid.New(), uuid.New()
	q := model.EventQuery{EventTypeID: et, EntityID: plant, Mode: model.Span(day0.AddDate(0, 0, 2), day0.AddDate(0, 0, 6))}
	c.MergeAt(c.Epoch(), q, []*model.EventInstance{instance(plant, et, 2), instance(plant, et, 4), instance(plant, et, 6)}, false)
	c.MergeEmpty(plant, emptyType)

	for _, tc := range []struct {
		name string
		et   uuid.UUID
		mode model.QueryMode
		want bool
	}{
		{"SpanFetched", et, model.Span(day0.AddDate(0, 0, 2), day0.AddDate(0, 0, 6)), true},
		{"SpanInside", et, model.Span(day0.AddDate(0, 0, 3), day0.AddDate(0, 0, 4)), true},
		{"SpanBeforeCoverage", et, model.Span(day0, day0.AddDate(0, 0, 4)), false},
		{"SpanAfterCoverage", et, model.Span(day0.AddDate(0, 0, 3), day0.AddDate(0, 0, 9)), false},
		{"SpanOnMergeEmpty", emptyType, model.Span(day0, day0), false},
		{"LastNthWithin", et, model.LastNth(3), true},
		{"LastNthBeyond", et, model.LastNth(4), false},
		{"LastNthZero", emptyType, model.LastNth(0), true},
		{"All", et, model.All(), false},
		{"UnknownType", uuid.New(), model.LastNth(0), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.CanSatisfy(plant, tc.et, tc.mode); got != tc.want {
				t.Errorf("CanSatisfy(%s) = %v, want %v", tc.mode, got, tc.want)
			}
		})
	}
}

func TestEventCache_SpanCoverage(t *testing.T) {
	plant, et := uuid.New(), uuid.New()
	query := func(mode model.QueryMode) model.EventQuery {
		return model.EventQuery{EventTypeID: et, EntityID: plant, Mode: mode}
	}
	day := func(n int) time.Time { return day0.AddDate(0, 0, n) }

	for _, tc := range []struct {
		name    string
		fetches []model.QueryMode
		results [][]*model.EventInstance
		span    model.QueryMode
		want    bool
	}{
		{"AllCoversEverything", []model.QueryMode{model.All()}, [][]*model.EventInstance{{instance(plant, et, 5)}}, model.Span(day(-30), day(30)), true},
		{"ShortLastNthIsComplete", []model.QueryMode{model.LastNth(5)}, [][]*model.EventInstance{{instance(plant, et, 5)}}, model.Span(day(-30), day(30)), true},
		{"FullLastNthCoversAfterOldest", []model.QueryMode{model.LastNth(1)}, [][]*model.EventInstance{{instance(plant, et, 5)}}, model.Span(day(6), day(30)), true},
		{"FullLastNthExcludesOldestDate", []model.QueryMode{model.LastNth(1)}, [][]*model.EventInstance{{instance(plant, et, 5)}}, model.Span(day(5), day(30)), false},
		{"OverlappingSpansJoin", []model.QueryMode{model.Span(day(0), day(5)), model.Span(day(3), day(9))}, [][]*model.EventInstance{nil, nil}, model.Span(day(1), day(8)), true},
		{"DisjointSpansKeepNewest", []model.QueryMode{model.Span(day(0), day(2)), model.Span(day(5), day(9))}, [][]*model.EventInstance{nil, nil}, model.Span(day(0), day(1)), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := NewEventCache()
			for i, mode := range tc.fetches {
				c.MergeAt(c.Epoch(), query(mode), tc.results[i], false)
			}
			if got := c.CanSatisfy(plant, et, tc.span); got != tc.want {
				t.Errorf("CanSatisfy(%s) = %v, want %v", tc.span, got, tc.want)
			}
		})
	}
}

func TestEventCache_CoverageIsPerSeries(t *testing.T) {
	c := NewEventCache()
	plant, full, partial := uuid.New(), uuid.New(), uuid.New()
	c.MergeAt(c.Epoch(), model.EventQuery{EventTypeID: full, EntityID: plant, Mode: model.All()},
		[]*model.EventInstance{instance(plant, full, 0)}, false)
	c.MergeAt(c.Epoch(), model.EventQuery{EventTypeID: partial, EntityID: plant, Mode: model.LastNth(1)},
		[]*model.EventInstance{instance(plant, partial, 3)}, false)

	if c.CanSatisfy(plant, partial, model.Span(day0, day0.AddDate(0, 0, 10))) {
		t.Error("another series' history made a partial series answerable")
	}
	if !c.CanSatisfy(plant, full, model.Span(day0, day0.AddDate(0, 0, 10))) {
		t.Error("fully fetched series not answerable")
	}
}

func TestEventCache_ReplaceDropsCoverage(t *testing.T) {
	c := NewEventCache()
	plant, et := uuid.New(), uuid.New()
	q := model.EventQuery{EventTypeID: et, EntityID: plant, Mode: model.All()}
	c.MergeAt(c.Epoch(), q, []*model.EventInstance{instance(plant, et, 1)}, false)

	q.Mode = model.LastNth(1)
	c.MergeAt(c.Epoch(), q, []*model.EventInstance{instance(plant, et, 8)}, true)
	if c.CanSatisfy(plant, et, model.Span(day0, day0.AddDate(0, 0, 9))) {
		t.Error("coverage from before the replace survived")
	}
}

func TestEventCache_ClearInvalidatesInflightMerge(t *testing.T) {
	c := NewEventCache()
	plant, et := uuid.New(), uuid.New()
	epoch := c.Epoch()
	c.Clear()
	q := model.EventQuery{EventTypeID: et, EntityID: plant, Mode: model.All()}
	if c.MergeAt(epoch, q, []*model.EventInstance{instance(plant, et, 1)}, false) {
		t.Fatal("merge accepted after Clear")
	}
	if c.HasEntity(plant) {
		t.Fatal("stale merge populated the cache")
	}
	if !c.MergeAt(c.Epoch(), q, nil, false) {
		t.Fatal("merge at current epoch rejected")
	}
	if _, ok := c.Get(plant, et, model.All()); !ok {
		t.Error("empty MergeAt did not mark the series known")
	}
}

func TestEventCache_ClearEntity(t *testing.T) {
	c := NewEventCache()
	a, b, et := uuid.New(), uuid.New(), uuid.New()
	c.Merge([]*model.EventInstance{instance(a, et, 1), instance(b, et, 1)})
	c.ClearEntity(a)
	if c.HasEntity(a) || !c.HasEntity(b) {
		t.Errorf("HasEntity after ClearEntity: a=%v b=%v", c.HasEntity(a), c.HasEntity(b))
	}
}
