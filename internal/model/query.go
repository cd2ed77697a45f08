package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ModeKind selects how a query picks instances from an event series.
type ModeKind string

const (
	ModeSpan    ModeKind = "span"
	ModeLastNth ModeKind = "last_nth"
	ModeAll     ModeKind = "all"
)

// QueryMode is one of Span(from, to), LastNth(n) or All.
type QueryMode struct {
	Kind ModeKind
	From time.Time
	To   time.Time
	N    int
}

// Span selects instances with from <= event_date <= to, ascending.
func Span(from, to time.Time) QueryMode {
	return QueryMode{Kind: ModeSpan, From: from.UTC(), To: to.UTC()}
}

// LastNth selects the n most recent instances, most recent first.
func LastNth(n int) QueryMode {
	return QueryMode{Kind: ModeLastNth, N: n}
}

// All selects every instance, ascending.
func All() QueryMode {
	return QueryMode{Kind: ModeAll}
}

func (m QueryMode) String() string {
	switch m.Kind {
	case ModeSpan:
		return fmt.Sprintf("span(%s..%s)", m.From.Format(time.RFC3339), m.To.Format(time.RFC3339))
	case ModeLastNth:
		return fmt.Sprintf("last_nth(%d)", m.N)
	case ModeAll:
		return "all"
	}
	return fmt.Sprintf("invalid(%q)", string(m.Kind))
}

type queryModeJSON struct {
	Kind ModeKind   `json:"kind"`
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
	N    *int       `json:"n,omitempty"`
}

func (m QueryMode) MarshalJSON() ([]byte, error) {
	out := queryModeJSON{Kind: m.Kind}
	switch m.Kind {
	case ModeSpan:
		from, to := m.From, m.To
		out.From, out.To = &from, &to
	case ModeLastNth:
		n := m.N
		out.N = &n
	}
	return json.Marshal(out)
}

func (m *QueryMode) UnmarshalJSON(b []byte) error {
	var raw queryModeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case ModeSpan:
		if raw.From == nil || raw.To == nil {
			return fmt.Errorf("span mode requires \"from\" and \"to\"")
		}
		*m = Span(*raw.From, *raw.To)
	case ModeLastNth:
		if raw.N == nil {
			return fmt.Errorf("last_nth mode requires \"n\"")
		}
		*m = LastNth(*raw.N)
	case ModeAll:
		*m = All()
	default:
		return fmt.Errorf("unknown query mode %q", raw.Kind)
	}
	return nil
}

// EventQuery asks for one entity's instances of one event type.
type EventQuery struct {
	EventTypeID uuid.UUID `json:"event_type_id"`
	EntityID    uuid.UUID `json:"entity_id"`
	Mode        QueryMode `json:"mode"`
}

// LessInstance orders instances by (event_date, id).
func LessInstance(a, b *EventInstance) bool {
	if !a.EventDate.Equal(b.EventDate) {
		return a.EventDate.Before(b.EventDate)
	}
	return a.ID.String() < b.ID.String()
}

// SortInstances sorts in place by (event_date, id), ascending.
func SortInstances(s []*EventInstance) {
	sort.Slice(s, func(i, j int) bool { return LessInstance(s[i], s[j]) })
}

// ApplyMode selects from a series already sorted by SortInstances and
// returns copies: Span and All ascending, LastNth most recent first.
func ApplyMode(sorted []*EventInstance, mode QueryMode) ([]*EventInstance, error) {
	result := []*EventInstance{}
	switch mode.Kind {
	case ModeSpan:
		lo := sort.Search(len(sorted), func(i int) bool { return !sorted[i].EventDate.Before(mode.From) })
		for _, ev := range sorted[lo:] {
			if ev.EventDate.After(mode.To) {
				break
			}
			clone := *ev
			result = append(result, &clone)
		}
	case ModeLastNth:
		for i := len(sorted) - 1; i >= 0 && len(result) < mode.N; i-- {
			clone := *sorted[i]
			result = append(result, &clone)
		}
	case ModeAll:
		for _, ev := range sorted {
			clone := *ev
			result = append(result, &clone)
		}
	default:
		return nil, fmt.Errorf("unknown query mode %q", mode.Kind)
	}
	return result, nil
}
