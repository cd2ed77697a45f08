package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DirtyKind names the variant of a DirtyNotification.
type DirtyKind string

const (
	DirtyEntity    DirtyKind = "entity"
	DirtyEvent     DirtyKind = "event"
	DirtyEventType DirtyKind = "event_type"
)

// DirtyNotification tells clients that server state changed and cached data
// derived from it may be stale. Only the fields of the variant are set.
type DirtyNotification struct {
	Kind        DirtyKind
	EntityID    uuid.UUID
	EventTypeID uuid.UUID
	EventDate   time.Time
}

// EntityDirty marks the entity's own record stale.
func EntityDirty(entity uuid.UUID) DirtyNotification {
	return DirtyNotification{Kind: DirtyEntity, EntityID: entity}
}

// EventDirty marks one entity's series of one event type stale from eventDate on.
func EventDirty(entity, eventType uuid.UUID, eventDate time.Time) DirtyNotification {
	return DirtyNotification{Kind: DirtyEvent, EntityID: entity, EventTypeID: eventType, EventDate: eventDate.UTC()}
}

// EventTypeDirty marks an event type definition stale.
func EventTypeDirty(eventType uuid.UUID) DirtyNotification {
	return DirtyNotification{Kind: DirtyEventType, EventTypeID: eventType}
}

func (n DirtyNotification) String() string {
	switch n.Kind {
	case DirtyEntity:
		return fmt.Sprintf("entity(%s)", n.EntityID)
	case DirtyEvent:
		return fmt.Sprintf("event(%s, %s, %s)", n.EntityID, n.EventTypeID, n.EventDate.Format(time.RFC3339))
	case DirtyEventType:
		return fmt.Sprintf("event_type(%s)", n.EventTypeID)
	}
	return fmt.Sprintf("invalid(%q)", string(n.Kind))
}

type dirtyJSON struct {
	Type        DirtyKind  `json:"type"`
	EntityID    *uuid.UUID `json:"entity_id,omitempty"`
	EventTypeID *uuid.UUID `json:"event_type_id,omitempty"`
	EventDate   *time.Time `json:"event_date,omitempty"`
}

func (n DirtyNotification) MarshalJSON() ([]byte, error) {
	out := dirtyJSON{Type: n.Kind}
	switch n.Kind {
	case DirtyEntity:
		e := n.EntityID
		out.EntityID = &e
	case DirtyEvent:
		e, et, d := n.EntityID, n.EventTypeID, n.EventDate
		out.EntityID, out.EventTypeID, out.EventDate = &e, &et, &d
	case DirtyEventType:
		et := n.EventTypeID
		out.EventTypeID = &et
	default:
		return nil, fmt.Errorf("unknown dirty notification %q", n.Kind)
	}
	return json.Marshal(out)
}

func (n *DirtyNotification) UnmarshalJSON(b []byte) error {
	var raw dirtyJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case DirtyEntity:
		if raw.EntityID == nil {
			return fmt.Errorf("entity notification requires \"entity_id\"")
		}
		*n = EntityDirty(*raw.EntityID)
	case DirtyEvent:
		if raw.EntityID == nil || raw.EventTypeID == nil || raw.EventDate == nil {
			return fmt.Errorf("event notification requires \"entity_id\", \"event_type_id\" and \"event_date\"")
		}
		*n = EventDirty(*raw.EntityID, *raw.EventTypeID, *raw.EventDate)
	case DirtyEventType:
		if raw.EventTypeID == nil {
			return fmt.Errorf("event_type notification requires \"event_type_id\"")
		}
		*n = EventTypeDirty(*raw.EventTypeID)
	default:
		return fmt.Errorf("unknown dirty notification %q", raw.Type)
	}
	return nil
}
