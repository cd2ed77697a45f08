package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PhotoEventTypeID is the built-in event type recorded for every uploaded photo.
var PhotoEventTypeID = uuid.MustParse("5a1c7e3e-9b0f-4f5e-8d43-1f3a2c6b7d90")

// EventType is a runtime-defined category of event. Its Kind fixes the shape
// of every instance's data and IsUnique selects the storage discipline.
type EventType struct {
	ID         uuid.UUID     `json:"id"`
	Name       string        `json:"name"`
	Kind       EventDataKind `json:"kind"`
	Deletable  bool          `json:"deletable"`
	Modifiable bool          `json:"modifiable"`
	IsUnique   bool          `json:"is_unique"`
	CreatedAt  time.Time     `json:"created_at"`
}

// PhotoEventType returns the built-in photo event type.
func PhotoEventType() *EventType {
	return &EventType{
		ID:        PhotoEventTypeID,
		Name:      "photo",
		Kind:      StringKind(),
		Deletable: true,
	}
}

// NewEventType holds the fields supplied when creating an event type.
type NewEventType struct {
	Name       string        `json:"name"`
	Kind       EventDataKind `json:"kind"`
	Deletable  bool          `json:"deletable"`
	Modifiable bool          `json:"modifiable"`
	IsUnique   bool          `json:"is_unique"`
}

// EventInstance is one recorded occurrence of an event type for an entity.
type EventInstance struct {
	ID          uuid.UUID
	EventTypeID uuid.UUID
	EntityID    uuid.UUID
	Data        EventData
	EventDate   time.Time
}

type eventInstanceJSON struct {
	ID          uuid.UUID       `json:"id"`
	EventTypeID uuid.UUID       `json:"event_type_id"`
	EntityID    uuid.UUID       `json:"entity_id"`
	Data        json.RawMessage `json:"data"`
	EventDate   time.Time       `json:"event_date"`
}

func (e EventInstance) MarshalJSON() ([]byte, error) {
	data, err := MarshalEventData(e.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventInstanceJSON{
		ID:          e.ID,
		EventTypeID: e.EventTypeID,
		EntityID:    e.EntityID,
		Data:        data,
		EventDate:   e.EventDate,
	})
}

func (e *EventInstance) UnmarshalJSON(b []byte) error {
	var raw eventInstanceJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, err := UnmarshalEventData(raw.Data)
	if err != nil {
		return err
	}
	*e = EventInstance{
		ID:          raw.ID,
		EventTypeID: raw.EventTypeID,
		EntityID:    raw.EntityID,
		Data:        data,
		EventDate:   raw.EventDate,
	}
	return nil
}

// NewEvent is a write request for a single event instance.
type NewEvent struct {
	EventTypeID uuid.UUID
	EntityID    uuid.UUID
	Data        EventData
	EventDate   time.Time
}

type newEventJSON struct {
	EventTypeID uuid.UUID       `json:"event_type_id"`
	EntityID    uuid.UUID       `json:"entity_id"`
	Data        json.RawMessage `json:"data"`
	EventDate   time.Time       `json:"event_date"`
}

func (n NewEvent) MarshalJSON() ([]byte, error) {
	data, err := MarshalEventData(n.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(newEventJSON{
		EventTypeID: n.EventTypeID,
		EntityID:    n.EntityID,
		Data:        data,
		EventDate:   n.EventDate,
	})
}

func (n *NewEvent) UnmarshalJSON(b []byte) error {
	var raw newEventJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, err := UnmarshalEventData(raw.Data)
	if err != nil {
		return err
	}
	*n = NewEvent{
		EventTypeID: raw.EventTypeID,
		EntityID:    raw.EntityID,
		Data:        data,
		EventDate:   raw.EventDate,
	}
	return nil
}

// Instance builds the instance a NewEvent would produce under the given id.
func (n NewEvent) Instance(id uuid.UUID) *EventInstance {
	return &EventInstance{
		ID:          id,
		EventTypeID: n.EventTypeID,
		EntityID:    n.EntityID,
		Data:        n.Data,
		EventDate:   n.EventDate.UTC(),
	}
}

// Photo records an uploaded photo blob for an entity.
type Photo struct {
	ID          uuid.UUID `json:"id"`
	EntityID    uuid.UUID `json:"entity_id"`
	Location    string    `json:"location"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	TakenAt     time.Time `json:"taken_at"`
}

func (p *Photo) String() string {
	return fmt.Sprintf("photo %s (%s, %d bytes)", p.ID, p.Location, p.Size)
}
