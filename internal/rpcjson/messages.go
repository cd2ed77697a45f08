package rpcjson

import (
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "plantlog.v1.PlantLog"

// Full method names.
const (
	MethodHealth          = "/" + ServiceName + "/Health"
	MethodGetEventTypes   = "/" + ServiceName + "/GetEventTypes"
	MethodGetEventType    = "/" + ServiceName + "/GetEventType"
	MethodCreateEventType = "/" + ServiceName + "/CreateEventType"
	MethodPutEvent        = "/" + ServiceName + "/PutEvent"
	MethodGetEvents       = "/" + ServiceName + "/GetEvents"
	MethodAddPhoto        = "/" + ServiceName + "/AddPhoto"
	MethodStreamDirty     = "/" + ServiceName + "/StreamDirty"
)

type HealthRequest struct{}

type HealthResponse struct {
	Status string `json:"status"`
}

type GetEventTypesRequest struct {
	Since time.Time `json:"since,omitzero"`
}

type GetEventTypesResponse struct {
	EventTypes []*model.EventType `json:"event_types"`
}

type GetEventTypeRequest struct {
	ID uuid.UUID `json:"id"`
}

type EventTypeResponse struct {
	EventType *model.EventType `json:"event_type"`
}

type CreateEventTypeRequest struct {
	EventType model.NewEventType `json:"event_type"`
}

type PutEventRequest struct {
	Event model.NewEvent `json:"event"`
}

type PutEventResponse struct {
	Event *model.EventInstance `json:"event"`
}

type GetEventsRequest struct {
	Query model.EventQuery `json:"query"`
}

type GetEventsResponse struct {
	Events []*model.EventInstance `json:"events"`
}

type AddPhotoRequest struct {
	EntityID    uuid.UUID `json:"entity_id"`
	ContentType string    `json:"content_type"`
	TakenAt     time.Time `json:"taken_at,omitzero"`
	Data        []byte    `json:"data"`
}

type AddPhotoResponse struct {
	Photo *model.Photo         `json:"photo"`
	Event *model.EventInstance `json:"event"`
}

// StreamDirtyRequest resumes from LastID ("<epoch>.<seq>"); empty starts fresh.
type StreamDirtyRequest struct {
	LastID string `json:"last_id,omitempty"`
}
