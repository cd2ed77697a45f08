package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEventType scans a single row into a model.EventType.
// The row must contain columns in the order defined by eventTypeColumns.
func scanEventType(row scannable) (*model.EventType, error) {
	var (
		et   model.EventType
		kind []byte
	)
	err := row.Scan(
		&et.ID,
		&et.Name,
		&kind,
		&et.Deletable,
		&et.Modifiable,
		&et.IsUnique,
		&et.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(kind, &et.Kind); err != nil {
		return nil, fmt.Errorf("decode kind of event type %s: %w", et.ID, err)
	}
	et.CreatedAt = et.CreatedAt.UTC()
	return &et, nil
}

// scanEvent scans a single row into a model.EventInstance.
// The row must contain columns in the order defined by eventColumns.
func scanEvent(row scannable) (*model.EventInstance, error) {
	var (
		ev   model.EventInstance
		data []byte
	)
	err := row.Scan(
		&ev.ID,
		&ev.EventTypeID,
		&ev.EntityID,
		&data,
		&ev.EventDate,
	)
	if err != nil {
		return nil, err
	}
	ev.Data, err = model.UnmarshalEventData(data)
	if err != nil {
		return nil, fmt.Errorf("decode data of event %s: %w", ev.ID, err)
	}
	ev.EventDate = ev.EventDate.UTC()
	return &ev, nil
}
