package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/model"
	"github.com/alfredjeanlab/plantlog/internal/store"
)

// eventTypeColumns is the column list used for SELECT statements on the event_types table.
const eventTypeColumns = `id, name, kind, deletable, modifiable, is_unique, created_at`

// eventColumns is shared by plant_events and plant_unique_events.
const eventColumns = `id, event_type_id, plant_id, data, event_date`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// tableFor maps a discipline to its table name. Never built from input.
func tableFor(d store.Discipline) string {
	if d == store.Unique {
		return "plant_unique_events"
	}
	return "plant_events"
}

func queryCreateEventType(ctx context.Context, db executor, et *model.EventType) error {
	kind, err := json.Marshal(et.Kind)
	if err != nil {
		return fmt.Errorf("marshal kind: %w", err)
	}
	return db.QueryRowContext(ctx, `
		INSERT INTO event_types (id, name, kind, deletable, modifiable, is_unique)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		et.ID, et.Name, kind, et.Deletable, et.Modifiable, et.IsUnique,
	).Scan(&et.CreatedAt)
}

func queryEnsureEventType(ctx context.Context, db executor, et *model.EventType) error {
	kind, err := json.Marshal(et.Kind)
	if err != nil {
		return fmt.Errorf("marshal kind: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO event_types (id, name, kind, deletable, modifiable, is_unique)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		et.ID, et.Name, kind, et.Deletable, et.Modifiable, et.IsUnique,
	)
	return err
}

func queryGetEventType(ctx context.Context, db executor, id uuid.UUID) (*model.EventType, error) {
	row := db.QueryRowContext(ctx, `SELECT `+eventTypeColumns+` FROM event_types WHERE id = $1`, id)
	et, err := scanEventType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.EventTypeNotFound(id)
	}
	return et, err
}

// queryListEventTypes returns every event type when since is zero, otherwise
// only those created strictly after since.
func queryListEventTypes(ctx context.Context, db executor, since time.Time) ([]*model.EventType, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if since.IsZero() {
		rows, err = db.QueryContext(ctx, `SELECT `+eventTypeColumns+` FROM event_types ORDER BY created_at, id`)
	} else {
		rows, err = db.QueryContext(ctx, `SELECT `+eventTypeColumns+` FROM event_types WHERE created_at > $1 ORDER BY created_at, id`, since)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*model.EventType{}
	for rows.Next() {
		et, err := scanEventType(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, et)
	}
	return result, rows.Err()
}

func queryInsertEvent(ctx context.Context, db executor, ev *model.EventInstance) error {
	data, err := model.MarshalEventData(ev.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO plant_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, ev.EventTypeID, ev.EntityID, data, ev.EventDate,
	)
	return err
}

// queryUpsertUniqueEvent writes the single slot for (event type, plant). On
// conflict the existing row keeps its id and takes the new data and date.
func queryUpsertUniqueEvent(ctx context.Context, db executor, ev *model.EventInstance) error {
	data, err := model.MarshalEventData(ev.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	row := db.QueryRowContext(ctx, `
		INSERT INTO plant_unique_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_type_id, plant_id) DO UPDATE
		SET data = EXCLUDED.data, event_date = EXCLUDED.event_date
		RETURNING `+eventColumns,
		ev.ID, ev.EventTypeID, ev.EntityID, data, ev.EventDate,
	)
	stored, err := scanEvent(row)
	if err != nil {
		return err
	}
	*ev = *stored
	return nil
}

func queryEvents(ctx context.Context, db executor, d store.Discipline, eventTypeID, entityID uuid.UUID, mode model.QueryMode) ([]*model.EventInstance, error) {
	base := `SELECT ` + eventColumns + ` FROM ` + tableFor(d) + ` WHERE event_type_id = $1 AND plant_id = $2`

	var (
		rows *sql.Rows
		err  error
	)
	switch mode.Kind {
	case model.ModeSpan:
		rows, err = db.QueryContext(ctx, base+` AND event_date BETWEEN $3 AND $4 ORDER BY event_date ASC, id ASC`,
			eventTypeID, entityID, mode.From, mode.To)
	case model.ModeLastNth:
		if mode.N <= 0 {
			return []*model.EventInstance{}, nil
		}
		rows, err = db.QueryContext(ctx, base+` ORDER BY event_date DESC, id DESC LIMIT $3`,
			eventTypeID, entityID, mode.N)
	case model.ModeAll:
		rows, err = db.QueryContext(ctx, base+` ORDER BY event_date ASC, id ASC`, eventTypeID, entityID)
	default:
		return nil, fmt.Errorf("unknown query mode %q", mode.Kind)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*model.EventInstance{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

func queryRecordPhoto(ctx context.Context, db executor, p *model.Photo) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO photos (id, plant_id, location, content_type, size_bytes, taken_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.EntityID, p.Location, p.ContentType, p.Size, p.TakenAt,
	)
	return err
}
