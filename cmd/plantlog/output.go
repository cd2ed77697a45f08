package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/plantlog/internal/model"
	"github.com/alfredjeanlab/plantlog/internal/ui"
)

const dateLayout = "2006-01-02 15:04"

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printEventType(et *model.EventType) {
	fmt.Printf("ID:          %s\n", et.ID)
	fmt.Printf("Name:        %s\n", ui.Accent(et.Name))
	fmt.Printf("Kind:        %s\n", et.Kind)
	fmt.Printf("Unique:      %t\n", et.IsUnique)
	fmt.Printf("Deletable:   %t\n", et.Deletable)
	fmt.Printf("Modifiable:  %t\n", et.Modifiable)
	if !et.CreatedAt.IsZero() {
		fmt.Printf("Created At:  %s\n", et.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
}

func printEventTypeTable(types []*model.EventType) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tUNIQUE\tID")
	for _, et := range types {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", ui.Accent(et.Name), et.Kind, et.IsUnique, ui.Muted(et.ID.String()))
	}
	w.Flush()
}

func printEventTable(et *model.EventType, events []*model.EventInstance) {
	if len(events) == 0 {
		fmt.Println(ui.Muted("no events"))
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tVALUE\tID")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ev.EventDate.Local().Format(dateLayout), formatData(ev.Data, et.Kind), ui.Muted(ev.ID.String()))
	}
	w.Flush()
}

// formatData renders d for humans, naming the selected option of enums.
func formatData(d model.EventData, kind model.EventDataKind) string {
	switch v := d.(type) {
	case model.DateTime:
		return v.At.Local().Format(dateLayout)
	case model.Period:
		return v.Start.Local().Format(dateLayout) + " .. " + v.End.Local().Format(dateLayout)
	case model.CustomEnum:
		if v.Selected >= 0 && v.Selected < len(kind.Options) {
			return kind.Options[v.Selected]
		}
		return "#" + strconv.Itoa(v.Selected)
	case model.Number:
		return strconv.FormatFloat(v.Value, 'f', -1, 64)
	case model.String:
		return v.Value
	}
	return fmt.Sprintf("%v", d)
}

// parseTime accepts RFC 3339, a bare date, "now" and "today".
func parseTime(s string, now time.Time) (time.Time, error) {
	switch strings.ToLower(s) {
	case "now":
		return now.UTC(), nil
	case "today":
		y, m, d := now.Local().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.Local).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q (want RFC 3339, YYYY-MM-DD, now or today)", s)
}

// parseData converts a command-line value into data of the declared kind.
func parseData(kind model.EventDataKind, raw string, now time.Time) (model.EventData, error) {
	switch kind.Type {
	case model.KindDateTime:
		at, err := parseTime(raw, now)
		if err != nil {
			return nil, err
		}
		return model.DateTime{At: at}, nil
	case model.KindPeriod:
		from, to, ok := strings.Cut(raw, "..")
		if !ok {
			return nil, fmt.Errorf("invalid period %q (want START..END)", raw)
		}
		start, err := parseTime(strings.TrimSpace(from), now)
		if err != nil {
			return nil, err
		}
		end, err := parseTime(strings.TrimSpace(to), now)
		if err != nil {
			return nil, err
		}
		return model.Period{Start: start, End: end}, nil
	case model.KindCustomEnum:
		for i, opt := range kind.Options {
			if strings.EqualFold(opt, raw) {
				return model.CustomEnum{Selected: i}, nil
			}
		}
		if i, err := strconv.Atoi(raw); err == nil {
			return model.CustomEnum{Selected: i}, nil
		}
		return nil, fmt.Errorf("%q is not one of %s", raw, strings.Join(kind.Options, ", "))
	case model.KindNumber:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", raw)
		}
		return model.Number{Value: v}, nil
	case model.KindString:
		return model.String{Value: raw}, nil
	}
	return nil, fmt.Errorf("unknown kind %q", kind.Type)
}

// typeLister is the part of the client resolveEventType needs.
type typeLister interface {
	EventTypes(ctx context.Context, since time.Time) ([]*model.EventType, error)
	EventType(ctx context.Context, id uuid.UUID) (*model.EventType, error)
}

// resolveEventType finds an event type by id or by name.
func resolveEventType(ctx context.Context, c typeLister, ref string) (*model.EventType, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return c.EventType(ctx, id)
	}
	types, err := c.EventTypes(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	for _, et := range types {
		if et.Name == ref {
			return et, nil
		}
	}
	return nil, &model.NotFoundError{Resource: "event type", ID: ref}
}

func parsePlantID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid plant id %q: %w", s, err)
	}
	return id, nil
}
