package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// KindTag names one variant of the closed set of event data shapes.
type KindTag string

const (
	KindDateTime   KindTag = "date_time"
	KindPeriod     KindTag = "period"
	KindCustomEnum KindTag = "custom_enum"
	KindNumber     KindTag = "number"
	KindString     KindTag = "string"
)

// KindTags lists every valid tag.
var KindTags = []KindTag{KindDateTime, KindPeriod, KindCustomEnum, KindNumber, KindString}

// IsValid reports whether t is one of the known tags.
func (t KindTag) IsValid() bool {
	switch t {
	case KindDateTime, KindPeriod, KindCustomEnum, KindNumber, KindString:
		return true
	}
	return false
}

// EventDataKind is the schema declared by an event type. Options carries the
// allowed choices of a custom_enum and is empty for every other tag.
type EventDataKind struct {
	Type    KindTag  `json:"type"`
	Options []string `json:"options,omitempty"`
}

// DateTimeKind, PeriodKind, NumberKind and StringKind build the option-less kinds.
func DateTimeKind() EventDataKind { return EventDataKind{Type: KindDateTime} }
func PeriodKind() EventDataKind   { return EventDataKind{Type: KindPeriod} }
func NumberKind() EventDataKind   { return EventDataKind{Type: KindNumber} }
func StringKind() EventDataKind   { return EventDataKind{Type: KindString} }

// CustomEnumKind declares a custom_enum with the given options.
func CustomEnumKind(options ...string) EventDataKind {
	return EventDataKind{Type: KindCustomEnum, Options: options}
}

func (k EventDataKind) String() string {
	if k.Type == KindCustomEnum {
		return fmt.Sprintf("%s%v", k.Type, k.Options)
	}
	return string(k.Type)
}

// EventData is the payload of an event instance. The set of implementations
// is closed: DateTime, Period, CustomEnum, Number and String.
type EventData interface {
	Kind() KindTag
	isEventData()
}

// DateTime is a single point in time.
type DateTime struct {
	At time.Time
}

// Period is a time range; Start must precede End.
type Period struct {
	Start time.Time
	End   time.Time
}

// CustomEnum selects one option of the declaring type's option list by index.
type CustomEnum struct {
	Selected int
}

// Number is a free numeric value.
type Number struct {
	Value float64
}

// String is free text. Photo events store the blob location here.
type String struct {
	Value string
}

func (DateTime) Kind() KindTag   { return KindDateTime }
func (Period) Kind() KindTag     { return KindPeriod }
func (CustomEnum) Kind() KindTag { return KindCustomEnum }
func (Number) Kind() KindTag     { return KindNumber }
func (String) Kind() KindTag     { return KindString }

func (DateTime) isEventData()   {}
func (Period) isEventData()     {}
func (CustomEnum) isEventData() {}
func (Number) isEventData()     {}
func (String) isEventData()     {}

// dataEnvelope is the wire form of EventData.
type dataEnvelope struct {
	Type     KindTag         `json:"type"`
	At       *time.Time      `json:"at,omitempty"`
	Start    *time.Time      `json:"start,omitempty"`
	End      *time.Time      `json:"end,omitempty"`
	Selected *int            `json:"selected,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// MarshalEventData encodes d as a tagged JSON object.
func MarshalEventData(d EventData) ([]byte, error) {
	var env dataEnvelope
	switch v := d.(type) {
	case DateTime:
		at := v.At.UTC()
		env = dataEnvelope{Type: KindDateTime, At: &at}
	case Period:
		start, end := v.Start.UTC(), v.End.UTC()
		env = dataEnvelope{Type: KindPeriod, Start: &start, End: &end}
	case CustomEnum:
		sel := v.Selected
		env = dataEnvelope{Type: KindCustomEnum, Selected: &sel}
	case Number:
		raw, err := json.Marshal(v.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal number: %w", err)
		}
		env = dataEnvelope{Type: KindNumber, Value: raw}
	case String:
		raw, err := json.Marshal(v.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal string: %w", err)
		}
		env = dataEnvelope{Type: KindString, Value: raw}
	case nil:
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("unknown event data %T", d)
	}
	return json.Marshal(env)
}

// UnmarshalEventData decodes the tagged JSON form produced by MarshalEventData.
// A JSON null decodes to a nil EventData.
func UnmarshalEventData(data []byte) (EventData, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var env dataEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode event data: %w", err)
	}
	switch env.Type {
	case KindDateTime:
		if env.At == nil {
			return nil, fmt.Errorf("date_time data requires \"at\"")
		}
		return DateTime{At: env.At.UTC()}, nil
	case KindPeriod:
		if env.Start == nil || env.End == nil {
			return nil, fmt.Errorf("period data requires \"start\" and \"end\"")
		}
		return Period{Start: env.Start.UTC(), End: env.End.UTC()}, nil
	case KindCustomEnum:
		if env.Selected == nil {
			return nil, fmt.Errorf("custom_enum data requires \"selected\"")
		}
		return CustomEnum{Selected: *env.Selected}, nil
	case KindNumber:
		var n float64
		if err := json.Unmarshal(env.Value, &n); err != nil {
			return nil, fmt.Errorf("number data: %w", err)
		}
		return Number{Value: n}, nil
	case KindString:
		var s string
		if err := json.Unmarshal(env.Value, &s); err != nil {
			return nil, fmt.Errorf("string data: %w", err)
		}
		return String{Value: s}, nil
	default:
		return nil, fmt.Errorf("unknown event data type %q", env.Type)
	}
}
