package model

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateData checks that data fits the declared kind. It returns a
// *KindMismatchError when the variant differs, when a custom_enum selection
// is outside the declared options, when a period does not start before it
// ends, or when a number is NaN or infinite. It never touches storage.
func ValidateData(data EventData, declared EventDataKind) error {
	if data == nil {
		return &KindMismatchError{Declared: declared, Reason: "event data is missing"}
	}
	if data.Kind() != declared.Type {
		return &KindMismatchError{Declared: declared, Got: data.Kind()}
	}
	switch d := data.(type) {
	case CustomEnum:
		if d.Selected < 0 || d.Selected >= len(declared.Options) {
			return &KindMismatchError{
				Declared: declared,
				Got:      KindCustomEnum,
				Reason:   fmt.Sprintf("selected option %d is outside [0, %d)", d.Selected, len(declared.Options)),
			}
		}
	case Period:
		if !d.Start.Before(d.End) {
			return &KindMismatchError{
				Declared: declared,
				Got:      KindPeriod,
				Reason:   "period start must be before its end",
			}
		}
	case Number:
		if math.IsNaN(d.Value) || math.IsInf(d.Value, 0) {
			return &KindMismatchError{
				Declared: declared,
				Got:      KindNumber,
				Reason:   fmt.Sprintf("number %v is not finite", d.Value),
			}
		}
	case DateTime, String:
	}
	return nil
}

// ValidateNewEventType checks an event type definition before it is stored.
func ValidateNewEventType(n *NewEventType) error {
	var ve ValidationError

	name := strings.TrimSpace(n.Name)
	if name == "" {
		ve.add("name", "is required")
	} else if len([]rune(name)) > 200 {
		ve.add("name", "must be 200 characters or fewer")
	}

	if !n.Kind.Type.IsValid() {
		ve.add("kind", "invalid value %q", n.Kind.Type)
	} else if n.Kind.Type == KindCustomEnum {
		if len(n.Kind.Options) == 0 {
			ve.add("kind.options", "custom_enum requires at least one option")
		}
		seen := make(map[string]bool, len(n.Kind.Options))
		for _, opt := range n.Kind.Options {
			if strings.TrimSpace(opt) == "" {
				ve.add("kind.options", "options must not be blank")
				break
			}
			if seen[opt] {
				ve.add("kind.options", "duplicate option %q", opt)
				break
			}
			seen[opt] = true
		}
	} else if len(n.Kind.Options) > 0 {
		ve.add("kind.options", "only custom_enum takes options")
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateQuery checks a query's mode parameters.
func ValidateQuery(q *EventQuery) error {
	var ve ValidationError
	switch q.Mode.Kind {
	case ModeSpan:
		if q.Mode.From.After(q.Mode.To) {
			ve.add("mode", "span from must not be after to")
		}
	case ModeLastNth:
		if q.Mode.N < 0 {
			ve.add("mode", "last_nth count must not be negative, got %d", q.Mode.N)
		}
	case ModeAll:
	default:
		ve.add("mode", "invalid value %q", q.Mode.Kind)
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}
