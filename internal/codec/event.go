// Package codec converts events and configuration between their in-memory
// form and the generic on-disk JSON form.
//
// Each entity has three operations: Serialize (total, side-effect free),
// Deserialize (assumes the exact on-disk shape; for values the codec itself
// produced), and TryDeserialize (full validation, returning a SchemaError
// value describing the first failing field).
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mkarpov/chronicle/internal/types"
)

// SerializeEvent converts an event to its generic on-disk form.
func SerializeEvent(e types.Event) map[string]any {
	modifiers := make(map[string]any, len(e.Modifiers))
	for k, v := range e.Modifiers {
		modifiers[k] = v
	}
	return map[string]any{
		"id":          e.ID.Identifier,
		"date":        FormatDate(e.Date),
		"original":    e.Original,
		"input":       e.Input,
		"type":        e.Type,
		"description": e.Description,
		"modifiers":   modifiers,
		"creator": map[string]any{
			"name":    e.Creator.Name,
			"uuid":    e.Creator.UUID,
			"version": e.Creator.Version,
		},
	}
}

// DeserializeEvent converts a generic value with the exact on-disk shape
// back to an event. Behavior on malformed input is undefined; external
// input must go through TryDeserializeEvent.
func DeserializeEvent(v any) types.Event {
	obj := v.(map[string]any)
	date, _ := ParseDate(obj["date"].(string))
	rawModifiers := obj["modifiers"].(map[string]any)
	modifiers := make(map[string]string, len(rawModifiers))
	for k, mv := range rawModifiers {
		modifiers[k] = mv.(string)
	}
	creator := obj["creator"].(map[string]any)
	return types.Event{
		ID:          types.EventID{Identifier: obj["id"].(string)},
		Date:        date,
		Original:    obj["original"].(string),
		Input:       obj["input"].(string),
		Type:        obj["type"].(string),
		Description: obj["description"].(string),
		Modifiers:   modifiers,
		Creator: types.Creator{
			Name:    creator["name"].(string),
			UUID:    creator["uuid"].(string),
			Version: creator["version"].(string),
		},
	}
}

// eventStringFields is the declared validation order for the flat string
// fields; the first failure wins.
var eventStringFields = []string{"id", "date", "original", "input", "type", "description"}

// TryDeserializeEvent validates a generic value against the event on-disk
// shape. It returns the event, or a SchemaError describing the first field
// that failed.
func TryDeserializeEvent(v any) (types.Event, SchemaError) {
	obj, ok := v.(map[string]any)
	if !ok || v == nil {
		return types.Event{}, &InvalidStructureError{Value: v, Reason: "event must be a JSON object"}
	}

	fields := make(map[string]string, len(eventStringFields))
	var date time.Time
	for _, field := range eventStringFields {
		raw, present := obj[field]
		if !present {
			return types.Event{}, &MissingFieldError{Field: field}
		}
		s, ok := raw.(string)
		if !ok {
			return types.Event{}, &InvalidTypeError{Field: field, ExpectedType: "string", Value: raw}
		}
		switch {
		case field == "id" && s == "":
			return types.Event{}, &InvalidValueError{Field: "id", Value: s, Reason: "identifier must be non-empty"}
		case field == "type" && s == "":
			return types.Event{}, &InvalidValueError{Field: "type", Value: s, Reason: "type must be non-empty"}
		case field == "date":
			parsed, err := ParseDate(s)
			if err != nil {
				return types.Event{}, &InvalidValueError{Field: "date", Value: s, Reason: err.Error()}
			}
			date = parsed
		}
		fields[field] = s
	}

	rawModifiers, present := obj["modifiers"]
	if !present {
		return types.Event{}, &MissingFieldError{Field: "modifiers"}
	}
	modifierObj, ok := rawModifiers.(map[string]any)
	if !ok {
		return types.Event{}, &InvalidTypeError{Field: "modifiers", ExpectedType: "object", Value: rawModifiers}
	}
	modifiers := make(map[string]string, len(modifierObj))
	for key, mv := range modifierObj {
		s, ok := mv.(string)
		if !ok {
			return types.Event{}, &NestedFieldError{
				ParentField: "modifiers",
				NestedField: key,
				Reason:      fmt.Sprintf("expected string, got %s", TypeName(mv)),
			}
		}
		modifiers[key] = s
	}

	rawCreator, present := obj["creator"]
	if !present {
		return types.Event{}, &MissingFieldError{Field: "creator"}
	}
	creatorObj, ok := rawCreator.(map[string]any)
	if !ok {
		return types.Event{}, &InvalidTypeError{Field: "creator", ExpectedType: "object", Value: rawCreator}
	}
	var creator types.Creator
	for _, sub := range []struct {
		name string
		dst  *string
	}{
		{"name", &creator.Name},
		{"uuid", &creator.UUID},
		{"version", &creator.Version},
	} {
		cv, present := creatorObj[sub.name]
		if !present {
			return types.Event{}, &NestedFieldError{ParentField: "creator", NestedField: sub.name, Reason: "missing required field"}
		}
		s, ok := cv.(string)
		if !ok {
			return types.Event{}, &NestedFieldError{
				ParentField: "creator",
				NestedField: sub.name,
				Reason:      fmt.Sprintf("expected string, got %s", TypeName(cv)),
			}
		}
		*sub.dst = s
	}

	return types.Event{
		ID:          types.EventID{Identifier: fields["id"]},
		Date:        date,
		Original:    fields["original"],
		Input:       fields["input"],
		Type:        fields["type"],
		Description: fields["description"],
		Modifiers:   modifiers,
		Creator:     creator,
	}, nil
}

// EncodeEventJSON renders an event in the on-disk text form: tab-indented
// pretty printing terminated by a newline, so appending the result to the
// log keeps the file a valid stream.
func EncodeEventJSON(e types.Event) ([]byte, error) {
	data, err := json.MarshalIndent(SerializeEvent(e), "", "\t")
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", e.ID, err)
	}
	return append(data, '\n'), nil
}
