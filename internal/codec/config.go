package codec

import (
	"encoding/json"
	"fmt"

	"github.com/mkarpov/chronicle/internal/types"
)

// SerializeConfig converts a configuration to its generic on-disk form.
// Each shortcut becomes a 2- or 3-element tuple; the description element is
// omitted when empty.
func SerializeConfig(c types.Config) map[string]any {
	shortcuts := make([]any, 0, len(c.Shortcuts))
	for _, s := range c.Shortcuts {
		tuple := []any{s.Pattern, s.Replacement}
		if s.Description != "" {
			tuple = append(tuple, s.Description)
		}
		shortcuts = append(shortcuts, tuple)
	}
	return map[string]any{
		"help":      c.Help,
		"shortcuts": shortcuts,
	}
}

// DeserializeConfig converts a generic value with the exact on-disk shape
// back to a configuration. Behavior on malformed input is undefined;
// external input must go through TryDeserializeConfig.
func DeserializeConfig(v any) types.Config {
	obj := v.(map[string]any)
	rawShortcuts := obj["shortcuts"].([]any)
	shortcuts := make([]types.Shortcut, 0, len(rawShortcuts))
	for _, raw := range rawShortcuts {
		tuple := raw.([]any)
		s := types.Shortcut{
			Pattern:     tuple[0].(string),
			Replacement: tuple[1].(string),
		}
		if len(tuple) > 2 {
			s.Description = tuple[2].(string)
		}
		shortcuts = append(shortcuts, s)
	}
	return types.Config{
		Help:      obj["help"].(string),
		Shortcuts: shortcuts,
	}
}

// TryDeserializeConfig validates a generic value against the config on-disk
// shape. Shortcut order is preserved.
func TryDeserializeConfig(v any) (types.Config, SchemaError) {
	obj, ok := v.(map[string]any)
	if !ok || v == nil {
		return types.Config{}, &InvalidStructureError{Value: v, Reason: "config must be a JSON object"}
	}

	rawHelp, present := obj["help"]
	if !present {
		return types.Config{}, &MissingFieldError{Field: "help"}
	}
	help, ok := rawHelp.(string)
	if !ok {
		return types.Config{}, &InvalidTypeError{Field: "help", ExpectedType: "string", Value: rawHelp}
	}

	rawShortcuts, present := obj["shortcuts"]
	if !present {
		return types.Config{}, &MissingFieldError{Field: "shortcuts"}
	}
	list, ok := rawShortcuts.([]any)
	if !ok {
		return types.Config{}, &InvalidTypeError{Field: "shortcuts", ExpectedType: "array", Value: rawShortcuts}
	}

	shortcuts := make([]types.Shortcut, 0, len(list))
	for i, raw := range list {
		tuple, ok := raw.([]any)
		if !ok {
			return types.Config{}, &InvalidArrayElementError{
				ArrayField: "shortcuts",
				Index:      i,
				Reason:     fmt.Sprintf("expected array, got %s", TypeName(raw)),
			}
		}
		if len(tuple) < 2 {
			return types.Config{}, &InvalidArrayElementError{
				ArrayField: "shortcuts",
				Index:      i,
				Reason:     fmt.Sprintf("expected at least 2 elements, got %d", len(tuple)),
			}
		}
		var s types.Shortcut
		pattern, ok := tuple[0].(string)
		if !ok {
			return types.Config{}, &InvalidArrayElementError{
				ArrayField: "shortcuts",
				Index:      i,
				Reason:     fmt.Sprintf("pattern must be a string, got %s", TypeName(tuple[0])),
			}
		}
		replacement, ok := tuple[1].(string)
		if !ok {
			return types.Config{}, &InvalidArrayElementError{
				ArrayField: "shortcuts",
				Index:      i,
				Reason:     fmt.Sprintf("replacement must be a string, got %s", TypeName(tuple[1])),
			}
		}
		s.Pattern = pattern
		s.Replacement = replacement
		if len(tuple) > 2 {
			description, ok := tuple[2].(string)
			if !ok {
				return types.Config{}, &InvalidArrayElementError{
					ArrayField: "shortcuts",
					Index:      i,
					Reason:     fmt.Sprintf("description must be a string, got %s", TypeName(tuple[2])),
				}
			}
			s.Description = description
		}
		shortcuts = append(shortcuts, s)
	}

	return types.Config{Help: help, Shortcuts: shortcuts}, nil
}

// EncodeConfigJSON renders a configuration in the on-disk text form:
// tab-indented pretty printing terminated by a newline.
func EncodeConfigJSON(c types.Config) ([]byte, error) {
	data, err := json.MarshalIndent(SerializeConfig(c), "", "\t")
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return append(data, '\n'), nil
}
