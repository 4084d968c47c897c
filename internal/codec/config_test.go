package codec_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/mkarpov/chronicle/internal/codec"
	"github.com/mkarpov/chronicle/internal/types"
)

func sampleConfig() types.Config {
	return types.Config{
		Help: "usage: chronicle record <type> <input>",
		Shortcuts: []types.Shortcut{
			{Pattern: "cff", Replacement: "coffee", Description: "coffee shorthand"},
			{Pattern: "wlk", Replacement: "walk"},
		},
	}
}

func TestConfigRoundTripFromMemory(t *testing.T) {
	c := sampleConfig()

	got, err := codec.TryDeserializeConfig(codec.SerializeConfig(c))
	if err != nil {
		t.Fatalf("TryDeserializeConfig(serialize(c)) error = %v", err)
	}
	if !reflect.DeepEqual(got, c) {
		t.Errorf("round trip = %#v, want %#v", got, c)
	}
}

func TestConfigRoundTripFromDisk(t *testing.T) {
	v := map[string]any{
		"help": "h",
		"shortcuts": []any{
			[]any{"a", "b"},
			[]any{"c", "d", "described"},
		},
	}

	got := codec.SerializeConfig(codec.DeserializeConfig(v))
	if !reflect.DeepEqual(got, v) {
		t.Errorf("serialize(deserialize(v)) = %#v, want %#v", got, v)
	}
}

func TestConfigPreservesShortcutOrder(t *testing.T) {
	c := types.Config{
		Help: "h",
		Shortcuts: []types.Shortcut{
			{Pattern: "z", Replacement: "zulu"},
			{Pattern: "a", Replacement: "alpha"},
			{Pattern: "m", Replacement: "mike"},
		},
	}
	got, err := codec.TryDeserializeConfig(codec.SerializeConfig(c))
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"z", "a", "m"} {
		if got.Shortcuts[i].Pattern != want {
			t.Errorf("shortcut %d pattern = %q, want %q", i, got.Shortcuts[i].Pattern, want)
		}
	}
}

func TestTryDeserializeConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		input any
		check func(t *testing.T, err codec.SchemaError)
	}{
		{
			name:  "not an object",
			input: "nope",
			check: func(t *testing.T, err codec.SchemaError) {
				if _, ok := err.(*codec.InvalidStructureError); !ok {
					t.Errorf("error = %T, want *InvalidStructureError", err)
				}
			},
		},
		{
			name:  "missing help",
			input: map[string]any{"shortcuts": []any{}},
			check: func(t *testing.T, err codec.SchemaError) {
				missing, ok := err.(*codec.MissingFieldError)
				if !ok {
					t.Fatalf("error = %T, want *MissingFieldError", err)
				}
				if missing.Field != "help" {
					t.Errorf("Field = %q, want help", missing.Field)
				}
			},
		},
		{
			name:  "shortcuts not an array",
			input: map[string]any{"help": "h", "shortcuts": map[string]any{}},
			check: func(t *testing.T, err codec.SchemaError) {
				invalid, ok := err.(*codec.InvalidTypeError)
				if !ok {
					t.Fatalf("error = %T, want *InvalidTypeError", err)
				}
				if invalid.Field != "shortcuts" {
					t.Errorf("Field = %q, want shortcuts", invalid.Field)
				}
			},
		},
		{
			name: "tuple too short",
			input: map[string]any{
				"help":      "h",
				"shortcuts": []any{[]any{"a", "b"}, []any{"only"}},
			},
			check: func(t *testing.T, err codec.SchemaError) {
				bad, ok := err.(*codec.InvalidArrayElementError)
				if !ok {
					t.Fatalf("error = %T, want *InvalidArrayElementError", err)
				}
				if bad.ArrayField != "shortcuts" || bad.Index != 1 {
					t.Errorf("got %q[%d]", bad.ArrayField, bad.Index)
				}
			},
		},
		{
			name: "non-string tuple element",
			input: map[string]any{
				"help":      "h",
				"shortcuts": []any{[]any{"a", 2.0}},
			},
			check: func(t *testing.T, err codec.SchemaError) {
				bad, ok := err.(*codec.InvalidArrayElementError)
				if !ok {
					t.Fatalf("error = %T, want *InvalidArrayElementError", err)
				}
				if bad.Index != 0 {
					t.Errorf("Index = %d, want 0", bad.Index)
				}
			},
		},
		{
			name: "first bad element reported",
			input: map[string]any{
				"help":      "h",
				"shortcuts": []any{[]any{"ok", "ok"}, []any{1.0, "x"}, []any{"also"}},
			},
			check: func(t *testing.T, err codec.SchemaError) {
				bad, ok := err.(*codec.InvalidArrayElementError)
				if !ok {
					t.Fatalf("error = %T, want *InvalidArrayElementError", err)
				}
				if bad.Index != 1 {
					t.Errorf("Index = %d, want 1 (left-to-right, first failure)", bad.Index)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.TryDeserializeConfig(tt.input)
			if err == nil {
				t.Fatal("TryDeserializeConfig() succeeded, want error")
			}
			tt.check(t, err)
		})
	}
}

func TestEncodeConfigJSON(t *testing.T) {
	data, err := codec.EncodeConfigJSON(sampleConfig())
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if !strings.HasSuffix(s, "\n") {
		t.Error("encoded config must end with a newline")
	}
	if !strings.Contains(s, "\t\"help\"") {
		t.Error("encoded config must be tab-indented")
	}
}
