// Package jsonstream decodes files holding zero or more concatenated
// top-level JSON values.
//
// The on-disk event log is a sequence of tab-indented pretty-printed objects
// separated by newlines, so the decoder is token-oriented rather than
// line-oriented: a value may span many lines, and any amount of whitespace
// may sit between values.
package jsonstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mkarpov/chronicle/internal/fsx"
)

// IOError reports that the file could not be read at all.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("read %s: %v", e.Path, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// ParseError reports malformed JSON somewhere in the stream.
type ParseError struct {
	Path   string
	Offset int64 // byte offset of the failure
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s at offset %d: %v", e.Path, e.Offset, e.Err)
}
func (e *ParseError) Unwrap() error { return e.Err }

// ReadObjects decodes every top-level JSON value in the file, in order.
// An empty or whitespace-only file yields an empty slice. A missing or
// unreadable file yields an *IOError; malformed JSON yields a *ParseError.
func ReadObjects(ctx context.Context, reader fsx.Reader, path string) ([]any, error) {
	data, err := reader.ReadFile(ctx, path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	return Decode(path, data)
}

// Decode decodes concatenated JSON values from an in-memory buffer.
// The path is used only for error reporting.
func Decode(path string, data []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	values := []any{}
	for {
		var v any
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return values, nil
		}
		if err != nil {
			return nil, &ParseError{Path: path, Offset: dec.InputOffset(), Err: err}
		}
		values = append(values, v)
	}
}
