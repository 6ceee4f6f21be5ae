package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validated is the outcome of a parse step: either a value or the reason the
// input was rejected.
type Validated[T any] struct {
	value  T
	reason string
	ok     bool
}

func Valid[T any](v T) Validated[T] {
	return Validated[T]{value: v, ok: true}
}

func Invalid[T any](reason string) Validated[T] {
	return Validated[T]{reason: reason}
}

// Get returns the value and whether the input was valid.
func (v Validated[T]) Get() (T, bool) {
	return v.value, v.ok
}

// Reason is empty for valid results.
func (v Validated[T]) Reason() string {
	return v.reason
}

// Err wraps the rejection reason in ErrMalformedInput.
func (v Validated[T]) Err() error {
	if v.ok {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMalformedInput, v.reason)
}

const historyItemSchemaJSON = `{
	"type": "object",
	"required": ["role"],
	"properties": {
		"role": {"type": "string", "pattern": "\\S"}
	}
}`

const fileDescriptorSchemaJSON = `{
	"type": "object",
	"required": ["uri", "mimeType"],
	"properties": {
		"uri": {"type": "string", "pattern": "\\S"},
		"mimeType": {"type": "string", "pattern": "\\S"}
	}
}`

var (
	historyItemSchema    = mustCompile("history_item.json", historyItemSchemaJSON)
	fileDescriptorSchema = mustCompile("file_descriptor.json", fileDescriptorSchemaJSON)
)

func mustCompile(name, src string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(name, strings.NewReader(src)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	s, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return s
}

// rawHistoryItem is a history entry that passed the schema but whose text
// and fileData have not been decoded yet. A bad text costs the item its text
// and a bad fileData costs it its files, so the schema only constrains role.
type rawHistoryItem struct {
	Role     string
	Text     any
	FileData any
}

func parseHistoryItem(raw json.RawMessage) Validated[rawHistoryItem] {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Invalid[rawHistoryItem]("history item is not valid JSON: " + err.Error())
	}
	if err := historyItemSchema.Validate(doc); err != nil {
		return Invalid[rawHistoryItem]("history item: " + schemaReason(err))
	}

	obj := doc.(map[string]any)
	return Valid(rawHistoryItem{
		Role:     strings.TrimSpace(obj["role"].(string)),
		Text:     obj["text"],
		FileData: obj["fileData"],
	})
}

// parseText accepts a string or a missing/null text.
func parseText(v any) Validated[string] {
	switch t := v.(type) {
	case nil:
		return Valid("")
	case string:
		return Valid(t)
	default:
		return Invalid[string](fmt.Sprintf("text has type %T, want string", v))
	}
}

// parseFileData decodes a history item's fileData. A missing value or an
// empty string is a valid "no files".
func parseFileData(v any) Validated[[]any] {
	switch fd := v.(type) {
	case nil:
		return Valid[[]any](nil)
	case []any:
		return Valid(fd)
	case string:
		if strings.TrimSpace(fd) == "" {
			return Valid[[]any](nil)
		}
		var decoded any
		if err := json.Unmarshal([]byte(fd), &decoded); err != nil {
			return Invalid[[]any]("fileData string is not valid JSON: " + err.Error())
		}
		switch d := decoded.(type) {
		case nil:
			return Valid[[]any](nil)
		case []any:
			return Valid(d)
		default:
			return Invalid[[]any](fmt.Sprintf("fileData string decodes to %T, want array", decoded))
		}
	default:
		return Invalid[[]any](fmt.Sprintf("fileData has type %T", v))
	}
}

func parseFileDescriptor(v any) Validated[FileDescriptor] {
	if err := fileDescriptorSchema.Validate(v); err != nil {
		return Invalid[FileDescriptor]("file descriptor: " + schemaReason(err))
	}
	obj := v.(map[string]any)
	return Valid(FileDescriptor{
		URI:      strings.TrimSpace(obj["uri"].(string)),
		MIMEType: strings.TrimSpace(obj["mimeType"].(string)),
	})
}

// schemaReason reduces a validation error to its first leaf cause.
func schemaReason(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + ve.Message
}
