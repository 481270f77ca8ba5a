package form

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type payloadError struct {
	payload any
}

func (e *payloadError) Error() string      { return "upstream returned 400" }
func (e *payloadError) ServerPayload() any { return e.payload }

func TestNormalize(t *testing.T) {
	cases := []struct {
		name    string
		input   any
		general string
		fields  map[string]string
	}{
		{
			name:    "message and errors map",
			input:   map[string]any{"message": "bad", "errors": map[string]any{"email": "invalid"}},
			general: "bad",
			fields:  map[string]string{"email": "invalid"},
		},
		{
			name:    "bare field keys",
			input:   map[string]any{"email": "taken"},
			general: "",
			fields:  map[string]string{"email": "taken"},
		},
		{
			name:    "bare string",
			input:   "failed",
			general: "failed",
			fields:  map[string]string{},
		},
		{
			name:    "field keys with message",
			input:   map[string]string{"message": "Duplicate entry", "phone": "already used"},
			general: "Duplicate entry",
			fields:  map[string]string{"phone": "already used"},
		},
		{
			name:    "errors without message",
			input:   map[string]any{"errors": map[string]any{"name": []any{"too short", "too plain"}}},
			general: ValidationMessage,
			fields:  map[string]string{"name": "too short"},
		},
		{
			name: "errors as list of objects",
			input: map[string]any{"errors": []any{
				map[string]any{"field": "email", "message": "invalid"},
				map[string]any{"path": "phone", "message": "required"},
				"ignored",
			}},
			general: ValidationMessage,
			fields:  map[string]string{"email": "invalid", "phone": "required"},
		},
		{
			name:    "envelope keys ignored",
			input:   map[string]any{"status": "fail", "code": "E1", "success": false, "message": "Email already exists"},
			general: "Email already exists",
			fields:  map[string]string{},
		},
		{
			name:    "error key used when message missing",
			input:   map[string]any{"error": "Unauthorized"},
			general: "Unauthorized",
			fields:  map[string]string{},
		},
		{
			name:    "raw json",
			input:   json.RawMessage(`{"message":"bad","errors":{"email":"invalid"}}`),
			general: "bad",
			fields:  map[string]string{"email": "invalid"},
		},
		{
			name:    "non json bytes",
			input:   []byte("gateway timeout"),
			general: "gateway timeout",
			fields:  map[string]string{},
		},
		{
			name:    "nil",
			input:   nil,
			general: FallbackMessage,
			fields:  map[string]string{},
		},
		{
			name:    "blank string",
			input:   "   ",
			general: FallbackMessage,
			fields:  map[string]string{},
		},
		{
			name:    "number",
			input:   42,
			general: FallbackMessage,
			fields:  map[string]string{},
		},
		{
			name:    "array",
			input:   []any{"a", "b"},
			general: FallbackMessage,
			fields:  map[string]string{},
		},
		{
			name:    "object with unusable values",
			input:   map[string]any{"count": 3, "nested": map[string]any{"x": 1}},
			general: FallbackMessage,
			fields:  map[string]string{},
		},
		{
			name:    "plain error",
			input:   errors.New("connection refused"),
			general: "connection refused",
			fields:  map[string]string{},
		},
		{
			name:    "error carrying payload",
			input:   fmt.Errorf("save: %w", &payloadError{payload: map[string]any{"message": "bad", "email": "taken"}}),
			general: "bad",
			fields:  map[string]string{"email": "taken"},
		},
		{
			name:    "error carrying empty payload",
			input:   &payloadError{},
			general: "upstream returned 400",
			fields:  map[string]string{},
		},
		{
			name: "struct value",
			input: struct {
				Message string            `json:"message"`
				Errors  map[string]string `json:"errors"`
			}{Message: "bad", Errors: map[string]string{"name": "required"}},
			general: "bad",
			fields:  map[string]string{"name": "required"},
		},
		{
			name:    "unencodable value",
			input:   make(chan int),
			general: FallbackMessage,
			fields:  map[string]string{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.input)
			assert.Equal(t, tc.general, got.General())
			assert.Equal(t, tc.fields, got.Fields())
		})
	}
}

func TestNormalizeUnionShapes(t *testing.T) {
	_, isString := Normalize("failed").(StringError)
	assert.True(t, isString)

	_, isStructured := Normalize(map[string]any{"email": "taken"}).(StructuredError)
	assert.True(t, isStructured)

	already := StructuredError{Message: "x", FieldErrors: map[string]string{"a": "b"}}
	assert.Equal(t, already, Normalize(already))
}

func TestStructuredErrorFieldsIsCopy(t *testing.T) {
	e := StructuredError{FieldErrors: map[string]string{"email": "taken"}}
	fields := e.Fields()
	fields["email"] = "changed"
	assert.Equal(t, "taken", e.FieldErrors["email"])
}
