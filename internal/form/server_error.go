package form

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	// FallbackMessage is used when a rejection carries nothing usable.
	FallbackMessage = "Failed to save."
	// ValidationMessage is used when the server sent an errors map without a message.
	ValidationMessage = "Validation failed."
)

// ServerError is a normalized save rejection. It is either a StringError or a
// StructuredError.
type ServerError interface {
	General() string
	Fields() map[string]string
	serverError()
}

// StringError carries only a general message.
type StringError struct {
	Message string
}

func (e StringError) General() string           { return e.Message }
func (e StringError) Fields() map[string]string { return map[string]string{} }
func (StringError) serverError()                {}

// StructuredError carries an optional general message and per-field messages.
type StructuredError struct {
	Message     string
	FieldErrors map[string]string
}

func (e StructuredError) General() string { return e.Message }

func (e StructuredError) Fields() map[string]string {
	out := make(map[string]string, len(e.FieldErrors))
	for k, v := range e.FieldErrors {
		out[k] = v
	}
	return out
}

func (StructuredError) serverError() {}

// PayloadCarrier is implemented by errors that hold the decoded body of a rejected
// request.
type PayloadCarrier interface {
	ServerPayload() any
}

// envelopeKeys never name a form field.
var envelopeKeys = map[string]bool{
	"status":     true,
	"code":       true,
	"statusCode": true,
	"success":    true,
	"data":       true,
	"message":    true,
	"error":      true,
	"errors":     true,
}

// Normalize maps any rejection value onto a ServerError. It accepts strings, raw
// JSON, maps, errors and arbitrary JSON-encodable values, and never fails.
func Normalize(v any) ServerError {
	switch val := v.(type) {
	case nil:
		return StringError{Message: FallbackMessage}
	case ServerError:
		return val
	case string:
		return fromString(val)
	case json.RawMessage:
		return fromBytes(val)
	case []byte:
		return fromBytes(val)
	case map[string]any:
		return fromMap(val)
	case map[string]string:
		m := make(map[string]any, len(val))
		for k, s := range val {
			m[k] = s
		}
		return fromMap(m)
	case error:
		return fromError(val)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return StringError{Message: FallbackMessage}
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return StringError{Message: FallbackMessage}
	}
	if m, ok := decoded.(map[string]any); ok {
		return fromMap(m)
	}
	return StringError{Message: FallbackMessage}
}

func fromString(s string) ServerError {
	s = strings.TrimSpace(s)
	if s == "" {
		return StringError{Message: FallbackMessage}
	}
	return StringError{Message: s}
}

func fromBytes(b []byte) ServerError {
	var decoded any
	if err := json.Unmarshal(b, &decoded); err == nil {
		switch d := decoded.(type) {
		case map[string]any:
			return fromMap(d)
		case string:
			return fromString(d)
		}
		return StringError{Message: FallbackMessage}
	}
	return fromString(string(b))
}

func fromError(err error) ServerError {
	var carrier PayloadCarrier
	if errors.As(err, &carrier) {
		if payload := carrier.ServerPayload(); payload != nil {
			normalized := Normalize(payload)
			if normalized.General() != FallbackMessage || len(normalized.Fields()) > 0 {
				return normalized
			}
		}
	}
	return fromString(err.Error())
}

func fromMap(m map[string]any) ServerError {
	message := text(m["message"])
	if message == "" {
		message = text(m["error"])
	}

	fields := map[string]string{}
	wrapped := false
	switch errs := m["errors"].(type) {
	case map[string]any:
		wrapped = true
		for k, v := range errs {
			if msg := fieldMessage(v); msg != "" {
				fields[k] = msg
			}
		}
	case []any:
		wrapped = true
		for _, item := range errs {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name := text(entry["field"])
			if name == "" {
				name = text(entry["path"])
			}
			if msg := fieldMessage(entry["message"]); name != "" && msg != "" {
				fields[name] = msg
			}
		}
	case string:
		if message == "" {
			message = strings.TrimSpace(errs)
		}
	}

	if !wrapped {
		for k, v := range m {
			if envelopeKeys[k] {
				continue
			}
			if msg := fieldMessage(v); msg != "" {
				fields[k] = msg
			}
		}
	}

	if len(fields) == 0 {
		if message == "" {
			message = FallbackMessage
		}
		return StructuredError{Message: message, FieldErrors: fields}
	}
	if message == "" && wrapped {
		message = ValidationMessage
	}
	return StructuredError{Message: message, FieldErrors: fields}
}

// fieldMessage extracts a message from a string, a list of strings or an object
// with a message key.
func fieldMessage(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []any:
		for _, item := range val {
			if msg := fieldMessage(item); msg != "" {
				return msg
			}
		}
	case []string:
		for _, item := range val {
			if msg := strings.TrimSpace(item); msg != "" {
				return msg
			}
		}
	case map[string]any:
		return text(val["message"])
	}
	return ""
}

func text(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
