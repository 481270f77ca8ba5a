package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
)

// APIError is a non-2xx upstream response.
type APIError struct {
	Status  int
	Message string
	Body    []byte
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status, Body: body}
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil {
		e.Message = strings.TrimSpace(env.Message)
		if e.Message == "" {
			e.Message = strings.TrimSpace(env.Error)
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Message)
}

// ServerPayload returns the decoded body so form reconciliation can extract field
// errors. Non-JSON bodies are returned as text.
func (e *APIError) ServerPayload() any {
	trimmed := bytes.TrimSpace(e.Body)
	if len(trimmed) == 0 {
		return e.Message
	}
	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err == nil {
		return decoded
	}
	return string(trimmed)
}

// AppError maps the upstream status onto the service's error taxonomy.
func (e *APIError) AppError() *appErrors.Error {
	var base *appErrors.Error
	switch {
	case e.Status == http.StatusNotFound:
		base = appErrors.ErrNotFound
	case e.Status == http.StatusForbidden:
		base = appErrors.ErrForbidden
	case e.Status == http.StatusConflict:
		base = appErrors.ErrConflict
	case e.Status == http.StatusBadRequest, e.Status == http.StatusUnprocessableEntity:
		base = appErrors.ErrUnprocessable
	case e.Status == http.StatusUnauthorized:
		base = appErrors.ErrUnauthorized
	default:
		base = appErrors.ErrUpstream
	}
	return appErrors.Wrap(e, base.Code, base.Status, e.Message)
}

// envelope is the `{status, message, data}` wrapper used by most endpoints.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// unwrap returns the `data` member when body is an envelope and body itself
// otherwise.
func unwrap(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return trimmed
	}
	if data, ok := probe["data"]; ok && len(bytes.TrimSpace(data)) > 0 && !bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return data
	}
	return trimmed
}

// decodeObject decodes a single record. When the payload nests the record under key
// (`{data: {user: {...}}}`), the nested value is used.
func decodeObject[W any](body []byte, key string) (W, error) {
	var out W
	payload := unwrap(body)
	if key != "" {
		var probe map[string]json.RawMessage
		if json.Unmarshal(payload, &probe) == nil {
			if nested, ok := probe[key]; ok && len(nested) > 0 && nested[0] == '{' {
				payload = nested
			}
		}
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "unexpected upstream payload")
	}
	return out, nil
}

// decodeList accepts a bare array, `{<key>: [...], pagination: {...}}`, `{items: [...]}`
// or any of those wrapped in an envelope. A missing total falls back to the number of
// decoded items.
func decodeList[W any](body []byte, key string) ([]W, int, error) {
	payload := unwrap(body)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return []W{}, 0, nil
	}

	if payload[0] == '[' {
		var items []W
		if err := json.Unmarshal(payload, &items); err != nil {
			return nil, 0, listError(err)
		}
		return items, len(items), nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, 0, listError(err)
	}

	items := []W{}
	for _, candidate := range []string{key, "items", "results", "rows"} {
		raw, ok := probe[candidate]
		if !ok || candidate == "" {
			continue
		}
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, 0, listError(err)
		}
		break
	}
	if items == nil {
		items = []W{}
	}

	total, ok := totalFrom(probe)
	if !ok {
		total = len(items)
	}
	return items, total, nil
}

func totalFrom(probe map[string]json.RawMessage) (int, bool) {
	var pag struct {
		TotalItems *int `json:"totalItems"`
		Total      *int `json:"total"`
	}
	if raw, ok := probe["pagination"]; ok && json.Unmarshal(raw, &pag) == nil {
		if pag.TotalItems != nil {
			return *pag.TotalItems, true
		}
		if pag.Total != nil {
			return *pag.Total, true
		}
	}
	for _, key := range []string{"totalItems", "total", "count"} {
		var n int
		if raw, ok := probe[key]; ok && json.Unmarshal(raw, &n) == nil {
			return n, true
		}
	}
	return 0, false
}

func listError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "unexpected upstream list payload")
}
