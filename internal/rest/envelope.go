// ABOUTME: Envelope normalization for REST responses with inconsistent nesting
// ABOUTME: One explicit fallback chain replaces ad-hoc shape sniffing at call sites

package rest

import (
	"encoding/json"
	"errors"
)

// ErrNoList means a response body matched none of the known list envelopes.
var ErrNoList = errors.New("response contains no recognizable list")

// listEnvelope covers the nesting variants the backend has been observed to
// produce for the same logical list: a bare array, {"data": [...]},
// {"data": {"items": [...]}}, {"content": [...]}, or {"items": [...]}.
type listEnvelope struct {
	Data    json.RawMessage   `json:"data"`
	Content []json.RawMessage `json:"content"`
	Items   []json.RawMessage `json:"items"`
}

// decodeList extracts the raw list elements from a response body, trying each
// known envelope shape in a fixed order. Returns ErrNoList when the body is
// valid JSON but matches no shape.
func decodeList(body []byte) ([]json.RawMessage, error) {
	// Bare array first: the common case.
	var bare []json.RawMessage
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}

	if len(env.Data) > 0 {
		// data may be the list itself or a nested envelope.
		var inner []json.RawMessage
		if err := json.Unmarshal(env.Data, &inner); err == nil {
			return inner, nil
		}
		var nested listEnvelope
		if err := json.Unmarshal(env.Data, &nested); err == nil {
			if nested.Items != nil {
				return nested.Items, nil
			}
			if nested.Content != nil {
				return nested.Content, nil
			}
		}
	}
	if env.Content != nil {
		return env.Content, nil
	}
	if env.Items != nil {
		return env.Items, nil
	}

	return nil, ErrNoList
}

// decodeObject unmarshals a response body into v, unwrapping a {"data": {...}}
// envelope when present.
func decodeObject(body []byte, v any) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && env.Data[0] == '{' {
		return json.Unmarshal(env.Data, v)
	}
	return json.Unmarshal(body, v)
}

// decodeListOf parses every element of a list envelope into T, skipping
// elements that fail to parse. Returns the parsed records and the number of
// elements dropped.
func decodeListOf[T any](body []byte) ([]T, int, error) {
	raws, err := decodeList(body)
	if err != nil {
		return nil, 0, err
	}

	out := make([]T, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			dropped++
			continue
		}
		out = append(out, rec)
	}
	return out, dropped, nil
}
