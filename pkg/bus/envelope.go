// Package bus is the postMessage-style channel between a host page and an
// embedded widget: a JSON envelope {type, data}, closed message variants per
// direction, and browsing-context windows with FIFO single-threaded delivery.
package bus

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventPrefix namespaces every signal re-dispatched on the host page.
const EventPrefix = "vestiva:"

// Namespaced returns the host-page event name for a message type.
func Namespaced(typ string) string { return EventPrefix + typ }

var (
	// ErrMalformed is returned for payloads that are not a {type, data} object.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownMessage is returned for host→embed types the runtime does not handle.
	ErrUnknownMessage = errors.New("unknown message type")
)

// Envelope is the wire format shared by both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into an envelope of the given type.
func NewEnvelope(typ string, data any) (Envelope, error) {
	if typ == "" {
		return Envelope{}, fmt.Errorf("%w: empty type", ErrMalformed)
	}
	if data == nil {
		return Envelope{Type: typ}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", typ, err)
	}
	return Envelope{Type: typ, Data: raw}, nil
}

// ParseEnvelope decodes a raw postMessage payload.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}

func (e Envelope) decodeData(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %s data: %v", ErrMalformed, e.Type, err)
	}
	return nil
}
