package bus

import (
	"encoding/json"
	"fmt"
)

// Message types on the wire.
const (
	TypeConfigUpdate = "config-update"
	TypeHeight       = "height"
	TypeReady        = "ready"
	TypeError        = "error"
	TypeExit         = "exit"
)

// HostMessage is a message sent by the host loader to the embed runtime.
type HostMessage interface {
	hostMessage()
}

// EmbedMessage is a message sent by the embed runtime to the host loader.
type EmbedMessage interface {
	embedMessage()
}

// ConfigUpdate carries a partial embed configuration; Config is decoded by the runtime.
type ConfigUpdate struct {
	Config json.RawMessage `json:"config"`
}

// Exit asks the embed to return to its neutral state without teardown.
type Exit struct{}

// Height reports the rendered content height in CSS pixels.
type Height struct {
	Height int `json:"height"`
}

// Ready signals that the initial render completed.
type Ready struct{}

// ErrorSignal reports a fatal embed error to the host.
type ErrorSignal struct {
	Error string `json:"error"`
}

// Custom is any application-level event; the host re-dispatches it as vestiva:<Type>.
type Custom struct {
	Type string
	Data json.RawMessage
}

func (ConfigUpdate) hostMessage() {}
func (Exit) hostMessage()         {}

func (Height) embedMessage()      {}
func (Ready) embedMessage()       {}
func (ErrorSignal) embedMessage() {}
func (Custom) embedMessage()      {}

// EncodeHost builds the envelope for a host→embed message.
func EncodeHost(m HostMessage) (Envelope, error) {
	switch v := m.(type) {
	case ConfigUpdate:
		return NewEnvelope(TypeConfigUpdate, v)
	case Exit:
		return NewEnvelope(TypeExit, nil)
	default:
		return Envelope{}, fmt.Errorf("%w: %T", ErrUnknownMessage, m)
	}
}

// EncodeEmbed builds the envelope for an embed→host message.
func EncodeEmbed(m EmbedMessage) (Envelope, error) {
	switch v := m.(type) {
	case Height:
		return NewEnvelope(TypeHeight, v)
	case Ready:
		return NewEnvelope(TypeReady, nil)
	case ErrorSignal:
		return NewEnvelope(TypeError, v)
	case Custom:
		switch v.Type {
		case TypeHeight, TypeReady, TypeError, TypeConfigUpdate, "":
			return Envelope{}, fmt.Errorf("%w: custom event cannot use reserved type %q", ErrMalformed, v.Type)
		}
		return Envelope{Type: v.Type, Data: v.Data}, nil
	default:
		return Envelope{}, fmt.Errorf("%w: %T", ErrUnknownMessage, m)
	}
}

// DecodeHost interprets an envelope received by the embed runtime.
// Types other than config-update and exit yield ErrUnknownMessage.
func DecodeHost(env Envelope) (HostMessage, error) {
	switch env.Type {
	case TypeConfigUpdate:
		var m ConfigUpdate
		if err := env.decodeData(&m); err != nil {
			return nil, err
		}
		if len(m.Config) == 0 {
			return nil, fmt.Errorf("%w: config-update without config", ErrMalformed)
		}
		return m, nil
	case TypeExit:
		return Exit{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
}

// DecodeEmbed interprets an envelope received by the host loader.
// Unrecognised types become Custom so hosts can observe them generically.
func DecodeEmbed(env Envelope) (EmbedMessage, error) {
	switch env.Type {
	case TypeHeight:
		var m Height
		if err := env.decodeData(&m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeReady:
		return Ready{}, nil
	case TypeError:
		var raw struct {
			Error json.RawMessage `json:"error"`
		}
		if err := env.decodeData(&raw); err != nil {
			return nil, err
		}
		return ErrorSignal{Error: errorText(raw.Error)}, nil
	default:
		return Custom{Type: env.Type, Data: env.Data}, nil
	}
}

// errorText accepts both a plain string and an {message} object as the error payload.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "unknown error"
	}
	var s string
	if json.Unmarshal(raw, &s) == nil && s != "" {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}
