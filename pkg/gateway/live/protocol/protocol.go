// Package protocol defines the JSON frames exchanged on /ws/{client_id}.
//
// Every frame is an envelope {"type": ..., "payload": {...}}. Inbound frames
// are decoded into typed client messages; outbound events are built with the
// Server* types and wrapped by Encode.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Inbound message types.
const (
	TypeSessionStart   = "session:start"
	TypeUserText       = "user:text"
	TypeUserInterrupt  = "user:interrupt"
	TypeUserAudioChunk = "user:audio_chunk"
	TypeUserAudioEnd   = "user:audio_end"
)

// Outbound event types.
const (
	TypeSessionReady = "session:ready"
	TypeSessionError = "session:error"
	TypeASRPartial   = "asr:partial"
	TypeASRFinal     = "asr:final"
	TypeAvatarSpeak  = "avatar:speak"
	TypeAvatarIdle   = "avatar:idle"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// Envelope is the wire shape of every frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ClientSessionStart struct {
	CharacterID string `json:"character_id"`
}

type ClientUserText struct {
	Text string `json:"text"`
}

type ClientInterrupt struct{}

// ClientAudioChunk carries base64 PCM s16le mono audio.
type ClientAudioChunk struct {
	Data string `json:"data"`
}

type ClientAudioEnd struct{}

// DecodeClientMessage returns one of the Client* values or a *DecodeError.
func DecodeClientMessage(data []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(env.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case TypeSessionStart:
		var msg ClientSessionStart
		if err := decodePayload(env.Payload, &msg); err != nil {
			return nil, badRequest("invalid session:start payload", "payload")
		}
		msg.CharacterID = strings.TrimSpace(msg.CharacterID)
		if msg.CharacterID == "" {
			return nil, badRequest("session:start.character_id is required", "character_id")
		}
		return msg, nil
	case TypeUserText:
		var msg ClientUserText
		if err := decodePayload(env.Payload, &msg); err != nil {
			return nil, badRequest("invalid user:text payload", "payload")
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, badRequest("user:text.text is required", "text")
		}
		return msg, nil
	case TypeUserInterrupt:
		return ClientInterrupt{}, nil
	case TypeUserAudioChunk:
		var msg ClientAudioChunk
		if err := decodePayload(env.Payload, &msg); err != nil {
			return nil, badRequest("invalid user:audio_chunk payload", "payload")
		}
		if strings.TrimSpace(msg.Data) == "" {
			return nil, badRequest("user:audio_chunk.data is required", "data")
		}
		return msg, nil
	case TypeUserAudioEnd:
		return ClientAudioEnd{}, nil
	default:
		return nil, unsupported("unsupported message type", "type")
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// CharacterInfo is the public part of a character; engine credentials are
// never sent.
type CharacterInfo struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Persona         string         `json:"llm_persona"`
	Live2DModelName string         `json:"live2d_model_name"`
	ExtraData       map[string]any `json:"extra_data,omitempty"`
}

type ServerSessionReady struct {
	SessionID       string         `json:"session_id"`
	Character       CharacterInfo  `json:"character"`
	Live2DModelInfo map[string]any `json:"live2d_model_info"`
}

type ServerSessionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ServerTranscript struct {
	Text string `json:"text"`
}

// ServerAvatarSpeak is one spoken sentence. Expressions and Motions hold the
// renderer payloads from the character's model, not the marker keys.
type ServerAvatarSpeak struct {
	Text        string `json:"text"`
	Audio       string `json:"audio"`
	Expressions []any  `json:"expressions"`
	Motions     []any  `json:"motions"`
}

// Encode wraps an outbound payload in an envelope. A nil payload is omitted.
func Encode(typ string, payload any) ([]byte, error) {
	env := Envelope{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", typ, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}
