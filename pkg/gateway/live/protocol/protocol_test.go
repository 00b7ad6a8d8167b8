package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeClientMessage_SessionStart(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"session:start","payload":{"character_id":" mao "}}`))
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	start, ok := msg.(ClientSessionStart)
	if !ok {
		t.Fatalf("decoded type = %T, want ClientSessionStart", msg)
	}
	if start.CharacterID != "mao" {
		t.Fatalf("character_id=%q", start.CharacterID)
	}
}

func TestDecodeClientMessage_PayloadlessTypes(t *testing.T) {
	for _, raw := range []string{
		`{"type":"user:interrupt"}`,
		`{"type":"user:interrupt","payload":null}`,
		`{"type":"user:audio_end","payload":{}}`,
	} {
		if _, err := DecodeClientMessage([]byte(raw)); err != nil {
			t.Fatalf("DecodeClientMessage(%s) error = %v", raw, err)
		}
	}
}

func TestDecodeClientMessage_AudioChunk(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"user:audio_chunk","payload":{"data":"AAAA"}}`))
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	if chunk := msg.(ClientAudioChunk); chunk.Data != "AAAA" {
		t.Fatalf("data=%q", chunk.Data)
	}
}

func TestDecodeClientMessage_Errors(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		code  string
		param string
	}{
		{"not json", `{`, "bad_request", ""},
		{"missing type", `{"payload":{}}`, "bad_request", "type"},
		{"unknown type", `{"type":"user:dance"}`, "unsupported", "type"},
		{"start without character", `{"type":"session:start","payload":{}}`, "bad_request", "character_id"},
		{"start with wrong payload", `{"type":"session:start","payload":"mao"}`, "bad_request", "payload"},
		{"blank text", `{"type":"user:text","payload":{"text":"  "}}`, "bad_request", "text"},
		{"chunk without data", `{"type":"user:audio_chunk","payload":{}}`, "bad_request", "data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeClientMessage([]byte(tt.raw))
			if err == nil {
				t.Fatalf("expected error")
			}
			decErr, ok := err.(*DecodeError)
			if !ok {
				t.Fatalf("err type = %T", err)
			}
			if decErr.Code != tt.code || decErr.Param != tt.param {
				t.Fatalf("code=%q param=%q, want %q/%q", decErr.Code, decErr.Param, tt.code, tt.param)
			}
		})
	}
}

func TestEncode_SpeakEnvelope(t *testing.T) {
	blob, err := Encode(TypeAvatarSpeak, ServerAvatarSpeak{Text: "Hi.", Expressions: []any{0}, Motions: []any{}})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var env struct {
		Type    string            `json:"type"`
		Payload ServerAvatarSpeak `json:"payload"`
	}
	if err := json.Unmarshal(blob, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != "avatar:speak" || env.Payload.Text != "Hi." || len(env.Payload.Expressions) != 1 {
		t.Fatalf("decoded=%+v", env)
	}
	if !strings.Contains(string(blob), `"motions":[]`) {
		t.Fatalf("motions should encode as empty array: %s", blob)
	}
}

func TestEncode_IdleHasNoPayload(t *testing.T) {
	blob, err := Encode(TypeAvatarIdle, nil)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if string(blob) != `{"type":"avatar:idle"}` {
		t.Fatalf("blob=%s", blob)
	}
}
