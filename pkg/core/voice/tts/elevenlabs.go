package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const elevenLabsDefaultWSBase = "wss://api.elevenlabs.io/v1/text-to-speech/{voice_id}/stream-input"

// ElevenLabsProvider synthesizes each sentence over a short-lived
// stream-input WebSocket.
type ElevenLabsProvider struct {
	apiKey    string
	voiceID   string
	wsBaseURL string
	dialer    *websocket.Dialer
}

func NewElevenLabs(apiKey, voiceID string) *ElevenLabsProvider {
	return &ElevenLabsProvider{
		apiKey:    apiKey,
		voiceID:   voiceID,
		wsBaseURL: elevenLabsDefaultWSBase,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (e *ElevenLabsProvider) WithWSBaseURL(base string) *ElevenLabsProvider {
	if strings.TrimSpace(base) != "" {
		e.wsBaseURL = base
	}
	return e
}

func (e *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

type elevenLabsMessage struct {
	Audio   string `json:"audio"`
	IsFinal *bool  `json:"isFinal"`
}

func (e *ElevenLabsProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	if strings.TrimSpace(e.apiKey) == "" {
		return nil, fmt.Errorf("elevenlabs api key is required")
	}
	voiceID := strings.TrimSpace(opts.Voice)
	if voiceID == "" {
		voiceID = e.voiceID
	}
	if voiceID == "" {
		return nil, fmt.Errorf("voice id is required")
	}
	wsURL, err := buildElevenLabsWSURL(e.wsBaseURL, voiceID)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("xi-api-key", e.apiKey)
	conn, _, err := e.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	text = strings.TrimSpace(text) + " "
	for _, msg := range []map[string]any{
		{"text": " "},
		{"text": text, "flush": true},
		{"text": ""},
	} {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			return nil, fmt.Errorf("elevenlabs write: %w", err)
		}
	}

	var out []byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			return nil, fmt.Errorf("elevenlabs read: %w", err)
		}
		var msg elevenLabsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err == nil {
				out = append(out, chunk...)
			}
		}
		if msg.IsFinal != nil && *msg.IsFinal {
			break
		}
	}
	return &Synthesis{Audio: out, Format: "pcm"}, nil
}

func buildElevenLabsWSURL(base, voiceID string) (string, error) {
	base = strings.ReplaceAll(base, "{voice_id}", url.PathEscape(voiceID))
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid elevenlabs ws url: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream-input"
	}
	q := u.Query()
	if q.Get("model_id") == "" {
		q.Set("model_id", "eleven_flash_v2_5")
	}
	if q.Get("output_format") == "" {
		q.Set("output_format", "pcm_24000")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
