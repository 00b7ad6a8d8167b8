package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vango-go/avatar-live/internal/retry"
	"github.com/vango-go/avatar-live/pkg/core"
)

// ChatterboxProvider talks to a self-hosted Chatterbox TTS server.
type ChatterboxProvider struct {
	baseURL    string
	apiKey     string
	voiceID    string
	httpClient *http.Client
}

func NewChatterbox(baseURL, apiKey, voiceID string, client *http.Client) *ChatterboxProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &ChatterboxProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		voiceID:    voiceID,
		httpClient: client,
	}
}

func (c *ChatterboxProvider) Name() string {
	return "chatterbox"
}

type chatterboxRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id,omitempty"`
}

func (c *ChatterboxProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	voice := opts.Voice
	if voice == "" {
		voice = c.voiceID
	}
	body, err := json.Marshal(chatterboxRequest{Text: text, VoiceID: voice})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var audio []byte
	err = retry.Do(ctx, retry.DefaultPolicy, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tts/generate", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("chatterbox request: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return core.NewHTTPError(c.Name(), resp.StatusCode, string(errBody))
		}
		audio, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Synthesis{Audio: audio, Format: "wav"}, nil
}
