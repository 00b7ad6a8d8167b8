package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vango-go/avatar-live/internal/retry"
	"github.com/vango-go/avatar-live/pkg/core"
)

const (
	cartesiaBaseURL = "https://api.cartesia.ai"
	cartesiaVersion = "2025-04-16"
)

// Default voice ID - characters should configure their own.
const defaultVoiceID = "a0e99841-438c-4a64-b679-ae501e7d6091"

// CartesiaProvider implements the TTS Provider interface using Cartesia's API.
type CartesiaProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewCartesia creates a new Cartesia TTS provider.
func NewCartesia(apiKey string) *CartesiaProvider {
	return NewCartesiaWithClient(apiKey, &http.Client{})
}

// NewCartesiaWithClient creates a new Cartesia TTS provider with a custom HTTP client.
func NewCartesiaWithClient(apiKey string, client *http.Client) *CartesiaProvider {
	return &CartesiaProvider{
		apiKey:     apiKey,
		baseURL:    cartesiaBaseURL,
		model:      "sonic-3",
		httpClient: client,
	}
}

func (c *CartesiaProvider) WithBaseURL(base string) *CartesiaProvider {
	c.baseURL = base
	return c
}

func (c *CartesiaProvider) WithModel(model string) *CartesiaProvider {
	if model != "" {
		c.model = model
	}
	return c
}

// Name returns the provider identifier.
func (c *CartesiaProvider) Name() string {
	return "cartesia"
}

// Synthesize converts text to audio using Cartesia's /tts/bytes endpoint.
func (c *CartesiaProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	voiceID := opts.Voice
	if voiceID == "" {
		voiceID = defaultVoiceID
	}
	reqBody := cartesiaTTSRequest{
		ModelID:      c.model,
		Transcript:   text,
		Voice:        cartesiaVoiceSpec{Mode: "id", ID: voiceID},
		OutputFormat: buildOutputFormat(opts),
	}
	if opts.Speed != 0 {
		reqBody.GenerationConfig = &cartesiaGenerationConfig{Speed: opts.Speed}
	}
	if opts.Language != "" {
		reqBody.Language = &opts.Language
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var out *Synthesis
	err = retry.Do(ctx, retry.DefaultPolicy, func() error {
		audio, err := c.post(ctx, body)
		if err != nil {
			return err
		}
		out = &Synthesis{Audio: audio, Format: getFormat(opts.Format)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CartesiaProvider) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tts/bytes", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Cartesia-Version", cartesiaVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cartesia request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return []byte{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, core.NewHTTPError(c.Name(), resp.StatusCode, string(errBody))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return audio, nil
}

type cartesiaTTSRequest struct {
	ModelID          string                    `json:"model_id"`
	Transcript       string                    `json:"transcript"`
	Voice            cartesiaVoiceSpec         `json:"voice"`
	OutputFormat     cartesiaOutputFormat      `json:"output_format"`
	Language         *string                   `json:"language,omitempty"`
	GenerationConfig *cartesiaGenerationConfig `json:"generation_config,omitempty"`
}

type cartesiaVoiceSpec struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	BitRate    int    `json:"bit_rate,omitempty"`
}

type cartesiaGenerationConfig struct {
	Speed float64 `json:"speed,omitempty"`
}

func buildOutputFormat(opts SynthesizeOptions) cartesiaOutputFormat {
	sampleRate := opts.SampleRate
	if sampleRate == 0 {
		sampleRate = 24000
	}
	switch opts.Format {
	case "mp3":
		return cartesiaOutputFormat{Container: "mp3", SampleRate: sampleRate, BitRate: 128000}
	case "pcm", "raw":
		return cartesiaOutputFormat{Container: "raw", Encoding: "pcm_s16le", SampleRate: sampleRate}
	default:
		return cartesiaOutputFormat{Container: "wav", Encoding: "pcm_s16le", SampleRate: sampleRate}
	}
}
