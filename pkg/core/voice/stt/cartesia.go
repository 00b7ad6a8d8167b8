package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vango-go/avatar-live/internal/retry"
	"github.com/vango-go/avatar-live/pkg/core"
	"github.com/vango-go/avatar-live/pkg/core/audio"
)

const (
	cartesiaBaseURL = "https://api.cartesia.ai"
	cartesiaVersion = "2025-04-16"
	cartesiaModel   = "ink-whisper"
)

// CartesiaProvider transcribes chunks through Cartesia's batch STT endpoint.
type CartesiaProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewCartesia creates a new Cartesia STT provider.
func NewCartesia(apiKey string) *CartesiaProvider {
	return NewCartesiaWithClient(apiKey, &http.Client{})
}

// NewCartesiaWithClient creates a new Cartesia STT provider with a custom HTTP client.
func NewCartesiaWithClient(apiKey string, client *http.Client) *CartesiaProvider {
	return &CartesiaProvider{
		apiKey:     apiKey,
		baseURL:    cartesiaBaseURL,
		httpClient: client,
	}
}

// WithBaseURL points the provider at another host (tests, proxies).
func (c *CartesiaProvider) WithBaseURL(base string) *CartesiaProvider {
	c.baseURL = base
	return c
}

// Name returns the provider identifier.
func (c *CartesiaProvider) Name() string {
	return "cartesia"
}

// Transcribe uploads the chunk as a WAV file.
func (c *CartesiaProvider) Transcribe(ctx context.Context, samples audio.Samples, opts TranscribeOptions) (*Transcript, error) {
	if len(samples) == 0 {
		return &Transcript{}, nil
	}
	sampleRate := opts.SampleRate
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	wav := audio.EncodeWAV(samples, sampleRate)

	var out *Transcript
	err := retry.Do(ctx, retry.DefaultPolicy, func() error {
		t, err := c.post(ctx, wav, sampleRate, opts)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CartesiaProvider) post(ctx context.Context, wav []byte, sampleRate int, opts TranscribeOptions) (*Transcript, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = cartesiaModel
	}
	if err := mw.WriteField("model", model); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	if opts.Language != "" {
		if err := mw.WriteField("language", opts.Language); err != nil {
			return nil, fmt.Errorf("write language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/stt")
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("encoding", "pcm_s16le")
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Cartesia-Version", cartesiaVersion)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cartesia request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, core.NewHTTPError(c.Name(), resp.StatusCode, string(body))
	}

	var cr cartesiaTranscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return cr.transcript(), nil
}

type cartesiaTranscriptionResponse struct {
	Text     string   `json:"text"`
	Language *string  `json:"language,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
}

func (r cartesiaTranscriptionResponse) transcript() *Transcript {
	t := &Transcript{Text: r.Text}
	if r.Language != nil {
		t.Language = *r.Language
	}
	if r.Duration != nil {
		t.Duration = *r.Duration
	}
	return t
}
