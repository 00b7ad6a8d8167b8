package stt

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vango-go/avatar-live/pkg/core/audio"
)

// WhisperProvider transcribes through any OpenAI-compatible
// /audio/transcriptions endpoint (OpenAI, Groq, a local faster-whisper
// server).
type WhisperProvider struct {
	client *openai.Client
	model  string
}

// NewWhisper creates a provider. An empty baseURL targets api.openai.com.
func NewWhisper(apiKey, baseURL, model string) *WhisperProvider {
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperProvider{client: openai.NewClientWithConfig(cfg), model: model}
}

func (w *WhisperProvider) Name() string {
	return "whisper"
}

func (w *WhisperProvider) Transcribe(ctx context.Context, samples audio.Samples, opts TranscribeOptions) (*Transcript, error) {
	if len(samples) == 0 {
		return &Transcript{}, nil
	}
	sampleRate := opts.SampleRate
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	model := opts.Model
	if model == "" {
		model = w.model
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: "chunk.wav",
		Reader:   bytes.NewReader(audio.EncodeWAV(samples, sampleRate)),
		Language: opts.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription: %w", err)
	}
	return &Transcript{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: resp.Duration,
	}, nil
}
