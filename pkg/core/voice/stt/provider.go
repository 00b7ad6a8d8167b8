// Package stt provides speech-to-text functionality.
package stt

import (
	"context"

	"github.com/vango-go/avatar-live/pkg/core/audio"
)

// Provider is the interface for speech-to-text services. Each call is
// independent; implementations keep no per-utterance state and must be safe
// for concurrent use by many sessions.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Transcribe converts one chunk of audio to text.
	Transcribe(ctx context.Context, samples audio.Samples, opts TranscribeOptions) (*Transcript, error)
}

// TranscribeOptions configures transcription.
type TranscribeOptions struct {
	Model      string // Provider-specific model
	Language   string // ISO language code; empty lets the engine detect it
	SampleRate int    // Sample rate of the samples in Hz
}

// Transcript is the result of transcription.
type Transcript struct {
	Text     string  // Full transcribed text
	Language string  // Detected or specified language
	Duration float64 // Audio duration in seconds
}
