// Package tts provides text-to-speech functionality.
package tts

import "context"

// Provider is the interface for text-to-speech services. One sentence is
// synthesized per call. Implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to a complete audio clip.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)
}

// SynthesizeOptions configures synthesis.
type SynthesizeOptions struct {
	Voice      string  // Voice identifier
	Speed      float64 // Speed multiplier, 0 for the engine default
	Language   string  // Language code
	Format     string  // Output format: "wav", "mp3", or "pcm"
	SampleRate int     // Output sample rate
}

// Synthesis is the result of synthesis.
type Synthesis struct {
	Audio  []byte // Audio data; empty when there was nothing to say
	Format string // Audio format
}

func getFormat(format string) string {
	switch format {
	case "mp3", "pcm", "raw", "wav":
		return format
	default:
		return "wav"
	}
}
