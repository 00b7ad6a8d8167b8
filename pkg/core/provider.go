package core

import (
	"context"

	"github.com/vango-go/avatar-live/pkg/core/types"
)

// Provider is the interface that all LLM backends implement.
type Provider interface {
	// Name returns the backend identifier (e.g., "gemini", "openrouter").
	Name() string

	// StreamChat starts a streaming completion over the full history.
	StreamChat(ctx context.Context, messages []types.Message) (TextStream, error)
}

// TextStream is an iterator over generated text deltas.
type TextStream interface {
	// Next returns the next delta. Returns "", io.EOF when done.
	Next() (string, error)

	// Close releases resources. Safe to call before the stream is drained.
	Close() error
}
