// Package dummy is a canned chat backend for running the server without
// model credentials.
package dummy

import (
	"context"
	"io"
	"time"

	"github.com/vango-go/avatar-live/pkg/core"
	"github.com/vango-go/avatar-live/pkg/core/types"
)

// Response is streamed one rune at a time.
const Response = "This is a dummy response from the LLM. It is not real."

type Provider struct {
	text  string
	delay time.Duration
}

var _ core.Provider = (*Provider)(nil)

// New returns a provider that streams Response. delay is slept between
// runes to mimic token pacing.
func New(delay time.Duration) *Provider {
	return &Provider{text: Response, delay: delay}
}

func (p *Provider) Name() string { return "dummy" }

func (p *Provider) StreamChat(ctx context.Context, _ []types.Message) (core.TextStream, error) {
	return &stream{ctx: ctx, runes: []rune(p.text), delay: p.delay}, nil
}

type stream struct {
	ctx   context.Context
	runes []rune
	pos   int
	delay time.Duration
}

func (s *stream) Next() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if s.pos >= len(s.runes) {
		return "", io.EOF
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-s.ctx.Done():
			return "", s.ctx.Err()
		}
	}
	r := s.runes[s.pos]
	s.pos++
	return string(r), nil
}

func (s *stream) Close() error { return nil }
