// Package gemini implements the Google Gemini chat backend on the Gen AI SDK.
package gemini

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/vango-go/avatar-live/pkg/core"
	"github.com/vango-go/avatar-live/pkg/core/types"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Provider streams chat completions from Gemini.
type Provider struct {
	client      *genai.Client
	model       string
	temperature *float32
}

var _ core.Provider = (*Provider)(nil)

// Option configures the Gemini provider.
type Option func(*Provider)

// WithModel overrides DefaultModel.
func WithModel(model string) Option {
	return func(p *Provider) {
		if strings.TrimSpace(model) != "" {
			p.model = model
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(p *Provider) {
		p.temperature = &t
	}
}

// New creates a new Gemini provider.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	p := &Provider{client: client, model: DefaultModel}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "gemini"
}

// StreamChat sends the history with system messages lifted into the system
// instruction.
func (p *Provider) StreamChat(ctx context.Context, messages []types.Message) (core.TextStream, error) {
	system, turns := types.SplitSystem(messages)
	contents := toContents(turns)
	if len(contents) == 0 {
		return nil, fmt.Errorf("gemini: history has no user or assistant turns")
	}

	streamCtx, cancel := context.WithCancel(ctx)
	seq := p.client.Models.GenerateContentStream(streamCtx, p.model, contents, p.config(system))
	next, stop := iter.Pull2(seq)
	return &stream{next: next, stop: stop, cancel: cancel}, nil
}

func (p *Provider) config(system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:    p.temperature,
		SafetySettings: relaxedSafety(),
	}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	return cfg
}

// Characters role-play; the default filters cut off harmless fiction.
func relaxedSafety() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	out := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		out = append(out, &genai.SafetySetting{Category: c, Threshold: genai.HarmBlockThresholdBlockNone})
	}
	return out
}

func toContents(messages []types.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		role := "user"
		if m.Role == types.RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
	}
	return out
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

type stream struct {
	next   func() (*genai.GenerateContentResponse, error, bool)
	stop   func()
	cancel context.CancelFunc
}

func (s *stream) Next() (string, error) {
	for {
		resp, err, ok := s.next()
		if !ok {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("gemini stream: %w", err)
		}
		if text := responseText(resp); text != "" {
			return text, nil
		}
	}
}

func (s *stream) Close() error {
	s.cancel()
	s.stop()
	return nil
}
