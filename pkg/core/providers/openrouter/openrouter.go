// Package openrouter implements the OpenRouter chat backend.
// OpenRouter is an OpenAI-compatible API that routes across many model providers.
package openrouter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vango-go/avatar-live/internal/retry"
	"github.com/vango-go/avatar-live/pkg/core"
	"github.com/vango-go/avatar-live/pkg/core/types"
)

const (
	// DefaultBaseURL is the OpenRouter API endpoint.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel is used when no model is configured.
	DefaultModel = "meta-llama/llama-3.3-70b-instruct"
)

// Provider streams chat completions from OpenRouter.
type Provider struct {
	apiKey      string
	baseURL     string
	model       string
	httpClient  *http.Client
	siteURL     string
	siteName    string
	temperature float32
	client      *openai.Client
}

var _ core.Provider = (*Provider)(nil)

// New creates a new OpenRouter provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(p.baseURL, "/")
	cfg.HTTPClient = &http.Client{
		Timeout:   p.httpClient.Timeout,
		Transport: &attributionTransport{base: p.httpClient.Transport, siteURL: p.siteURL, siteName: p.siteName},
	}
	p.client = openai.NewClientWithConfig(cfg)
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "openrouter"
}

func (p *Provider) StreamChat(ctx context.Context, messages []types.Message) (core.TextStream, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    toChatMessages(messages),
		Temperature: p.temperature,
		Stream:      true,
	}

	var s *openai.ChatCompletionStream
	err := retry.Do(ctx, retry.DefaultPolicy, func() error {
		var err error
		s, err = p.client.CreateChatCompletionStream(ctx, req)
		return classify(err)
	})
	if err != nil {
		return nil, fmt.Errorf("openrouter stream: %w", err)
	}
	return &stream{inner: s}, nil
}

func toChatMessages(messages []types.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case types.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case types.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

// classify turns go-openai API errors into *core.Error so retry can tell
// transient failures from permanent ones.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return core.NewHTTPError("openrouter", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return core.NewHTTPError("openrouter", reqErr.HTTPStatusCode, reqErr.Error())
	}
	return err
}

type stream struct {
	inner *openai.ChatCompletionStream
}

func (s *stream) Next() (string, error) {
	for {
		resp, err := s.inner.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("openrouter stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if text := resp.Choices[0].Delta.Content; text != "" {
			return text, nil
		}
	}
}

func (s *stream) Close() error {
	return s.inner.Close()
}

type attributionTransport struct {
	base     http.RoundTripper
	siteURL  string
	siteName string
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.siteURL == "" && t.siteName == "" {
		return base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	if t.siteURL != "" {
		req.Header.Set("HTTP-Referer", t.siteURL)
	}
	if t.siteName != "" {
		req.Header.Set("X-Title", t.siteName)
	}
	return base.RoundTrip(req)
}
