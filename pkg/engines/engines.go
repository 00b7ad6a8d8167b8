// Package engines resolves the speech and language backends once at startup
// and hands read-only handles to sessions.
package engines

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/vango-go/avatar-live/pkg/character"
	"github.com/vango-go/avatar-live/pkg/core"
	"github.com/vango-go/avatar-live/pkg/core/providers/dummy"
	"github.com/vango-go/avatar-live/pkg/core/providers/gemini"
	"github.com/vango-go/avatar-live/pkg/core/providers/openrouter"
	"github.com/vango-go/avatar-live/pkg/core/voice/stt"
	"github.com/vango-go/avatar-live/pkg/core/voice/tts"
	"github.com/vango-go/avatar-live/pkg/gateway/config"
)

var (
	ErrNoSynthesizer      = errors.New("no synthesizer configured for character")
	ErrEngineUnavailable  = errors.New("engine unavailable")
	errMissingCredentials = errors.New("missing credentials")
)

// Set is what one session needs. Every field is shared and safe for
// concurrent use.
type Set struct {
	STT        stt.Provider
	LLM        core.Provider
	TTS        tts.Provider
	STTOptions stt.TranscribeOptions
	TTSOptions tts.SynthesizeOptions
}

// Registry is read-only after Build.
type Registry struct {
	STT        stt.Provider
	LLM        core.Provider
	TTS        map[string]tts.Provider
	STTOptions stt.TranscribeOptions

	voices map[string]tts.SynthesizeOptions
}

// Build constructs every engine named by cfg and the characters. Engines that
// fail to initialize are logged and left unset; Ready reports them.
func Build(ctx context.Context, cfg config.Config, chars *character.Registry, httpClient *http.Client, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	r := &Registry{
		TTS:    make(map[string]tts.Provider),
		voices: make(map[string]tts.SynthesizeOptions),
		STTOptions: stt.TranscribeOptions{
			Model:      cfg.ASRModel,
			Language:   cfg.ASRLanguage,
			SampleRate: cfg.SampleRate,
		},
	}

	if p, err := newSTT(cfg, httpClient); err != nil {
		logger.Error("asr engine unavailable", "engine", cfg.ASREngine, "error", err)
	} else {
		r.STT = p
		logger.Info("asr engine loaded", "engine", p.Name())
	}

	if p, err := newLLM(ctx, cfg, httpClient); err != nil {
		logger.Error("llm engine unavailable", "engine", cfg.LLMEngine, "error", err)
	} else {
		r.LLM = p
		logger.Info("llm engine loaded", "engine", p.Name())
	}

	for _, c := range chars.List() {
		if strings.TrimSpace(c.TTS.Name) == "" {
			logger.Warn("character has no tts engine", "character_id", c.ID)
			continue
		}
		p, err := newTTS(cfg, c.TTS, httpClient)
		if err != nil {
			logger.Error("tts engine unavailable", "character_id", c.ID, "engine", c.TTS.Name, "error", err)
			continue
		}
		r.TTS[c.ID] = p
		r.voices[c.ID] = tts.SynthesizeOptions{Voice: c.TTS.VoiceID(), Speed: c.TTS.Speed}
		logger.Info("tts engine loaded", "character_id", c.ID, "engine", p.Name())
	}
	return r
}

func newSTT(cfg config.Config, httpClient *http.Client) (stt.Provider, error) {
	switch cfg.ASREngine {
	case "", "dummy":
		return stt.NewDummy(), nil
	case "cartesia":
		if cfg.CartesiaAPIKey == "" {
			return nil, fmt.Errorf("cartesia: %w", errMissingCredentials)
		}
		return stt.NewCartesiaWithClient(cfg.CartesiaAPIKey, httpClient), nil
	case "whisper":
		return stt.NewWhisper(cfg.WhisperAPIKey, cfg.WhisperBaseURL, cfg.ASRModel), nil
	default:
		return nil, fmt.Errorf("unknown asr engine %q", cfg.ASREngine)
	}
}

func newLLM(ctx context.Context, cfg config.Config, httpClient *http.Client) (core.Provider, error) {
	switch cfg.LLMEngine {
	case "", "dummy":
		return dummy.New(20 * time.Millisecond), nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini: %w", errMissingCredentials)
		}
		return gemini.New(ctx, cfg.GeminiAPIKey,
			gemini.WithModel(cfg.LLMModel),
			gemini.WithTemperature(float32(cfg.LLMTemperature)),
		)
	case "openrouter":
		if cfg.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("openrouter: %w", errMissingCredentials)
		}
		return openrouter.New(cfg.OpenRouterAPIKey,
			openrouter.WithHTTPClient(httpClient),
			openrouter.WithModel(cfg.LLMModel),
			openrouter.WithTemperature(float32(cfg.LLMTemperature)),
			openrouter.WithSiteName("avatar-live"),
		), nil
	default:
		return nil, fmt.Errorf("unknown llm engine %q", cfg.LLMEngine)
	}
}

func newTTS(cfg config.Config, ec character.EngineConfig, httpClient *http.Client) (tts.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(ec.Name)) {
	case "dummy":
		return tts.NewDummy(), nil
	case "cartesia":
		key := firstNonEmpty(ec.APIKey, cfg.CartesiaAPIKey)
		if key == "" {
			return nil, fmt.Errorf("cartesia: %w", errMissingCredentials)
		}
		p := tts.NewCartesiaWithClient(key, httpClient).WithModel(ec.Model)
		if ec.BaseURL != "" {
			p = p.WithBaseURL(ec.BaseURL)
		}
		return p, nil
	case "chatterbox":
		if strings.TrimSpace(ec.BaseURL) == "" {
			return nil, fmt.Errorf("chatterbox: base_url is required")
		}
		return tts.NewChatterbox(ec.BaseURL, ec.APIKey, ec.VoiceID(), httpClient), nil
	case "elevenlabs":
		key := firstNonEmpty(ec.APIKey, cfg.ElevenLabsAPIKey)
		if key == "" {
			return nil, fmt.Errorf("elevenlabs: %w", errMissingCredentials)
		}
		p := tts.NewElevenLabs(key, ec.VoiceID())
		if ec.BaseURL != "" {
			p = p.WithWSBaseURL(ec.BaseURL)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown tts engine %q", ec.Name)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Synthesizer returns the character's TTS engine or ErrNoSynthesizer.
func (r *Registry) Synthesizer(characterID string) (tts.Provider, error) {
	if r != nil {
		if p, ok := r.TTS[characterID]; ok && p != nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoSynthesizer, characterID)
}

// HasSynthesizer reports whether the character can speak.
func (r *Registry) HasSynthesizer(characterID string) bool {
	_, err := r.Synthesizer(characterID)
	return err == nil
}

// Bind returns the engine set for one session. A character without a
// synthesizer gets the dummy engine and speaks with empty audio.
func (r *Registry) Bind(characterID string) (Set, error) {
	if r == nil || r.STT == nil {
		return Set{}, fmt.Errorf("%w: asr", ErrEngineUnavailable)
	}
	if r.LLM == nil {
		return Set{}, fmt.Errorf("%w: llm", ErrEngineUnavailable)
	}
	set := Set{STT: r.STT, LLM: r.LLM, STTOptions: r.STTOptions}
	if p, err := r.Synthesizer(characterID); err == nil {
		set.TTS = p
		set.TTSOptions = r.voices[characterID]
	} else {
		set.TTS = tts.NewDummy()
	}
	return set, nil
}

// Ready lists engines that failed to load; empty means ready.
func (r *Registry) Ready(chars *character.Registry) []string {
	var missing []string
	if r == nil || r.STT == nil {
		missing = append(missing, "asr")
	}
	if r == nil || r.LLM == nil {
		missing = append(missing, "llm")
	}
	for _, c := range chars.List() {
		if !r.HasSynthesizer(c.ID) {
			missing = append(missing, "tts:"+c.ID)
		}
	}
	sort.Strings(missing)
	return missing
}
