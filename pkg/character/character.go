// Package character loads the avatar personas a session can start with.
//
// A character is a YAML file under the characters directory (its file name
// without extension is the character ID) joined with the matching Live2D
// entry of model_dict.json. Everything here is read-only after Load.
package character

import (
	"sort"

	"github.com/vango-go/avatar-live/pkg/core/actions"
)

// EngineConfig selects and parameterizes a per-character engine.
type EngineConfig struct {
	Name    string         `yaml:"name" json:"name"`
	Voice   string         `yaml:"voice,omitempty" json:"voice,omitempty"`
	BaseURL string         `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKey  string         `yaml:"api_key,omitempty" json:"-"`
	Model   string         `yaml:"model,omitempty" json:"model,omitempty"`
	Speed   float64        `yaml:"speed,omitempty" json:"speed,omitempty"`
	Extra   map[string]any `yaml:",inline" json:"-"`
}

// VoiceID returns the configured voice, accepting the voice_id spelling.
func (e EngineConfig) VoiceID() string {
	if e.Voice != "" {
		return e.Voice
	}
	if v, ok := e.Extra["voice_id"].(string); ok {
		return v
	}
	return ""
}

// Character is an immutable persona.
type Character struct {
	ID              string
	Name            string
	Persona         string
	Live2DModelName string
	TTS             EngineConfig
	ExtraData       map[string]any
	Model           *Live2DModel

	extractor *actions.Extractor
}

// Info is the client-facing view sent in session:ready and /characters.
type Info struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Persona         string         `json:"llm_persona"`
	Live2DModelName string         `json:"live2d_model_name"`
	ExtraData       map[string]any `json:"extra_data,omitempty"`
}

func (c *Character) Info() Info {
	return Info{
		ID:              c.ID,
		Name:            c.Name,
		Persona:         c.Persona,
		Live2DModelName: c.Live2DModelName,
		ExtraData:       c.ExtraData,
	}
}

// Live2DModel is one model_dict.json entry. Map keys are lowercase; values
// are opaque payloads forwarded to the renderer.
type Live2DModel struct {
	Name        string
	Info        map[string]any
	Expressions map[string]any
	Motions     map[string]any
}

func (c *Character) ExpressionKeys() []string { return sortedKeys(c.Model.Expressions) }
func (c *Character) MotionKeys() []string     { return sortedKeys(c.Model.Motions) }

// Extract strips action markers from a model sentence.
func (c *Character) Extract(sentence string) actions.Result {
	if c.extractor == nil {
		return actions.Extract(sentence, c.ExpressionKeys(), c.MotionKeys())
	}
	return c.extractor.Extract(sentence)
}

// ResolveExpressions maps keys to their payloads, skipping unknown keys.
func (c *Character) ResolveExpressions(keys []string) []any {
	return resolve(c.Model.Expressions, keys)
}

// ResolveMotions maps keys to their payloads, skipping unknown keys.
func (c *Character) ResolveMotions(keys []string) []any {
	return resolve(c.Model.Motions, keys)
}

func resolve(m map[string]any, keys []string) []any {
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			out = append(out, v)
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
