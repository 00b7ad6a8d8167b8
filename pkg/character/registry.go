package character

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vango-go/avatar-live/pkg/core/actions"
)

var ErrUnknownCharacter = errors.New("unknown character")

// Registry holds every successfully loaded character.
type Registry struct {
	byID map[string]*Character
	ids  []string
}

type characterFile struct {
	Name            string         `yaml:"name"`
	Persona         string         `yaml:"llm_persona"`
	Live2DModelName string         `yaml:"live2d_model_name"`
	TTS             EngineConfig   `yaml:"tts_engine"`
	ExtraData       map[string]any `yaml:"extra_data"`
}

type modelEntry struct {
	Name       string         `json:"name"`
	EmotionMap map[string]any `json:"emotionMap"`
	MotionMap  map[string]any `json:"motionMap"`
}

// NewRegistry builds a registry from already-constructed characters.
func NewRegistry(chars ...*Character) *Registry {
	r := &Registry{byID: make(map[string]*Character, len(chars))}
	for _, c := range chars {
		if c.Model == nil {
			c.Model = &Live2DModel{}
		}
		c.extractor = actions.NewExtractor(c.ExpressionKeys(), c.MotionKeys())
		if _, dup := r.byID[c.ID]; !dup {
			r.ids = append(r.ids, c.ID)
		}
		r.byID[c.ID] = c
	}
	sort.Strings(r.ids)
	return r
}

// Load reads every *.yaml / *.yml file in dir. Files that fail to parse or
// reference an unknown Live2D model are logged and skipped.
func Load(dir, modelDictPath string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	models, err := loadModelDict(modelDictPath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("characters directory not found", "dir", dir)
			return NewRegistry(), nil
		}
		return nil, fmt.Errorf("read characters dir: %w", err)
	}

	var chars []*Character
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ext)
		c, err := loadCharacter(filepath.Join(dir, e.Name()), id, models)
		if err != nil {
			logger.Error("skipping character", "id", id, "error", err)
			continue
		}
		logger.Info("loaded character", "id", id, "name", c.Name)
		chars = append(chars, c)
	}
	return NewRegistry(chars...), nil
}

func loadCharacter(path, id string, models map[string]*Live2DModel) (*Character, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f characterFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if f.Name == "" {
		f.Name = "Unknown"
	}
	model, ok := models[f.Live2DModelName]
	if !ok {
		return nil, fmt.Errorf("live2d model %q not found in model dictionary", f.Live2DModelName)
	}
	return &Character{
		ID:              id,
		Name:            f.Name,
		Persona:         f.Persona,
		Live2DModelName: f.Live2DModelName,
		TTS:             f.TTS,
		ExtraData:       f.ExtraData,
		Model:           model,
	}, nil
}

func loadModelDict(path string) (map[string]*Live2DModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model dictionary: %w", err)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse model dictionary: %w", err)
	}
	out := make(map[string]*Live2DModel, len(entries))
	for _, e := range entries {
		var head modelEntry
		if err := json.Unmarshal(e, &head); err != nil {
			return nil, fmt.Errorf("parse model dictionary entry: %w", err)
		}
		var info map[string]any
		if err := json.Unmarshal(e, &info); err != nil {
			return nil, fmt.Errorf("parse model dictionary entry: %w", err)
		}
		out[head.Name] = &Live2DModel{
			Name:        head.Name,
			Info:        info,
			Expressions: lowerKeys(head.EmotionMap),
			Motions:     lowerKeys(head.MotionMap),
		}
	}
	return out, nil
}

func lowerKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

// Get returns the character or ErrUnknownCharacter.
func (r *Registry) Get(id string) (*Character, error) {
	if r != nil {
		if c, ok := r.byID[id]; ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCharacter, id)
}

// List returns characters ordered by ID.
func (r *Registry) List() []*Character {
	if r == nil {
		return nil
	}
	out := make([]*Character, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.byID[id])
	}
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ids)
}
