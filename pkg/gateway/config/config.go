package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "AVATAR"

type Config struct {
	Addr           string
	AllowedOrigins []string

	// Character and Live2D assets.
	CharactersDir   string
	ModelDictPath   string
	Live2DModelsDir string

	// Engines.
	LLMEngine        string
	LLMModel         string
	LLMTemperature   float64
	OpenRouterAPIKey string
	GeminiAPIKey     string
	ASREngine        string
	ASRModel         string
	ASRLanguage      string
	CartesiaAPIKey   string
	WhisperAPIKey    string
	WhisperBaseURL   string
	ElevenLabsAPIKey string

	// Audio intake.
	AudioProcessing       bool
	NoiseReduction        bool
	LoudnessNormalization bool
	SampleRate            int

	// Per-session user:audio_chunk token bucket; 0 disables a limit.
	MaxAudioChunksPerSecond int
	MaxAudioBytesPerSecond  int64
	AudioBurstSeconds       int

	// Live WebSocket mode (/ws/{client_id}).
	WSPingInterval    time.Duration
	WSWriteTimeout    time.Duration
	WSReadTimeout     time.Duration
	MaxMessageBytes   int64
	OutboundQueueSize int

	TurnTimeout       time.Duration
	SynthTimeout      time.Duration
	TranscribeTimeout time.Duration

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration

	LogLevel       slog.Level
	LogFormat      string
	MetricsEnabled bool
}

func defaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("allowed_origins", "*")
	v.SetDefault("characters_dir", "characters")
	v.SetDefault("model_dict_path", "model_dict.json")
	v.SetDefault("live2d_models_dir", "live2d-models")
	v.SetDefault("llm_engine", "dummy")
	v.SetDefault("llm_model", "")
	v.SetDefault("llm_temperature", 0.7)
	v.SetDefault("openrouter_api_key", "")
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("asr_engine", "dummy")
	v.SetDefault("asr_model", "")
	v.SetDefault("asr_language", "")
	v.SetDefault("cartesia_api_key", "")
	v.SetDefault("whisper_api_key", "")
	v.SetDefault("whisper_base_url", "")
	v.SetDefault("elevenlabs_api_key", "")
	v.SetDefault("audio_processing", true)
	v.SetDefault("noise_reduction", true)
	v.SetDefault("loudness_normalization", true)
	v.SetDefault("sample_rate", 16000)
	v.SetDefault("max_audio_chunks_per_second", 50)
	v.SetDefault("max_audio_bytes_per_second", 128*1024)
	v.SetDefault("audio_burst_seconds", 2)
	v.SetDefault("ws_ping_interval", 20*time.Second)
	v.SetDefault("ws_write_timeout", 5*time.Second)
	v.SetDefault("ws_read_timeout", 0)
	v.SetDefault("max_message_bytes", 1<<20) // 1 MiB
	v.SetDefault("outbound_queue", 64)
	v.SetDefault("turn_timeout", 2*time.Minute)
	v.SetDefault("synth_timeout", 30*time.Second)
	v.SetDefault("transcribe_timeout", 15*time.Second)
	v.SetDefault("read_header_timeout", 10*time.Second)
	v.SetDefault("shutdown_grace_period", 30*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("metrics_enabled", true)
}

// LoadFromEnv reads AVATAR_* environment variables, layered over an optional
// YAML file named by AVATAR_CONFIG_FILE.
func LoadFromEnv() (Config, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString("config_file")); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Addr:                  strings.TrimSpace(v.GetString("addr")),
		AllowedOrigins:        splitCSV(v.GetString("allowed_origins")),
		CharactersDir:         strings.TrimSpace(v.GetString("characters_dir")),
		ModelDictPath:         strings.TrimSpace(v.GetString("model_dict_path")),
		Live2DModelsDir:       strings.TrimSpace(v.GetString("live2d_models_dir")),
		LLMEngine:             strings.ToLower(strings.TrimSpace(v.GetString("llm_engine"))),
		LLMModel:              strings.TrimSpace(v.GetString("llm_model")),
		LLMTemperature:        v.GetFloat64("llm_temperature"),
		OpenRouterAPIKey:      strings.TrimSpace(v.GetString("openrouter_api_key")),
		GeminiAPIKey:          strings.TrimSpace(v.GetString("gemini_api_key")),
		ASREngine:             strings.ToLower(strings.TrimSpace(v.GetString("asr_engine"))),
		ASRModel:              strings.TrimSpace(v.GetString("asr_model")),
		ASRLanguage:           strings.TrimSpace(v.GetString("asr_language")),
		CartesiaAPIKey:        strings.TrimSpace(v.GetString("cartesia_api_key")),
		WhisperAPIKey:         strings.TrimSpace(v.GetString("whisper_api_key")),
		WhisperBaseURL:        strings.TrimSpace(v.GetString("whisper_base_url")),
		ElevenLabsAPIKey:      strings.TrimSpace(v.GetString("elevenlabs_api_key")),
		AudioProcessing:       v.GetBool("audio_processing"),
		NoiseReduction:        v.GetBool("noise_reduction"),
		LoudnessNormalization: v.GetBool("loudness_normalization"),
		SampleRate:            v.GetInt("sample_rate"),
		WSPingInterval:        v.GetDuration("ws_ping_interval"),
		WSWriteTimeout:        v.GetDuration("ws_write_timeout"),
		WSReadTimeout:         v.GetDuration("ws_read_timeout"),
		MaxMessageBytes:       v.GetInt64("max_message_bytes"),
		OutboundQueueSize:     v.GetInt("outbound_queue"),
		TurnTimeout:           v.GetDuration("turn_timeout"),
		SynthTimeout:          v.GetDuration("synth_timeout"),
		TranscribeTimeout:     v.GetDuration("transcribe_timeout"),
		ReadHeaderTimeout:     v.GetDuration("read_header_timeout"),
		ShutdownGracePeriod:   v.GetDuration("shutdown_grace_period"),

		MaxAudioChunksPerSecond: v.GetInt("max_audio_chunks_per_second"),
		MaxAudioBytesPerSecond:  v.GetInt64("max_audio_bytes_per_second"),
		AudioBurstSeconds:       v.GetInt("audio_burst_seconds"),

		LogFormat:             strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
		MetricsEnabled:        v.GetBool("metrics_enabled"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(strings.TrimSpace(v.GetString("log_level")))); err != nil {
		return Config{}, fmt.Errorf("AVATAR_LOG_LEVEL must be one of debug|info|warn|error")
	}

	if cfg.Addr == "" {
		return Config{}, fmt.Errorf("AVATAR_ADDR must not be empty")
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("AVATAR_LOG_FORMAT must be one of text|json")
	}
	switch cfg.LLMEngine {
	case "dummy", "gemini", "openrouter":
	default:
		return Config{}, fmt.Errorf("AVATAR_LLM_ENGINE must be one of dummy|gemini|openrouter")
	}
	switch cfg.ASREngine {
	case "dummy", "cartesia", "whisper":
	default:
		return Config{}, fmt.Errorf("AVATAR_ASR_ENGINE must be one of dummy|cartesia|whisper")
	}
	if cfg.LLMTemperature < 0 || cfg.LLMTemperature > 2 {
		return Config{}, fmt.Errorf("AVATAR_LLM_TEMPERATURE must be within [0, 2]")
	}
	if cfg.SampleRate <= 0 {
		return Config{}, fmt.Errorf("AVATAR_SAMPLE_RATE must be > 0")
	}
	if cfg.MaxAudioChunksPerSecond < 0 {
		return Config{}, fmt.Errorf("AVATAR_MAX_AUDIO_CHUNKS_PER_SECOND must be >= 0")
	}
	if cfg.MaxAudioBytesPerSecond < 0 {
		return Config{}, fmt.Errorf("AVATAR_MAX_AUDIO_BYTES_PER_SECOND must be >= 0")
	}
	if (cfg.MaxAudioChunksPerSecond > 0 || cfg.MaxAudioBytesPerSecond > 0) && cfg.AudioBurstSeconds < 1 {
		return Config{}, fmt.Errorf("AVATAR_AUDIO_BURST_SECONDS must be >= 1 when audio limits are enabled")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("AVATAR_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("AVATAR_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSReadTimeout < 0 {
		return Config{}, fmt.Errorf("AVATAR_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.MaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("AVATAR_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.OutboundQueueSize <= 0 {
		return Config{}, fmt.Errorf("AVATAR_OUTBOUND_QUEUE must be > 0")
	}
	if cfg.TurnTimeout < 0 {
		return Config{}, fmt.Errorf("AVATAR_TURN_TIMEOUT must be >= 0")
	}
	if cfg.SynthTimeout < 0 {
		return Config{}, fmt.Errorf("AVATAR_SYNTH_TIMEOUT must be >= 0")
	}
	if cfg.TranscribeTimeout < 0 {
		return Config{}, fmt.Errorf("AVATAR_TRANSCRIBE_TIMEOUT must be >= 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("AVATAR_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("AVATAR_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	if cfg.LLMEngine == "openrouter" && cfg.OpenRouterAPIKey == "" {
		return Config{}, fmt.Errorf("AVATAR_OPENROUTER_API_KEY must be set when AVATAR_LLM_ENGINE=openrouter")
	}
	if cfg.LLMEngine == "gemini" && cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("AVATAR_GEMINI_API_KEY must be set when AVATAR_LLM_ENGINE=gemini")
	}
	if cfg.ASREngine == "cartesia" && cfg.CartesiaAPIKey == "" {
		return Config{}, fmt.Errorf("AVATAR_CARTESIA_API_KEY must be set when AVATAR_ASR_ENGINE=cartesia")
	}

	return cfg, nil
}

// AllowsAnyOrigin reports whether CORS is open to every origin.
func (c Config) AllowsAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
