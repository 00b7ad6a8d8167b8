package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var gatewayEnvKeys = []string{
	"AVATAR_CONFIG_FILE",
	"AVATAR_ADDR",
	"AVATAR_ALLOWED_ORIGINS",
	"AVATAR_CHARACTERS_DIR",
	"AVATAR_MODEL_DICT_PATH",
	"AVATAR_LIVE2D_MODELS_DIR",
	"AVATAR_LLM_ENGINE",
	"AVATAR_LLM_MODEL",
	"AVATAR_LLM_TEMPERATURE",
	"AVATAR_OPENROUTER_API_KEY",
	"AVATAR_GEMINI_API_KEY",
	"AVATAR_ASR_ENGINE",
	"AVATAR_ASR_MODEL",
	"AVATAR_ASR_LANGUAGE",
	"AVATAR_CARTESIA_API_KEY",
	"AVATAR_WHISPER_API_KEY",
	"AVATAR_WHISPER_BASE_URL",
	"AVATAR_ELEVENLABS_API_KEY",
	"AVATAR_AUDIO_PROCESSING",
	"AVATAR_NOISE_REDUCTION",
	"AVATAR_LOUDNESS_NORMALIZATION",
	"AVATAR_SAMPLE_RATE",
	"AVATAR_MAX_AUDIO_CHUNKS_PER_SECOND",
	"AVATAR_MAX_AUDIO_BYTES_PER_SECOND",
	"AVATAR_AUDIO_BURST_SECONDS",
	"AVATAR_WS_PING_INTERVAL",
	"AVATAR_WS_WRITE_TIMEOUT",
	"AVATAR_WS_READ_TIMEOUT",
	"AVATAR_MAX_MESSAGE_BYTES",
	"AVATAR_OUTBOUND_QUEUE",
	"AVATAR_TURN_TIMEOUT",
	"AVATAR_SYNTH_TIMEOUT",
	"AVATAR_TRANSCRIBE_TIMEOUT",
	"AVATAR_READ_HEADER_TIMEOUT",
	"AVATAR_SHUTDOWN_GRACE_PERIOD",
	"AVATAR_LOG_LEVEL",
	"AVATAR_LOG_FORMAT",
	"AVATAR_METRICS_ENABLED",
}

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, key := range gatewayEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearGatewayEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" || !cfg.AllowsAnyOrigin() {
		t.Fatalf("AllowedOrigins = %v, want [*]", cfg.AllowedOrigins)
	}
	if cfg.CharactersDir != "characters" {
		t.Fatalf("CharactersDir = %q, want characters", cfg.CharactersDir)
	}
	if cfg.ModelDictPath != "model_dict.json" {
		t.Fatalf("ModelDictPath = %q, want model_dict.json", cfg.ModelDictPath)
	}
	if cfg.LLMEngine != "dummy" || cfg.ASREngine != "dummy" {
		t.Fatalf("engines = %q/%q, want dummy/dummy", cfg.LLMEngine, cfg.ASREngine)
	}
	if !cfg.AudioProcessing || !cfg.NoiseReduction || !cfg.LoudnessNormalization {
		t.Fatalf("audio processing toggles = %v/%v/%v, want all true", cfg.AudioProcessing, cfg.NoiseReduction, cfg.LoudnessNormalization)
	}
	if cfg.SampleRate != 16000 {
		t.Fatalf("SampleRate = %d, want 16000", cfg.SampleRate)
	}
	if cfg.WSPingInterval != 20*time.Second {
		t.Fatalf("WSPingInterval = %v, want 20s", cfg.WSPingInterval)
	}
	if cfg.WSWriteTimeout != 5*time.Second {
		t.Fatalf("WSWriteTimeout = %v, want 5s", cfg.WSWriteTimeout)
	}
	if cfg.WSReadTimeout != 0 {
		t.Fatalf("WSReadTimeout = %v, want 0", cfg.WSReadTimeout)
	}
	if cfg.MaxMessageBytes != 1<<20 {
		t.Fatalf("MaxMessageBytes = %d, want %d", cfg.MaxMessageBytes, int64(1<<20))
	}
	if cfg.OutboundQueueSize != 64 {
		t.Fatalf("OutboundQueueSize = %d, want 64", cfg.OutboundQueueSize)
	}
	if cfg.TurnTimeout != 2*time.Minute {
		t.Fatalf("TurnTimeout = %v, want 2m", cfg.TurnTimeout)
	}
	if cfg.ShutdownGracePeriod != 30*time.Second {
		t.Fatalf("ShutdownGracePeriod = %v, want 30s", cfg.ShutdownGracePeriod)
	}
	if cfg.LogLevel != slog.LevelInfo || cfg.LogFormat != "text" {
		t.Fatalf("log = %v/%q, want INFO/text", cfg.LogLevel, cfg.LogFormat)
	}
	if !cfg.MetricsEnabled {
		t.Fatalf("MetricsEnabled = false, want true")
	}
}

func TestLoadFromEnv_EnvOverrides(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("AVATAR_ADDR", ":9090")
	t.Setenv("AVATAR_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("AVATAR_LLM_ENGINE", "OpenRouter")
	t.Setenv("AVATAR_OPENROUTER_API_KEY", "sk-or-test")
	t.Setenv("AVATAR_NOISE_REDUCTION", "false")
	t.Setenv("AVATAR_WS_PING_INTERVAL", "7s")
	t.Setenv("AVATAR_OUTBOUND_QUEUE", "8")
	t.Setenv("AVATAR_LOG_LEVEL", "debug")
	t.Setenv("AVATAR_LOG_FORMAT", "json")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("Addr = %q, want :9090", cfg.Addr)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" || cfg.AllowsAnyOrigin() {
		t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.LLMEngine != "openrouter" || cfg.OpenRouterAPIKey != "sk-or-test" {
		t.Fatalf("LLM = %q/%q", cfg.LLMEngine, cfg.OpenRouterAPIKey)
	}
	if cfg.NoiseReduction {
		t.Fatalf("NoiseReduction = true, want false")
	}
	if cfg.WSPingInterval != 7*time.Second {
		t.Fatalf("WSPingInterval = %v, want 7s", cfg.WSPingInterval)
	}
	if cfg.OutboundQueueSize != 8 {
		t.Fatalf("OutboundQueueSize = %d, want 8", cfg.OutboundQueueSize)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "json" {
		t.Fatalf("log = %v/%q, want DEBUG/json", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadFromEnv_ConfigFile(t *testing.T) {
	clearGatewayEnv(t)
	path := filepath.Join(t.TempDir(), "avatar.yaml")
	body := "addr: \":7070\"\ncharacters_dir: /srv/characters\nsample_rate: 24000\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("AVATAR_CONFIG_FILE", path)
	t.Setenv("AVATAR_SAMPLE_RATE", "8000")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.Addr != ":7070" {
		t.Fatalf("Addr = %q, want :7070", cfg.Addr)
	}
	if cfg.CharactersDir != "/srv/characters" {
		t.Fatalf("CharactersDir = %q", cfg.CharactersDir)
	}
	if cfg.SampleRate != 8000 {
		t.Fatalf("SampleRate = %d, want env override 8000", cfg.SampleRate)
	}
}

func TestLoadFromEnv_MissingConfigFile(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("AVATAR_CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := LoadFromEnv(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadFromEnv_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad llm engine", map[string]string{"AVATAR_LLM_ENGINE": "gpt"}, "AVATAR_LLM_ENGINE"},
		{"bad asr engine", map[string]string{"AVATAR_ASR_ENGINE": "vosk"}, "AVATAR_ASR_ENGINE"},
		{"openrouter without key", map[string]string{"AVATAR_LLM_ENGINE": "openrouter"}, "AVATAR_OPENROUTER_API_KEY"},
		{"gemini without key", map[string]string{"AVATAR_LLM_ENGINE": "gemini"}, "AVATAR_GEMINI_API_KEY"},
		{"cartesia without key", map[string]string{"AVATAR_ASR_ENGINE": "cartesia"}, "AVATAR_CARTESIA_API_KEY"},
		{"zero sample rate", map[string]string{"AVATAR_SAMPLE_RATE": "0"}, "AVATAR_SAMPLE_RATE"},
		{"negative chunk limit", map[string]string{"AVATAR_MAX_AUDIO_CHUNKS_PER_SECOND": "-1"}, "AVATAR_MAX_AUDIO_CHUNKS_PER_SECOND"},
		{"zero burst", map[string]string{"AVATAR_AUDIO_BURST_SECONDS": "0"}, "AVATAR_AUDIO_BURST_SECONDS"},
		{"zero queue", map[string]string{"AVATAR_OUTBOUND_QUEUE": "0"}, "AVATAR_OUTBOUND_QUEUE"},
		{"negative read timeout", map[string]string{"AVATAR_WS_READ_TIMEOUT": "-1s"}, "AVATAR_WS_READ_TIMEOUT"},
		{"bad log level", map[string]string{"AVATAR_LOG_LEVEL": "loud"}, "AVATAR_LOG_LEVEL"},
		{"bad log format", map[string]string{"AVATAR_LOG_FORMAT": "xml"}, "AVATAR_LOG_FORMAT"},
		{"temperature out of range", map[string]string{"AVATAR_LLM_TEMPERATURE": "3"}, "AVATAR_LLM_TEMPERATURE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearGatewayEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			if err == nil {
				t.Fatalf("LoadFromEnv() error = nil, want %s", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %q, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromEnv_AudioLimits(t *testing.T) {
	clearGatewayEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.MaxAudioChunksPerSecond != 50 || cfg.MaxAudioBytesPerSecond != 128*1024 || cfg.AudioBurstSeconds != 2 {
		t.Fatalf("audio limits = %d/%d/%d", cfg.MaxAudioChunksPerSecond, cfg.MaxAudioBytesPerSecond, cfg.AudioBurstSeconds)
	}

	t.Setenv("AVATAR_MAX_AUDIO_CHUNKS_PER_SECOND", "0")
	t.Setenv("AVATAR_MAX_AUDIO_BYTES_PER_SECOND", "0")
	t.Setenv("AVATAR_AUDIO_BURST_SECONDS", "0")
	cfg, err = LoadFromEnv()
	if err != nil {
		t.Fatalf("disabled limits: LoadFromEnv() error = %v", err)
	}
	if cfg.MaxAudioChunksPerSecond != 0 || cfg.MaxAudioBytesPerSecond != 0 {
		t.Fatalf("audio limits = %d/%d, want disabled", cfg.MaxAudioChunksPerSecond, cfg.MaxAudioBytesPerSecond)
	}
}
