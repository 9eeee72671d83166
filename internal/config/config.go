package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the caption overlay.
type Config struct {
	Deepgram DeepgramConfig
	Audio    AudioConfig
	Rules    RulesConfig
	Caption  CaptionConfig
	LogLevel string
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

// CaptionConfig controls the word display and session keep-alive timing.
type CaptionConfig struct {
	WordHold     time.Duration
	RestartDelay time.Duration
	ChunkSize    int
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	rulesPath := strings.TrimSpace(os.Getenv("WORDLENS_RULES_FILE"))
	if rulesPath == "" {
		rulesPath = filepath.Join(home, ".config", "wordlens", "substitutions.rules")
	}

	cfg := Config{
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:    envOrDefault("WORDLENS_LANGUAGE", "en-US"),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", false),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("WORDLENS_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("WORDLENS_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("WORDLENS_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("WORDLENS_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("WORDLENS_CHANNELS", 1),
		},
		Rules: RulesConfig{
			Path:           rulesPath,
			IterationLimit: envOrDefaultInt("WORDLENS_RULE_ITERATION_LIMIT", 30),
		},
		Caption: CaptionConfig{
			WordHold:     envOrDefaultMillis("WORDLENS_WORD_HOLD_MS", 1000),
			RestartDelay: envOrDefaultMillis("WORDLENS_RESTART_DELAY_MS", 120),
			ChunkSize:    envOrDefaultInt("WORDLENS_AUDIO_CHUNK_SIZE", 4096),
		},
		LogLevel: envOrDefault("WORDLENS_LOG_LEVEL", "info"),
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if cfg.Caption.WordHold <= 0 {
		cfg.Caption.WordHold = time.Second
	}
	if cfg.Caption.RestartDelay <= 0 {
		cfg.Caption.RestartDelay = 120 * time.Millisecond
	}
	if cfg.Caption.ChunkSize < 256 {
		cfg.Caption.ChunkSize = 4096
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultMillis(key string, fallback int) time.Duration {
	ms := envOrDefaultInt(key, fallback)
	if ms <= 0 {
		ms = fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
