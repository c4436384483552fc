// Package config loads and validates the voicebridge configuration file.
//
// Configuration is read once at startup from a YAML file. A config that
// fails validation is fatal: the server must not accept connections with a
// partial or inconsistent setup. Provider credentials come from the
// environment, never from the file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Config is the top-level voicebridge configuration.
type Config struct {
	App     AppConfig     `yaml:"app"`
	Server  ServerConfig  `yaml:"server"`
	Audio   AudioConfig   `yaml:"audio"`
	Session SessionConfig `yaml:"session"`
	Speech  SpeechConfig  `yaml:"speech_recognition"`
	LLM     LLMConfig     `yaml:"llm"`
	Voice   VoiceConfig   `yaml:"voice"`
}

// AppConfig identifies the application.
type AppConfig struct {
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	LogLevel string `yaml:"log_level"`
}

// ServerConfig controls the HTTP/WebSocket listener.
type ServerConfig struct {
	Port           int           `yaml:"port"`
	ReceiveTimeout time.Duration `yaml:"receive_timeout"`
}

// AudioConfig controls frame decoding and conditioning.
type AudioConfig struct {
	SampleRate     int     `yaml:"sample_rate"`
	Channels       int     `yaml:"channels"`
	ChunkSize      int     `yaml:"chunk_size"`
	BufferSize     int     `yaml:"buffer_size"`
	NoiseThreshold float64 `yaml:"noise_threshold"`
	TargetRMS      float64 `yaml:"target_rms"`
}

// SessionConfig controls session bookkeeping.
type SessionConfig struct {
	HistoryCap    int           `yaml:"history_cap"`
	RetentionAge  time.Duration `yaml:"retention_age"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// MaxSessionAge caps total session duration. Zero disables the cap;
	// the idle receive timeout is the only mandatory limit.
	MaxSessionAge time.Duration `yaml:"max_session_age"`
}

// SpeechConfig selects and tunes the transcription provider.
type SpeechConfig struct {
	DefaultProvider string `yaml:"default_provider"`
	Model           string `yaml:"model"`
	Language        string `yaml:"language"`
}

// LLMConfig selects and tunes the generation provider.
type LLMConfig struct {
	DefaultProvider string  `yaml:"default_provider"`
	Model           string  `yaml:"model"`
	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
}

// VoiceConfig selects and tunes the synthesis provider.
type VoiceConfig struct {
	DefaultProvider string  `yaml:"default_provider"`
	VoiceID         string  `yaml:"voice_id"`
	Model           string  `yaml:"model"`
	Stability       float64 `yaml:"stability"`
	SimilarityBoost float64 `yaml:"similarity_boost"`
}

// Default returns the configuration used when a field is absent from the file.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:     "voicebridge",
			Version:  "1.0.0",
			LogLevel: "info",
		},
		Server: ServerConfig{
			Port:           8000,
			ReceiveTimeout: 30 * time.Second,
		},
		Audio: AudioConfig{
			SampleRate:     16000,
			Channels:       1,
			ChunkSize:      1024,
			BufferSize:     4096,
			NoiseThreshold: 0.01,
			TargetRMS:      0.2,
		},
		Session: SessionConfig{
			HistoryCap:    10,
			RetentionAge:  30 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		Speech: SpeechConfig{
			DefaultProvider: "deepgram",
			Model:           "nova-2",
			Language:        "en",
		},
		LLM: LLMConfig{
			DefaultProvider: "openai",
			Model:           "gpt-4o-mini",
			Temperature:     0.7,
			MaxTokens:       150,
		},
		Voice: VoiceConfig{
			DefaultProvider: "elevenlabs",
			VoiceID:         "21m00Tcm4TlvDq8ikWAM", // Rachel
			Model:           "eleven_monolingual_v1",
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}
}

// Load reads and validates the configuration file at path.
// Missing fields fall back to Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Server.ReceiveTimeout <= 0 {
		return fmt.Errorf("config: receive_timeout must be positive")
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("config: invalid sample rate %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return fmt.Errorf("config: unsupported channel count %d", c.Audio.Channels)
	}
	if c.Audio.NoiseThreshold < 0 || c.Audio.NoiseThreshold >= 1 {
		return fmt.Errorf("config: noise_threshold must be in [0, 1)")
	}
	if c.Audio.TargetRMS <= 0 || c.Audio.TargetRMS > 1 {
		return fmt.Errorf("config: target_rms must be in (0, 1]")
	}
	if c.Session.HistoryCap <= 0 || c.Session.HistoryCap%2 != 0 {
		return fmt.Errorf("config: history_cap must be a positive even number, got %d", c.Session.HistoryCap)
	}
	if c.Session.RetentionAge <= 0 {
		return fmt.Errorf("config: retention_age must be positive")
	}
	if c.Speech.DefaultProvider == "" {
		return fmt.Errorf("config: speech_recognition.default_provider is required")
	}
	if c.LLM.DefaultProvider == "" {
		return fmt.Errorf("config: llm.default_provider is required")
	}
	if c.Voice.DefaultProvider == "" {
		return fmt.Errorf("config: voice.default_provider is required")
	}
	return nil
}

// RequiredKeys maps environment variable names to the service that needs them.
var RequiredKeys = map[string]string{
	"OPENAI_API_KEY":     "OpenAI",
	"DEEPGRAM_API_KEY":   "Deepgram",
	"ELEVENLABS_API_KEY": "ElevenLabs",
}

// CheckKeys verifies that every required provider credential is set.
// Called at startup; a missing key prevents the server from serving traffic.
func CheckKeys() error {
	for key, service := range RequiredKeys {
		if os.Getenv(key) == "" {
			return fmt.Errorf("config: missing API key for %s (set %s)", service, key)
		}
	}
	return nil
}
