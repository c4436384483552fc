package llm

import (
	"log/slog"
	"time"
)

// DefaultSystemPrompt keeps replies suitable for speech synthesis.
const DefaultSystemPrompt = "You are a helpful AI assistant engaged in a voice conversation. " +
	"Keep your responses concise and natural."

// Config holds generation provider configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Provider credentials
	APIKey  string
	BaseURL string

	// Generation settings
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string

	// Timeouts
	Timeout time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring generation providers.
type Option func(*Config)

// WithAPIKey sets the API key for the provider.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithBaseURL overrides the default API base URL.
// Point this at Ollama or any other OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithModel sets the generation model.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTemperature sets response randomness (0.0-2.0).
func WithTemperature(temperature float64) Option {
	return func(c *Config) {
		c.Temperature = temperature
	}
}

// WithMaxTokens limits reply length.
func WithMaxTokens(maxTokens int) Option {
	return func(c *Config) {
		c.MaxTokens = maxTokens
	}
}

// WithSystemPrompt sets the system instruction for the conversation.
func WithSystemPrompt(prompt string) Option {
	return func(c *Config) {
		c.SystemPrompt = prompt
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithLogger sets the structured logger for the provider.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model:        "gpt-4o-mini",
		Temperature:  0.7,
		MaxTokens:    150,
		SystemPrompt: DefaultSystemPrompt,
		Timeout:      30 * time.Second,
		Logger:       slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}
