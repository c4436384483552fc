// Package llm provides a unified interface for reply-generation providers.
//
// The bundled OpenAI provider works with any OpenAI-compatible chat
// completions API (OpenAI, Ollama, vLLM, Together, Groq). Conversation
// history is passed in explicitly on every call and never mutated by the
// provider; the caller owns history updates.
//
// Example usage:
//
//	provider, _ := llm.NewOpenAI(
//	    llm.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    llm.WithModel("gpt-4o-mini"),
//	)
//	defer provider.Close()
//
//	reply, _ := provider.Generate(ctx, "hello", history)
package llm

import (
	"context"

	"github.com/teslashibe/voicebridge/pkg/conversation"
)

// Generator defines the reply-generation provider interface.
type Generator interface {
	// Generate produces a reply to input given the prior conversation turns.
	// Implementations must not retain or mutate history.
	Generate(ctx context.Context, input string, history []conversation.Turn) (string, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}
