// Package stt provides a unified interface for speech-to-text providers.
//
// All providers implement the Transcriber interface, enabling seamless
// switching without changing caller code. The bundled Deepgram provider sends
// conditioned audio to the prerecorded-transcription API; a Mock is included
// for tests and offline development.
//
// Example usage:
//
//	provider, _ := stt.NewDeepgram(
//	    stt.WithAPIKey(os.Getenv("DEEPGRAM_API_KEY")),
//	    stt.WithSampleRate(16000),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Transcribe(ctx, samples)
//	if result.IsFinal {
//	    // complete utterance, safe to act on
//	}
package stt

import "context"

// Result is one recognition result.
type Result struct {
	// Text is the recognized speech.
	Text string

	// IsFinal reports whether the provider considers the utterance complete.
	// Interim results may be revised and must not trigger a reply.
	IsFinal bool

	// Confidence is the provider's confidence in the transcript (0.0-1.0).
	Confidence float64
}

// Transcriber defines the speech-to-text provider interface.
type Transcriber interface {
	// Transcribe converts conditioned audio samples to text.
	// Samples are mono or interleaved float32 on a [-1, 1] scale.
	Transcribe(ctx context.Context, samples []float32) (*Result, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}
