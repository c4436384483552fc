package pipeline

import (
	"errors"
	"fmt"
)

// ErrReceiveTimeout is returned by Conn.ReadFrame when no frame arrives
// within the idle timeout. It is a normal termination path, not a failure.
var ErrReceiveTimeout = errors.New("pipeline: receive timed out")

// Stage identifies where in the pipeline a failure occurred.
type Stage string

// Pipeline stages.
const (
	StageAudio         Stage = "audio"
	StageTranscription Stage = "transcription"
	StageGeneration    Stage = "generation"
	StageSynthesis     Stage = "synthesis"
)

// Category returns the error category reported to the client for this stage.
func (s Stage) Category() string {
	switch s {
	case StageAudio:
		return "AudioProcessingError"
	case StageTranscription:
		return "TranscriptionError"
	case StageGeneration:
		return "LLMError"
	case StageSynthesis:
		return "VoiceSynthesisError"
	default:
		return "PipelineError"
	}
}

// StageError wraps a collaborator fault with the stage it occurred in.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: %s stage: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Message returns the human-readable cause sent to the client.
// Internal detail beyond the stage and cause is not exposed.
func (e *StageError) Message() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}
