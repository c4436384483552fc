package pipeline

// State is the lifecycle phase of one orchestrator run.
type State int

// Run states.
const (
	// StateAwaitingFrame waits for the next client frame.
	StateAwaitingFrame State = iota
	// StateProcessing runs the condition/transcribe/generate/synthesize sequence.
	StateProcessing
	// StateClosing tears the session down.
	StateClosing
	// StateClosed is terminal; no operation is valid on a closed session.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateAwaitingFrame:
		return "awaiting_frame"
	case StateProcessing:
		return "processing"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
