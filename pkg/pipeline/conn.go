package pipeline

import "time"

// CloseCode signals how a session ended. Values match WebSocket close codes
// so transport adapters can pass them through directly.
type CloseCode int

// Close codes.
const (
	// CloseNormal is a clean shutdown: idle timeout or client goodbye.
	CloseNormal CloseCode = 1000

	// CloseInternalError follows a stage failure.
	CloseInternalError CloseCode = 1011
)

// ErrorPayload is the structured error object sent to the client immediately
// before an abnormal close.
type ErrorPayload struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

// Conn is the transport seen by an orchestrator run: one full-duplex,
// ordered, reliable message stream. Implementations adapt a concrete
// transport (the server wraps a WebSocket; tests use an in-memory fake).
type Conn interface {
	// ReadFrame blocks for the next binary audio frame. It returns
	// ErrReceiveTimeout if no frame arrives within timeout, or another
	// error if the connection is gone.
	ReadFrame(timeout time.Duration) ([]byte, error)

	// WriteAudio sends a binary audio reply to the client.
	WriteAudio(audio []byte) error

	// WriteError sends a structured error payload to the client.
	WriteError(payload ErrorPayload) error

	// Close closes the connection with the given code. Idempotent;
	// errors from double-close are swallowed by callers.
	Close(code CloseCode) error
}
