package llm

import (
	"context"
	"sync"

	"github.com/teslashibe/voicebridge/pkg/conversation"
)

// Mock implements Generator for testing.
// All methods can be customized via function fields.
type Mock struct {
	// GenerateFunc is called when Generate is invoked.
	// If nil, echoes the input back.
	GenerateFunc func(ctx context.Context, input string, history []conversation.Turn) (string, error)

	// HealthFunc is called when Health is invoked.
	// If nil, returns nil (healthy).
	HealthFunc func(ctx context.Context) error

	// CloseFunc is called when Close is invoked.
	// If nil, returns nil.
	CloseFunc func() error

	// Tracking
	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a Generate invocation for verification.
type MockCall struct {
	Method       string
	Input        string
	HistoryTurns int
}

// NewMock creates a mock that always replies with the given text.
func NewMock(reply string) *Mock {
	return &Mock{
		GenerateFunc: func(ctx context.Context, input string, history []conversation.Turn) (string, error) {
			return reply, nil
		},
	}
}

// Generate calls GenerateFunc and records the call.
func (m *Mock) Generate(ctx context.Context, input string, history []conversation.Turn) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: "Generate", Input: input, HistoryTurns: len(history)})
	m.mu.Unlock()
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, input, history)
	}
	return input, nil
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: "Health"})
	m.mu.Unlock()
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: "Close"})
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// WithError returns a mock whose calls all fail with the given error.
func WithError(err error) *Mock {
	return &Mock{
		GenerateFunc: func(ctx context.Context, input string, history []conversation.Turn) (string, error) {
			return "", err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// Verify Mock implements Generator at compile time.
var _ Generator = (*Mock)(nil)
