package stt

import (
	"context"
	"sync"
	"time"
)

// Mock implements Transcriber for testing.
// All methods can be customized via function fields.
type Mock struct {
	// TranscribeFunc is called when Transcribe is invoked.
	// If nil, returns an empty non-final result.
	TranscribeFunc func(ctx context.Context, samples []float32) (*Result, error)

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

// MockCall records a method invocation for verification.
type MockCall struct {
	Method  string
	Samples int
	Time    time.Time
}

// NewMock creates a mock that transcribes every buffer to the given text
// as a final result.
func NewMock(text string) *Mock {
	return &Mock{
		TranscribeFunc: func(ctx context.Context, samples []float32) (*Result, error) {
			return &Result{Text: text, IsFinal: true, Confidence: 1.0}, nil
		},
	}
}

// Transcribe calls TranscribeFunc and records the call.
func (m *Mock) Transcribe(ctx context.Context, samples []float32) (*Result, error) {
	m.recordCall("Transcribe", len(samples))
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, samples)
	}
	return &Result{}, nil
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.recordCall("Health", 0)
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.recordCall("Close", 0)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *Mock) recordCall(method string, samples int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method:  method,
		Samples: samples,
		Time:    time.Now(),
	})
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
		TranscribeFunc: func(ctx context.Context, samples []float32) (*Result, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// Verify Mock implements Transcriber at compile time.
var _ Transcriber = (*Mock)(nil)
