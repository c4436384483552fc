package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewElevenLabs_Validation(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr error
	}{
		{"missing api key", []Option{WithVoice("v1")}, ErrNoAPIKey},
		{"missing voice id", []Option{WithAPIKey("k")}, ErrNoVoiceID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewElevenLabs(tt.opts...); err != tt.wantErr {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestElevenLabs_Synthesize(t *testing.T) {
	audio := []byte{0x01, 0x02, 0x03}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("xi-api-key"); got != "test-key" {
			t.Errorf("unexpected api key header: %s", got)
		}
		if r.URL.Path != "/text-to-speech/voice-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var payload synthesisPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload.Text != "hi there" {
			t.Errorf("unexpected text: %s", payload.Text)
		}
		w.Write(audio)
	}))
	defer srv.Close()

	e, err := NewElevenLabs(WithAPIKey("test-key"), WithVoice("voice-1"), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewElevenLabs: %v", err)
	}

	got, err := e.Synthesize(context.Background(), "hi there")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("expected %v, got %v", audio, got)
	}
}

func TestElevenLabs_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	e, _ := NewElevenLabs(WithAPIKey("bad"), WithVoice("voice-1"), WithBaseURL(srv.URL))

	_, err := e.Synthesize(context.Background(), "hello")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Message != "invalid api key" {
		t.Errorf("unexpected message: %s", apiErr.Message)
	}
}

func TestMock_RecordsCalls(t *testing.T) {
	m := NewMock()

	if _, err := m.Synthesize(context.Background(), "one"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if _, err := m.Synthesize(context.Background(), "two"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if got := m.CallCount("Synthesize"); got != 2 {
		t.Errorf("expected 2 calls, got %d", got)
	}
	calls := m.Calls()
	if calls[1].Text != "two" {
		t.Errorf("unexpected recorded text: %s", calls[1].Text)
	}
}
