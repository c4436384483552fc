package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/voicebridge/pkg/audio"
	"github.com/teslashibe/voicebridge/pkg/conversation"
	"github.com/teslashibe/voicebridge/pkg/llm"
	"github.com/teslashibe/voicebridge/pkg/session"
	"github.com/teslashibe/voicebridge/pkg/stt"
	"github.com/teslashibe/voicebridge/pkg/tts"
)

// fakeConn is an in-memory Conn for driving orchestrator runs.
type fakeConn struct {
	frames chan []byte

	mu            sync.Mutex
	audioOut      [][]byte
	errorsOut     []ErrorPayload
	closeCode     CloseCode
	closed        bool
	writeAudioErr error
}

func newFakeConn(frames ...[]byte) *fakeConn {
	c := &fakeConn{frames: make(chan []byte, len(frames)+1)}
	for _, f := range frames {
		c.frames <- f
	}
	return c
}

func (c *fakeConn) ReadFrame(timeout time.Duration) ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-time.After(timeout):
		return nil, ErrReceiveTimeout
	}
}

func (c *fakeConn) WriteAudio(audio []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeAudioErr != nil {
		return c.writeAudioErr
	}
	c.audioOut = append(c.audioOut, audio)
	return nil
}

func (c *fakeConn) WriteError(payload ErrorPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorsOut = append(c.errorsOut, payload)
	return nil
}

func (c *fakeConn) Close(code CloseCode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCode = code
	return nil
}

type testRig struct {
	orch     *Orchestrator
	registry *session.Registry
	history  *conversation.Store
}

func newTestRig(t *testing.T, transcriber stt.Transcriber, generator llm.Generator, synthesizer tts.Synthesizer) *testRig {
	t.Helper()

	conditioner, err := audio.NewConditioner(1, 0, 0)
	if err != nil {
		t.Fatalf("NewConditioner: %v", err)
	}
	registry := session.NewRegistry()
	history, err := conversation.NewStore(conversation.DefaultCap)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	orch, err := New(Options{
		Conditioner:    conditioner,
		Transcriber:    transcriber,
		Generator:      generator,
		Synthesizer:    synthesizer,
		Registry:       registry,
		History:        history,
		ReceiveTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testRig{orch: orch, registry: registry, history: history}
}

// quietFrame encodes a frame of near-zero samples, all below the noise gate.
func quietFrame(n int) []byte {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.004
	}
	return audio.Encode(samples)
}

func TestRun_EndToEndExchange(t *testing.T) {
	transcriber := &stt.Mock{
		TranscribeFunc: func(ctx context.Context, samples []float32) (*stt.Result, error) {
			// The conditioner gates near-zero input to silence.
			for i, s := range samples {
				if s != 0 {
					t.Errorf("sample %d not gated: %f", i, s)
					break
				}
			}
			return &stt.Result{Text: "hello", IsFinal: true}, nil
		},
	}
	generator := llm.NewMock("hi there")
	synthesizer := tts.NewMockFixed([]byte{0x01, 0x02})

	rig := newTestRig(t, transcriber, generator, synthesizer)
	conn := newFakeConn(quietFrame(160))

	id := rig.orch.Run(context.Background(), conn)

	if len(conn.audioOut) != 1 {
		t.Fatalf("expected 1 audio reply, got %d", len(conn.audioOut))
	}
	if got := conn.audioOut[0]; len(got) != 2 || got[0] != 0x01 || got[1] != 0x02 {
		t.Errorf("unexpected reply audio: %v", got)
	}

	turns := rig.history.History(id)
	if len(turns) != 2 {
		t.Fatalf("expected 2 history turns, got %d", len(turns))
	}
	if turns[0].Role != conversation.RoleUser || turns[0].Content != "hello" {
		t.Errorf("unexpected user turn: %+v", turns[0])
	}
	if turns[1].Role != conversation.RoleAssistant || turns[1].Content != "hi there" {
		t.Errorf("unexpected assistant turn: %+v", turns[1])
	}

	// The generator saw the history as it was before this exchange.
	if calls := generator.Calls(); len(calls) != 1 || calls[0].HistoryTurns != 0 {
		t.Errorf("unexpected generator calls: %+v", calls)
	}

	if m := rig.orch.Metrics().Snapshot(); m.Exchanges != 1 {
		t.Errorf("expected 1 exchange recorded, got %d", m.Exchanges)
	}
}

func TestRun_InterimTranscriptSkipsReply(t *testing.T) {
	transcriber := &stt.Mock{
		TranscribeFunc: func(ctx context.Context, samples []float32) (*stt.Result, error) {
			return &stt.Result{Text: "hel", IsFinal: false}, nil
		},
	}
	generator := llm.NewMock("never")
	synthesizer := tts.NewMock()

	rig := newTestRig(t, transcriber, generator, synthesizer)
	conn := newFakeConn(quietFrame(160))

	id := rig.orch.Run(context.Background(), conn)

	if generator.CallCount("Generate") != 0 {
		t.Error("generation must not run for interim transcripts")
	}
	if synthesizer.CallCount("Synthesize") != 0 {
		t.Error("synthesis must not run for interim transcripts")
	}
	if len(conn.audioOut) != 0 {
		t.Error("no audio should be sent for interim transcripts")
	}
	if turns := rig.history.History(id); len(turns) != 0 {
		t.Errorf("history should be empty, got %d turns", len(turns))
	}
	// The frame still counted as activity before the idle close.
	if sess, ok := rig.registry.Get(id); !ok || sess.Active {
		t.Error("session should exist and be inactive after the run")
	}
}

func TestRun_IdleTimeoutClosesNormally(t *testing.T) {
	rig := newTestRig(t, stt.NewMock("x"), llm.NewMock("y"), tts.NewMock())
	conn := newFakeConn() // no frames

	id := rig.orch.Run(context.Background(), conn)

	if !conn.closed || conn.closeCode != CloseNormal {
		t.Errorf("expected normal close, got closed=%v code=%d", conn.closed, conn.closeCode)
	}
	if len(conn.errorsOut) != 0 {
		t.Errorf("timeout must not produce an error payload, got %v", conn.errorsOut)
	}
	if sess, _ := rig.registry.Get(id); sess.Active {
		t.Error("session should be inactive after timeout")
	}
	if m := rig.orch.Metrics().Snapshot(); m.Timeouts != 1 {
		t.Errorf("expected 1 timeout recorded, got %d", m.Timeouts)
	}
}

func TestRun_StageFailures(t *testing.T) {
	stageFault := errors.New("provider exploded")

	tests := []struct {
		name        string
		transcriber stt.Transcriber
		generator   llm.Generator
		synthesizer tts.Synthesizer
		wantType    string
	}{
		{
			name:        "transcription",
			transcriber: stt.WithError(stageFault),
			generator:   llm.NewMock("y"),
			synthesizer: tts.NewMock(),
			wantType:    "TranscriptionError",
		},
		{
			name:        "generation",
			transcriber: stt.NewMock("hello"),
			generator:   llm.WithError(stageFault),
			synthesizer: tts.NewMock(),
			wantType:    "LLMError",
		},
		{
			name:        "synthesis",
			transcriber: stt.NewMock("hello"),
			generator:   llm.NewMock("y"),
			synthesizer: tts.WithError(stageFault),
			wantType:    "VoiceSynthesisError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, tt.transcriber, tt.generator, tt.synthesizer)
			conn := newFakeConn(quietFrame(160))

			id := rig.orch.Run(context.Background(), conn)

			if len(conn.errorsOut) != 1 {
				t.Fatalf("expected exactly 1 error payload, got %d", len(conn.errorsOut))
			}
			if conn.errorsOut[0].Type != tt.wantType {
				t.Errorf("expected type %s, got %s", tt.wantType, conn.errorsOut[0].Type)
			}
			if conn.errorsOut[0].Error == "" {
				t.Error("error payload should carry a human-readable cause")
			}
			if conn.closeCode != CloseInternalError {
				t.Errorf("expected internal-error close, got %d", conn.closeCode)
			}
			if sess, _ := rig.registry.Get(id); sess.Active {
				t.Error("session should be inactive after stage failure")
			}
			if turns := rig.history.History(id); len(turns) != 0 {
				t.Error("failed exchange must not be recorded in history")
			}
		})
	}
}

func TestRun_MalformedFrame(t *testing.T) {
	rig := newTestRig(t, stt.NewMock("x"), llm.NewMock("y"), tts.NewMock())
	conn := newFakeConn([]byte{0x01, 0x02, 0x03}) // not a whole float32

	rig.orch.Run(context.Background(), conn)

	if len(conn.errorsOut) != 1 || conn.errorsOut[0].Type != "AudioProcessingError" {
		t.Fatalf("expected AudioProcessingError payload, got %v", conn.errorsOut)
	}
	if conn.closeCode != CloseInternalError {
		t.Errorf("expected internal-error close, got %d", conn.closeCode)
	}
}

func TestRun_ClientGoneDiscardsReply(t *testing.T) {
	rig := newTestRig(t, stt.NewMock("hello"), llm.NewMock("hi"), tts.NewMockFixed([]byte{0x01}))
	conn := newFakeConn(quietFrame(160))
	conn.writeAudioErr = errors.New("connection reset")

	id := rig.orch.Run(context.Background(), conn)

	if len(conn.errorsOut) != 0 {
		t.Error("no error payload should be written to a dead connection")
	}
	if turns := rig.history.History(id); len(turns) != 0 {
		t.Error("undelivered exchange must not be recorded in history")
	}
	if sess, _ := rig.registry.Get(id); sess.Active {
		t.Error("session should be inactive after transport loss")
	}
}

func TestRun_SequentialReplies(t *testing.T) {
	var n int
	var mu sync.Mutex
	transcriber := &stt.Mock{
		TranscribeFunc: func(ctx context.Context, samples []float32) (*stt.Result, error) {
			mu.Lock()
			n++
			text := []string{"first", "second", "third"}[n-1]
			mu.Unlock()
			return &stt.Result{Text: text, IsFinal: true}, nil
		},
	}
	generator := &llm.Mock{
		GenerateFunc: func(ctx context.Context, input string, history []conversation.Turn) (string, error) {
			return "re: " + input, nil
		},
	}
	synthesizer := &tts.Mock{
		SynthesizeFunc: func(ctx context.Context, text string) ([]byte, error) {
			return []byte(text), nil
		},
	}

	rig := newTestRig(t, transcriber, generator, synthesizer)
	conn := newFakeConn(quietFrame(160), quietFrame(160), quietFrame(160))

	id := rig.orch.Run(context.Background(), conn)

	if len(conn.audioOut) != 3 {
		t.Fatalf("expected 3 replies, got %d", len(conn.audioOut))
	}
	for i, want := range []string{"re: first", "re: second", "re: third"} {
		if string(conn.audioOut[i]) != want {
			t.Errorf("reply %d: expected %q, got %q", i, want, conn.audioOut[i])
		}
	}

	turns := rig.history.History(id)
	if len(turns) != 6 {
		t.Fatalf("expected 6 turns, got %d", len(turns))
	}
	if turns[4].Content != "third" || turns[5].Content != "re: third" {
		t.Errorf("unexpected final exchange: %+v", turns[4:])
	}
}

func TestRun_MaxSessionAge(t *testing.T) {
	conditioner, _ := audio.NewConditioner(1, 0, 0)
	registry := session.NewRegistry()
	history, _ := conversation.NewStore(conversation.DefaultCap)

	orch, err := New(Options{
		Conditioner:    conditioner,
		Transcriber:    stt.NewMock("x"),
		Generator:      llm.NewMock("y"),
		Synthesizer:    tts.NewMock(),
		Registry:       registry,
		History:        history,
		ReceiveTimeout: 10 * time.Second,
		MaxSessionAge:  50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	conn := newFakeConn()
	start := time.Now()
	orch.Run(context.Background(), conn)

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("session cap did not bound the wait, took %v", elapsed)
	}
	if conn.closeCode != CloseNormal {
		t.Errorf("expected normal close, got %d", conn.closeCode)
	}
}

func TestNew_ValidatesDependencies(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error for missing collaborators")
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	rig := newTestRig(t, stt.NewMock("x"), llm.NewMock("y"), tts.NewMock())
	conn := newFakeConn()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	id := rig.orch.Run(ctx, conn)

	if !conn.closed {
		t.Error("connection should be released on cancellation")
	}
	if sess, _ := rig.registry.Get(id); sess.Active {
		t.Error("session should be inactive after cancellation")
	}
}
