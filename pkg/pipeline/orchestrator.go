package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/voicebridge/pkg/audio"
	"github.com/teslashibe/voicebridge/pkg/conversation"
	"github.com/teslashibe/voicebridge/pkg/llm"
	"github.com/teslashibe/voicebridge/pkg/session"
	"github.com/teslashibe/voicebridge/pkg/stt"
	"github.com/teslashibe/voicebridge/pkg/tts"
)

// DefaultReceiveTimeout is the idle wait for the next frame.
const DefaultReceiveTimeout = 30 * time.Second

// Options are the dependencies and tuning for an Orchestrator.
// Collaborators are injected explicitly; the orchestrator holds no globals.
type Options struct {
	Conditioner *audio.Conditioner
	Transcriber stt.Transcriber
	Generator   llm.Generator
	Synthesizer tts.Synthesizer
	Registry    *session.Registry
	History     *conversation.Store

	// ReceiveTimeout is the per-frame idle timeout. Defaults to
	// DefaultReceiveTimeout. It resets after every frame; it is not a cap
	// on total session duration.
	ReceiveTimeout time.Duration

	// MaxSessionAge optionally caps total session duration. Zero disables.
	MaxSessionAge time.Duration

	Logger  *slog.Logger
	Metrics *Collector
}

func (o *Options) validate() error {
	switch {
	case o.Conditioner == nil:
		return errors.New("pipeline: conditioner is required")
	case o.Transcriber == nil:
		return errors.New("pipeline: transcriber is required")
	case o.Generator == nil:
		return errors.New("pipeline: generator is required")
	case o.Synthesizer == nil:
		return errors.New("pipeline: synthesizer is required")
	case o.Registry == nil:
		return errors.New("pipeline: session registry is required")
	case o.History == nil:
		return errors.New("pipeline: conversation store is required")
	}
	return nil
}

// Orchestrator runs conversation sessions. One Orchestrator serves all
// connections; each Run call is an independent, internally sequential loop.
type Orchestrator struct {
	opts Options
}

// New creates an Orchestrator, applying defaults for optional fields.
func New(opts Options) (*Orchestrator, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.ReceiveTimeout <= 0 {
		opts.ReceiveTimeout = DefaultReceiveTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewCollector()
	}
	return &Orchestrator{opts: opts}, nil
}

// Metrics returns the orchestrator's shared metrics collector.
func (o *Orchestrator) Metrics() *Collector {
	return o.opts.Metrics
}

// Run owns conn for the lifetime of one session and always leaves the
// session ended and the connection released, whatever path ends it.
// It returns the session identifier.
func (o *Orchestrator) Run(ctx context.Context, conn Conn) string {
	id := o.opts.Registry.Create()
	logger := o.opts.Logger.With("session_id", id)
	logger.Info("conversation session started")

	state := StateAwaitingFrame
	started := time.Now()

	for {
		if ctx.Err() != nil {
			logger.Info("session cancelled", "state", state.String())
			o.shutdown(conn, id, CloseNormal, logger)
			return id
		}

		timeout := o.opts.ReceiveTimeout
		expired := false
		if o.opts.MaxSessionAge > 0 {
			remain := o.opts.MaxSessionAge - time.Since(started)
			if remain <= 0 {
				expired = true
			} else if remain < timeout {
				timeout = remain
			}
		}

		var frame []byte
		var err error
		if !expired {
			frame, err = conn.ReadFrame(timeout)
		}

		switch {
		case expired || errors.Is(err, ErrReceiveTimeout):
			// Not a failure: close normally, no error payload.
			logger.Warn("session timed out", "idle_timeout", timeout)
			o.opts.Metrics.timedOut()
			o.shutdown(conn, id, CloseNormal, logger)
			return id
		case err != nil:
			logger.Info("connection closed", "error", err)
			o.shutdown(conn, id, CloseNormal, logger)
			return id
		}

		state = StateProcessing
		if perr := o.process(ctx, conn, id, frame, logger); perr != nil {
			state = StateClosing
			var stageErr *StageError
			if errors.As(perr, &stageErr) {
				o.opts.Metrics.stageFailed()
				logger.Error("stage failure",
					"state", state.String(),
					"stage", string(stageErr.Stage),
					"error", stageErr.Err,
				)
				// Best effort: the client may already be gone.
				if werr := conn.WriteError(ErrorPayload{
					Error: stageErr.Message(),
					Type:  stageErr.Stage.Category(),
				}); werr != nil {
					logger.Debug("error payload not delivered", "error", werr)
				}
				o.shutdown(conn, id, CloseInternalError, logger)
			} else {
				// Transport died mid-exchange; the reply is discarded and
				// nothing is written to a closed connection.
				logger.Info("connection lost during processing", "error", perr)
				o.shutdown(conn, id, CloseNormal, logger)
			}
			return id
		}

		o.opts.Registry.Touch(id)
		o.opts.Metrics.frameProcessed()
		state = StateAwaitingFrame
	}
}

// process handles one frame: condition, transcribe, and — for a final
// transcript — generate, synthesize, reply, and record the exchange.
func (o *Orchestrator) process(ctx context.Context, conn Conn, id string, frame []byte, logger *slog.Logger) error {
	samples, err := o.opts.Conditioner.Condition(frame)
	if err != nil {
		return &StageError{Stage: StageAudio, Err: err}
	}

	t0 := time.Now()
	result, err := o.opts.Transcriber.Transcribe(ctx, samples)
	if err != nil {
		return &StageError{Stage: StageTranscription, Err: err}
	}
	transcribeTime := time.Since(t0)

	if !result.IsFinal {
		logger.Debug("interim transcript", "chars", len(result.Text))
		return nil
	}

	history := o.opts.History.History(id)

	t1 := time.Now()
	reply, err := o.opts.Generator.Generate(ctx, result.Text, history)
	if err != nil {
		return &StageError{Stage: StageGeneration, Err: err}
	}
	generateTime := time.Since(t1)

	t2 := time.Now()
	replyAudio, err := o.opts.Synthesizer.Synthesize(ctx, reply)
	if err != nil {
		return &StageError{Stage: StageSynthesis, Err: err}
	}
	synthesizeTime := time.Since(t2)

	if err := conn.WriteAudio(replyAudio); err != nil {
		return fmt.Errorf("pipeline: write reply: %w", err)
	}

	// The exchange is only recorded once the reply actually went out.
	o.opts.History.Append(id, result.Text, reply)
	o.opts.Metrics.exchangeDone(transcribeTime, generateTime, synthesizeTime)

	logger.Info("exchange completed",
		"transcript_chars", len(result.Text),
		"reply_chars", len(reply),
		"audio_bytes", len(replyAudio),
		"transcribe_ms", transcribeTime.Milliseconds(),
		"generate_ms", generateTime.Milliseconds(),
		"synthesize_ms", synthesizeTime.Milliseconds(),
	)
	return nil
}

// shutdown ends the session and releases the connection. Best-effort:
// secondary failures are logged, never re-raised, so they cannot mask the
// reason the session ended.
func (o *Orchestrator) shutdown(conn Conn, id string, code CloseCode, logger *slog.Logger) {
	o.opts.Registry.End(id)
	if err := conn.Close(code); err != nil {
		logger.Debug("connection close", "error", err)
	}
	logger.Info("session ended", "state", StateClosed.String(), "close_code", int(code))
}
