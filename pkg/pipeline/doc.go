// Package pipeline drives one live voice conversation from end to end.
//
// Each accepted connection gets its own Orchestrator run: a sequential loop
// that waits for an audio frame, conditions it, transcribes it, and — once
// the transcription provider marks an utterance final — generates a reply,
// synthesizes it, and sends the audio back. Sessions are isolated: runs share
// nothing but the session registry and the conversation store, both of which
// stripe their locks per session.
//
// The run is a small state machine:
//
//	AwaitingFrame --frame received--> Processing
//	Processing    --interim/reply---> AwaitingFrame
//	AwaitingFrame --idle timeout----> Closing (normal close, no error payload)
//	Processing    --stage failure---> Closing (one error payload, internal-error close)
//	Closing       ------------------> Closed  (always: registry end + connection release)
//
// Only one frame is in flight per session; replies are emitted in the order
// frames were accepted. A stage failure terminates only its own session.
package pipeline
