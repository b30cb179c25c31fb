package session

import "time"

// Kind tags the terminal result of one capture-transcribe cycle.
type Kind int

const (
	// KindTranscribed: speech was recognized and the transcript persisted.
	KindTranscribed Kind = iota
	// KindNoSpeech: the engine finished but produced no text. A normal
	// outcome, not an error, and distinct from a timeout.
	KindNoSpeech
	// KindTimedOut: the engine missed the deadline; the recording is kept
	// with its transcript absent.
	KindTimedOut
	// KindFailed: transcription failed outright. The recording, if one was
	// appended, is kept.
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindTranscribed:
		return "transcribed"
	case KindNoSpeech:
		return "no-speech"
	case KindTimedOut:
		return "timed-out"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is what one completed cycle produced. MessageID and Path are set
// whenever a recording reached the store, regardless of how transcription
// went; recordings are never discarded over transcription trouble.
type Outcome struct {
	Kind      Kind
	Text      string // trimmed transcript, KindTranscribed only
	Err       error  // KindFailed only
	MessageID string
	Path      string
	Duration  time.Duration
	// LikelyEmpty flags clips under the minimum-duration heuristic. It is
	// diagnostic only; such clips still go through transcription.
	LikelyEmpty bool
}
