// Package engine owns the process-wide speech-recognition engine: the
// capability boundary the native recognizer implements, and the Manager
// that loads exactly one instance and shares it.
package engine

import (
	"context"
	"time"
)

// Segment is one recognized span of audio.
type Segment struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// Result is a completed transcription.
type Result struct {
	Text     string
	Segments []Segment
}

// Options configures one transcription run.
type Options struct {
	Language         string
	MaxSegmentLength int
	WordTimestamps   bool
	// Progress, when set, receives percentage updates. Calls are best-effort
	// and may stop arriving once the job is cancelled.
	Progress func(percent int)
}

// JobResult is the single terminal value of a Job.
type JobResult struct {
	Result Result
	Err    error
}

// Job is one in-flight transcription. Result delivers exactly one value.
// Cancel is safe to call at any point, including after natural completion,
// where it is a no-op; a completion arriving after Cancel is dropped, never
// delivered late.
type Job interface {
	Cancel()
	Result() <-chan JobResult
}

// Engine is the recognizer capability. Audio travels by file reference; the
// engine never receives buffers from this core.
type Engine interface {
	Transcribe(audioPath string, opts Options) (Job, error)
	Release() error
}

// Initializer loads an Engine from a model file. The Manager invokes it at
// most once per load attempt.
type Initializer func(ctx context.Context, modelPath string) (Engine, error)
