// Package audio defines the device audio capability boundary: permission,
// routing mode, capture, and playback. The host platform supplies the
// implementations; this core only sequences calls against them. Audio files
// travel by path and are never parsed here.
package audio

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Platform selects the platform-conditional behaviour: capture container
// format and whether the cue sound needs the routing choreography.
type Platform string

const (
	IOS     Platform = "ios"
	Android Platform = "android"
)

// CaptureExt returns the file extension the platform recorder produces.
func (p Platform) CaptureExt() string {
	if p == IOS {
		return ".wav"
	}
	return ".m4a"
}

// CaptureMIME returns the content-type hint for captured audio.
func (p Platform) CaptureMIME() string {
	if p == IOS {
		return "audio/wav"
	}
	return "audio/m4a"
}

// Mode mirrors the platform audio-session switches the routing sequences
// flip. The zero value is the most restrictive mode.
type Mode struct {
	PlayWhenSilenced     bool
	AllowRecording       bool
	RouteThroughEarpiece bool
}

// System is the platform audio-session surface.
type System interface {
	// RequestPermission prompts for microphone access. It reports the
	// grant; an error means the prompt itself failed.
	RequestPermission(ctx context.Context) (bool, error)
	SetMode(ctx context.Context, mode Mode) error
}

// CaptureConfig configures one recording. 16 kHz mono is what the
// recognition engine expects.
type CaptureConfig struct {
	SampleRate int
	Channels   int
	Ext        string
}

// DefaultCaptureConfig returns the capture settings for a platform.
func DefaultCaptureConfig(p Platform) CaptureConfig {
	return CaptureConfig{SampleRate: 16000, Channels: 1, Ext: p.CaptureExt()}
}

// Capture is a live recording handle. Path points at the transient location
// the recorder writes to; it may vanish once the recorder is reused.
type Capture struct {
	ID        string
	Path      string
	StartedAt time.Time
}

// NewCapture mints a handle for a recording the platform recorder has
// started writing at path.
func NewCapture(path string) *Capture {
	return &Capture{ID: uuid.NewString(), Path: path, StartedAt: time.Now()}
}

// Clip is a finished recording.
type Clip struct {
	Path     string
	Duration time.Duration
}

// Recorder is the hardware capture surface.
type Recorder interface {
	Start(ctx context.Context, cfg CaptureConfig) (*Capture, error)
	Stop(ctx context.Context, c *Capture) (Clip, error)
}

// Status is a playback position report.
type Status struct {
	// Position and Duration are in seconds.
	Position float64
	Duration float64
	Playing  bool
}

// Player is a single-track audio player. Implementations expose no stop
// call; pause plus a seek to zero stands in for one.
type Player interface {
	Load(path string) error
	Play() error
	Pause() error
	SeekTo(seconds float64) error
	SetRate(rate float64) error
	Status() Status
}
