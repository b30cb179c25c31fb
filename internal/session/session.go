// Package session drives one push-to-talk cycle: press, cue, capture,
// durable copy, store append, bounded transcription, transcript update.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ronaldolimacloud/whisper-local-mobile/internal/audio"
	"github.com/ronaldolimacloud/whisper-local-mobile/internal/engine"
	"github.com/ronaldolimacloud/whisper-local-mobile/internal/message"
	"github.com/ronaldolimacloud/whisper-local-mobile/internal/routing"
	"github.com/ronaldolimacloud/whisper-local-mobile/internal/store"
)

// State is the session machine's phase.
type State int

const (
	StateIdle State = iota
	StateRequestingPermission
	StateRouting
	StateRecording
	StateStopping
	StateTranscribing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestingPermission:
		return "requesting-permission"
	case StateRouting:
		return "routing"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateTranscribing:
		return "transcribing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	// ErrBusy rejects a press while a previous cycle is still running.
	ErrBusy = errors.New("session: another capture is active")
	// ErrEngineNotReady rejects a press before the engine has loaded. Not a
	// hard failure; the UI surfaces it as a disabled action.
	ErrEngineNotReady = errors.New("session: recognition engine not ready")
	// ErrPermissionDenied reports a refused microphone prompt. Recoverable:
	// the next press asks again.
	ErrPermissionDenied = errors.New("session: microphone permission denied")
	// ErrNoRecording reports that no clip exists to replay.
	ErrNoRecording = errors.New("session: no recording to play")
)

// CaptureError wraps a hardware capture failure. The cycle aborts to idle
// and no message record is created.
type CaptureError struct {
	Op  string // "start" or "stop"
	Err error
}

func (e *CaptureError) Error() string { return fmt.Sprintf("capture %s: %v", e.Op, e.Err) }

func (e *CaptureError) Unwrap() error { return e.Err }

// PersistenceError wraps a failure to copy the clip into durable storage or
// to append its record. Fatal to the cycle: a message pointing at a file
// that may vanish is never stored.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persist recording: %v", e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

// Haptics is the optional feedback collaborator. Every call is a detached
// side effect: best-effort, never awaited, never able to fault the cycle.
type Haptics interface {
	Impact()
	Notify(success bool)
}

// NopHaptics is the default when no haptics are supplied.
type NopHaptics struct{}

func (NopHaptics) Impact() {}

func (NopHaptics) Notify(bool) {}

// Config carries the per-device session settings.
type Config struct {
	Platform      audio.Platform
	Language      string
	RecordingsDir string
	// Timeout bounds one transcription run. Defaults to 30s.
	Timeout time.Duration
	// MinClipDuration is the likely-empty heuristic threshold. Defaults to
	// 500ms.
	MinClipDuration time.Duration
}

// Deps are the collaborators one session drives.
type Deps struct {
	Engines  *engine.Manager
	System   audio.System
	Recorder audio.Recorder
	Routing  *routing.Controller
	Store    *store.Store
	// Playback replays the last durable clip. Optional; PlayLast fails
	// with ErrNoRecording semantics kept intact when nil.
	Playback audio.Player
	Haptics  Haptics
	Log      *slog.Logger
}

// Session is the capture-transcribe state machine. One Session serves one
// push-to-talk surface; only one cycle runs at a time and a second press
// while busy is rejected, never queued.
type Session struct {
	cfg Config
	d   Deps
	log *slog.Logger

	mu         sync.Mutex
	state      State
	held       bool
	permission bool
	capture    *audio.Capture
	lastClip   string
	lastLength time.Duration
}

// New builds a Session. Zero config durations get their defaults; nil
// haptics and logger get no-op and slog.Default.
func New(cfg Config, d Deps) *Session {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MinClipDuration <= 0 {
		cfg.MinClipDuration = 500 * time.Millisecond
	}
	if d.Haptics == nil {
		d.Haptics = NopHaptics{}
	}
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	return &Session{cfg: cfg, d: d, log: log, state: StateIdle}
}

// State reports the machine's phase. After a cycle it stays at done or
// failed until the next press.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PressIn begins the hold gesture: request permission on first use, play
// the talk cue, start capture. It returns nil with no capture running when
// the gesture ended before capture could start; that is a normal early
// release, not an error. Rejections: ErrBusy while a cycle is running,
// ErrEngineNotReady before the model has loaded, ErrPermissionDenied on a
// refused prompt.
func (s *Session) PressIn(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateIdle, StateDone, StateFailed:
	default:
		s.mu.Unlock()
		return ErrBusy
	}
	if s.d.Engines.Ready() == nil {
		s.mu.Unlock()
		return ErrEngineNotReady
	}
	s.held = true
	s.state = StateRequestingPermission
	s.mu.Unlock()

	cycle := uuid.NewString()
	log := s.log.With("cycle", cycle)
	log.Debug("press-in")
	go s.d.Haptics.Impact()

	if err := s.ensurePermission(ctx); err != nil {
		s.toIdle()
		return err
	}

	s.setState(StateRouting)
	sounded, err := s.d.Routing.PlayCue(ctx, s.stillHeld)
	if err != nil {
		s.toIdle()
		return fmt.Errorf("play cue: %w", err)
	}
	if !sounded || !s.stillHeld() {
		log.Debug("released before cue, converging to idle")
		s.toIdle()
		return nil
	}

	s.setState(StateRecording)
	capture, err := s.d.Recorder.Start(ctx, audio.DefaultCaptureConfig(s.cfg.Platform))
	if err != nil {
		s.toIdle()
		return &CaptureError{Op: "start", Err: err}
	}

	s.mu.Lock()
	if !s.held {
		// Released while the recorder was spinning up: stop and discard.
		s.mu.Unlock()
		if _, err := s.d.Recorder.Stop(ctx, capture); err != nil {
			log.Warn("discarding orphaned capture failed", "error", err)
		}
		s.toIdle()
		return nil
	}
	s.capture = capture
	s.mu.Unlock()
	log.Debug("recording", "capture", capture.ID)
	return nil
}

// PressOut ends the hold gesture. With a live capture it stops the
// recorder, copies the clip to durable storage, appends the message record,
// and runs transcription to a terminal Outcome. Without one (early release)
// it returns a zero Outcome and nil.
func (s *Session) PressOut(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	s.held = false
	capture := s.capture
	s.capture = nil
	live := s.state == StateRecording && capture != nil
	if live {
		s.state = StateStopping
	}
	s.mu.Unlock()

	go s.d.Haptics.Impact()
	s.d.Routing.StopCue()

	if !live {
		// The in-flight PressIn, if any, sees the cleared held flag and
		// converges to idle on its own.
		return Outcome{}, nil
	}

	out, err := s.finish(ctx, capture)
	if err != nil {
		s.setState(StateFailed)
		return Outcome{}, err
	}
	if out.Kind == KindFailed {
		s.setState(StateFailed)
	} else {
		s.setState(StateDone)
	}
	return out, nil
}

// PlayLast replays the most recent durable clip through the loudspeaker.
func (s *Session) PlayLast(ctx context.Context) error {
	s.mu.Lock()
	clip, length := s.lastClip, s.lastLength
	s.mu.Unlock()

	if clip == "" || s.d.Playback == nil {
		return ErrNoRecording
	}
	if err := s.d.Playback.Load(clip); err != nil {
		return fmt.Errorf("load recording: %w", err)
	}
	if err := s.d.Routing.PlaybackWindow(ctx, length); err != nil {
		return fmt.Errorf("playback routing: %w", err)
	}
	_ = s.d.Playback.SeekTo(0)
	return s.d.Playback.Play()
}

// LastRecording reports the durable path and length of the newest clip this
// session produced.
func (s *Session) LastRecording() (string, time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastClip, s.lastLength, s.lastClip != ""
}

// finish runs stop-through-transcribe for one capture.
func (s *Session) finish(ctx context.Context, capture *audio.Capture) (Outcome, error) {
	clip, err := s.d.Recorder.Stop(ctx, capture)
	if err != nil {
		return Outcome{}, &CaptureError{Op: "stop", Err: err}
	}

	now := time.Now()
	durable, err := s.persistClip(clip.Path, now)
	if err != nil {
		return Outcome{}, &PersistenceError{Err: err}
	}

	msg := message.VoiceMessage{
		ID:          message.NewID(now),
		From:        message.FromMe,
		URI:         durable,
		DurationSec: math.Round(clip.Duration.Seconds()),
		At:          message.Timestamp(now),
		MIME:        s.cfg.Platform.CaptureMIME(),
	}
	// The record goes in before transcription starts: a slow or failed
	// transcription must never lose the recording itself.
	if err := s.d.Store.Append(msg); err != nil {
		return Outcome{}, &PersistenceError{Err: err}
	}

	s.mu.Lock()
	s.lastClip = durable
	s.lastLength = clip.Duration
	s.mu.Unlock()

	likelyEmpty := clip.Duration < s.cfg.MinClipDuration
	if likelyEmpty {
		s.log.Warn("clip under minimum duration, likely empty",
			"duration", clip.Duration, "min", s.cfg.MinClipDuration)
	}

	s.setState(StateTranscribing)
	out := s.transcribe(ctx, durable, msg.ID)
	out.MessageID = msg.ID
	out.Path = durable
	out.Duration = clip.Duration
	out.LikelyEmpty = likelyEmpty
	return out, nil
}

// transcribe runs the engine against the durable copy under the deadline.
// Whichever of engine completion, deadline, and context cancellation comes
// first decides the outcome; the losers are no-ops.
func (s *Session) transcribe(ctx context.Context, path, msgID string) Outcome {
	eng := s.d.Engines.Ready()
	if eng == nil {
		return Outcome{Kind: KindFailed, Err: ErrEngineNotReady}
	}

	job, err := eng.Transcribe(path, engine.Options{
		Language:         s.cfg.Language,
		MaxSegmentLength: 1,
		WordTimestamps:   true,
	})
	if err != nil {
		go s.d.Haptics.Notify(false)
		return Outcome{Kind: KindFailed, Err: fmt.Errorf("start transcription: %w", err)}
	}

	deadline := time.NewTimer(s.cfg.Timeout)
	defer deadline.Stop()

	select {
	case res := <-job.Result():
		if res.Err != nil {
			go s.d.Haptics.Notify(false)
			return Outcome{Kind: KindFailed, Err: fmt.Errorf("transcription: %w", res.Err)}
		}
		text := strings.TrimSpace(res.Result.Text)
		if text == "" {
			s.log.Info("no speech detected", "message", msgID)
			go s.d.Haptics.Notify(false)
			return Outcome{Kind: KindNoSpeech}
		}
		if err := s.d.Store.UpdateTranscript(msgID, text); err != nil {
			// The recording stands; only the transcript update was lost.
			s.log.Warn("transcript update failed", "message", msgID, "error", err)
		}
		go s.d.Haptics.Notify(true)
		return Outcome{Kind: KindTranscribed, Text: text}

	case <-deadline.C:
		s.log.Warn("transcription deadline expired", "message", msgID, "timeout", s.cfg.Timeout)
		job.Cancel()
		go s.d.Haptics.Notify(false)
		return Outcome{Kind: KindTimedOut}

	case <-ctx.Done():
		job.Cancel()
		return Outcome{Kind: KindFailed, Err: ctx.Err()}
	}
}

// persistClip copies the transient capture into the recordings directory.
// Temp capture paths can vanish once the recorder is reused, so the copy
// happens before any record references the clip.
func (s *Session) persistClip(tmpPath string, at time.Time) (string, error) {
	if err := os.MkdirAll(s.cfg.RecordingsDir, 0o755); err != nil {
		return "", fmt.Errorf("create recordings dir: %w", err)
	}

	dst := filepath.Join(s.cfg.RecordingsDir, message.FileName(at, s.cfg.Platform.CaptureExt()))

	src, err := os.Open(tmpPath)
	if err != nil {
		return "", fmt.Errorf("open capture: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create durable copy: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("copy recording: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("flush durable copy: %w", err)
	}
	return dst, nil
}

// ensurePermission asks for microphone access once and remembers the grant
// for the session lifetime. The resting audio mode is applied with the
// first grant.
func (s *Session) ensurePermission(ctx context.Context) error {
	s.mu.Lock()
	granted := s.permission
	s.mu.Unlock()
	if granted {
		return nil
	}

	ok, err := s.d.System.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("request permission: %w", err)
	}
	if !ok {
		return ErrPermissionDenied
	}

	s.mu.Lock()
	s.permission = true
	s.mu.Unlock()

	if err := s.d.Routing.BaseMode(ctx); err != nil {
		return fmt.Errorf("apply base audio mode: %w", err)
	}
	return nil
}

func (s *Session) stillHeld() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) toIdle() {
	s.mu.Lock()
	s.state = StateIdle
	s.capture = nil
	s.mu.Unlock()
}
