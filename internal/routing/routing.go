// Package routing sequences platform audio-mode changes around the
// push-to-talk cue sound, so the cue leaves the loudspeaker rather than the
// earpiece and the device is back in a record-capable mode before capture.
package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/ronaldolimacloud/whisper-local-mobile/internal/audio"
)

// Settle intervals for the iOS choreography. Hardware routing is not
// instant; flipping modes back-to-back without these gaps swallows the cue
// or clips the start of the recording.
const (
	playbackSettle = 220 * time.Millisecond
	cueLength      = 320 * time.Millisecond
	recordSettle   = 120 * time.Millisecond
)

// restoreCap bounds the detached record-mode restore after a playback
// window, so a bogus clip duration cannot park the device in playback mode.
const restoreCap = 10 * time.Second

// Controller drives the audio mode and the cue player for one device.
type Controller struct {
	platform audio.Platform
	system   audio.System
	cue      audio.Player

	// wait is swapped out by tests to run the choreography instantly.
	wait func(ctx context.Context, d time.Duration) error
}

// New returns a Controller for the given platform over the given system and
// cue player.
func New(platform audio.Platform, system audio.System, cue audio.Player) *Controller {
	return &Controller{platform: platform, system: system, cue: cue, wait: sleep}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// BaseMode applies the resting audio mode: playback allowed in silent mode,
// recording enabled, output kept off the earpiece.
func (c *Controller) BaseMode(ctx context.Context) error {
	return c.system.SetMode(ctx, audio.Mode{PlayWhenSilenced: true, AllowRecording: true})
}

// PlayCue plays the talk cue and returns with the device in a record-capable
// mode. held is sampled immediately before the cue is triggered, the last
// reversible point; when it reports the gesture has ended, PlayCue restores
// record routing and returns false without sounding the cue. Android needs
// no mode dance, the cue plays straight over record routing there.
func (c *Controller) PlayCue(ctx context.Context, held func() bool) (bool, error) {
	if c.platform != audio.IOS {
		if held != nil && !held() {
			return false, nil
		}
		c.startCue()
		return true, nil
	}

	// Leave record mode first or the cue defaults to the earpiece
	if err := c.system.SetMode(ctx, audio.Mode{PlayWhenSilenced: true}); err != nil {
		return false, fmt.Errorf("enter playback mode: %w", err)
	}
	if err := c.wait(ctx, playbackSettle); err != nil {
		return false, err
	}

	if held != nil && !held() {
		// Released during the settle window: abort before the cue sounds,
		// but leave routing record-capable rather than stuck in playback.
		if err := c.BaseMode(ctx); err != nil {
			return false, fmt.Errorf("restore record mode: %w", err)
		}
		return false, nil
	}

	c.startCue()
	if err := c.wait(ctx, cueLength); err != nil {
		return false, err
	}

	if err := c.system.SetMode(ctx, audio.Mode{PlayWhenSilenced: true, AllowRecording: true}); err != nil {
		return false, fmt.Errorf("enter record mode: %w", err)
	}
	if err := c.wait(ctx, recordSettle); err != nil {
		return false, err
	}
	return true, nil
}

// startCue triggers the cue from its start. Best effort: a silent cue never
// blocks a capture.
func (c *Controller) startCue() {
	_ = c.cue.SeekTo(0)
	_ = c.cue.Play()
}

// StopCue halts the cue if it is still sounding.
func (c *Controller) StopCue() {
	_ = c.cue.Pause()
	_ = c.cue.SeekTo(0)
}

// PlaybackWindow switches to playback routing for one clip and schedules
// the return to record routing after the clip should have finished. The
// restore runs detached; its failure never reaches the caller.
func (c *Controller) PlaybackWindow(ctx context.Context, clipLength time.Duration) error {
	if c.platform != audio.IOS {
		return nil
	}
	if err := c.system.SetMode(ctx, audio.Mode{PlayWhenSilenced: true}); err != nil {
		return fmt.Errorf("enter playback mode: %w", err)
	}
	if err := c.wait(ctx, recordSettle); err != nil {
		return err
	}

	restoreAfter := clipLength + 250*time.Millisecond
	if restoreAfter > restoreCap {
		restoreAfter = restoreCap
	}
	time.AfterFunc(restoreAfter, func() {
		_ = c.BaseMode(context.Background())
	})
	return nil
}
