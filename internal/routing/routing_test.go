package routing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ronaldolimacloud/whisper-local-mobile/internal/audio"
)

// fakeSystem records every mode transition.
type fakeSystem struct {
	mu    sync.Mutex
	modes []audio.Mode
}

func (f *fakeSystem) RequestPermission(ctx context.Context) (bool, error) { return true, nil }

func (f *fakeSystem) SetMode(ctx context.Context, mode audio.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modes = append(f.modes, mode)
	return nil
}

func (f *fakeSystem) history() []audio.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]audio.Mode(nil), f.modes...)
}

// fakePlayer counts cue triggers.
type fakePlayer struct {
	plays  int
	pauses int
	seeks  []float64
}

func (f *fakePlayer) Load(path string) error { return nil }
func (f *fakePlayer) Play() error            { f.plays++; return nil }
func (f *fakePlayer) Pause() error           { f.pauses++; return nil }
func (f *fakePlayer) SeekTo(s float64) error { f.seeks = append(f.seeks, s); return nil }
func (f *fakePlayer) SetRate(float64) error  { return nil }
func (f *fakePlayer) Status() audio.Status   { return audio.Status{} }

// instant replaces the settle waits so tests run without real sleeps.
func instant(ctx context.Context, d time.Duration) error { return nil }

func newTestController(p audio.Platform) (*Controller, *fakeSystem, *fakePlayer) {
	sys := &fakeSystem{}
	cue := &fakePlayer{}
	c := New(p, sys, cue)
	c.wait = instant
	return c, sys, cue
}

func alwaysHeld() bool { return true }

func TestPlayCueIOSSequence(t *testing.T) {
	c, sys, cue := newTestController(audio.IOS)

	ok, err := c.PlayCue(context.Background(), alwaysHeld)
	if err != nil {
		t.Fatalf("PlayCue: %v", err)
	}
	if !ok {
		t.Fatal("PlayCue = false, want true")
	}

	modes := sys.history()
	if len(modes) != 2 {
		t.Fatalf("got %d mode changes, want 2", len(modes))
	}
	if modes[0].AllowRecording {
		t.Error("first mode change should leave record routing")
	}
	if !modes[0].PlayWhenSilenced {
		t.Error("playback mode should play when silenced")
	}
	if !modes[1].AllowRecording {
		t.Error("final mode should be record-capable")
	}

	if cue.plays != 1 {
		t.Errorf("cue played %d times, want 1", cue.plays)
	}
	if len(cue.seeks) != 1 || cue.seeks[0] != 0 {
		t.Errorf("cue seeks = %v, want [0]", cue.seeks)
	}
}

func TestPlayCueIOSEarlyRelease(t *testing.T) {
	c, sys, cue := newTestController(audio.IOS)

	ok, err := c.PlayCue(context.Background(), func() bool { return false })
	if err != nil {
		t.Fatalf("PlayCue: %v", err)
	}
	if ok {
		t.Fatal("PlayCue = true, want false after early release")
	}

	if cue.plays != 0 {
		t.Errorf("cue played %d times, want 0", cue.plays)
	}

	modes := sys.history()
	if len(modes) == 0 {
		t.Fatal("no mode changes recorded")
	}
	last := modes[len(modes)-1]
	if !last.AllowRecording {
		t.Error("routing left in playback mode after abort")
	}
}

func TestPlayCueAndroidSkipsModeDance(t *testing.T) {
	c, sys, cue := newTestController(audio.Android)

	ok, err := c.PlayCue(context.Background(), alwaysHeld)
	if err != nil {
		t.Fatalf("PlayCue: %v", err)
	}
	if !ok {
		t.Fatal("PlayCue = false, want true")
	}
	if len(sys.history()) != 0 {
		t.Errorf("got %d mode changes on android, want 0", len(sys.history()))
	}
	if cue.plays != 1 {
		t.Errorf("cue played %d times, want 1", cue.plays)
	}
}

func TestPlayCueAndroidEarlyRelease(t *testing.T) {
	c, _, cue := newTestController(audio.Android)

	ok, err := c.PlayCue(context.Background(), func() bool { return false })
	if err != nil {
		t.Fatalf("PlayCue: %v", err)
	}
	if ok {
		t.Fatal("PlayCue = true, want false")
	}
	if cue.plays != 0 {
		t.Errorf("cue played %d times, want 0", cue.plays)
	}
}

func TestPlayCueCancelledContext(t *testing.T) {
	c, _, cue := newTestController(audio.IOS)
	c.wait = sleep // real waits so cancellation has a window

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.PlayCue(ctx, alwaysHeld); err == nil {
		t.Error("PlayCue with cancelled context should fail")
	}
	if cue.plays != 0 {
		t.Errorf("cue played %d times, want 0", cue.plays)
	}
}

func TestStopCue(t *testing.T) {
	c, _, cue := newTestController(audio.IOS)

	c.StopCue()
	if cue.pauses != 1 {
		t.Errorf("pauses = %d, want 1", cue.pauses)
	}
	if len(cue.seeks) != 1 || cue.seeks[0] != 0 {
		t.Errorf("seeks = %v, want [0]", cue.seeks)
	}
}

func TestBaseMode(t *testing.T) {
	c, sys, _ := newTestController(audio.IOS)

	if err := c.BaseMode(context.Background()); err != nil {
		t.Fatalf("BaseMode: %v", err)
	}
	modes := sys.history()
	if len(modes) != 1 {
		t.Fatalf("got %d mode changes, want 1", len(modes))
	}
	want := audio.Mode{PlayWhenSilenced: true, AllowRecording: true}
	if modes[0] != want {
		t.Errorf("mode = %+v, want %+v", modes[0], want)
	}
}

func TestPlaybackWindowRestoresRecordMode(t *testing.T) {
	c, sys, _ := newTestController(audio.IOS)

	if err := c.PlaybackWindow(context.Background(), 0); err != nil {
		t.Fatalf("PlaybackWindow: %v", err)
	}

	modes := sys.history()
	if len(modes) != 1 || modes[0].AllowRecording {
		t.Fatalf("expected one playback-mode change, got %+v", modes)
	}

	// The detached restore fires after clip length + margin (250ms here)
	deadline := time.After(2 * time.Second)
	for {
		if h := sys.history(); len(h) >= 2 {
			if !h[len(h)-1].AllowRecording {
				t.Error("restore did not re-enable recording")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("record mode never restored")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPlaybackWindowAndroidNoop(t *testing.T) {
	c, sys, _ := newTestController(audio.Android)

	if err := c.PlaybackWindow(context.Background(), time.Second); err != nil {
		t.Fatalf("PlaybackWindow: %v", err)
	}
	if len(sys.history()) != 0 {
		t.Errorf("got %d mode changes on android, want 0", len(sys.history()))
	}
}
