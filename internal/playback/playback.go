// Package playback sequences an ordered list of voice-message clips through
// a single player: sequential play with auto-advance, clamped skipping, and
// cyclic rate selection.
package playback

import (
	"fmt"
	"sync"

	"github.com/ronaldolimacloud/whisper-local-mobile/internal/audio"
	"github.com/ronaldolimacloud/whisper-local-mobile/internal/message"
)

// Rates are the supported speed multipliers, in cycle order.
var Rates = []float64{0.8, 1.0, 1.25, 1.5, 2.0}

// endEpsilon is how close (in seconds) the reported position must get to
// the duration before a stopped player counts as end-of-track.
const endEpsilon = 0.05

// Track is one playable entry.
type Track struct {
	ID  string
	Ref string
}

// Queue plays tracks in order. The zero index state is "nothing selected";
// Play from there starts at the first track.
type Queue struct {
	player audio.Player

	mu       sync.Mutex
	tracks   []Track
	index    int // -1 when nothing is selected
	rateIdx  int
	advanced bool // end-of-track already consumed for the current selection
}

// New builds a queue over the given tracks at normal speed.
func New(player audio.Player, tracks []Track) *Queue {
	return &Queue{player: player, tracks: tracks, index: -1, rateIdx: 1}
}

// FromMessages builds a queue over a message history, keeping its order.
func FromMessages(player audio.Player, msgs []message.VoiceMessage) *Queue {
	tracks := make([]Track, len(msgs))
	for i, m := range msgs {
		tracks[i] = Track{ID: m.ID, Ref: m.URI}
	}
	return New(player, tracks)
}

// Index reports the selected position, false when nothing is selected.
func (q *Queue) Index() (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.index, q.index >= 0
}

// Rate reports the current speed multiplier.
func (q *Queue) Rate() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Rates[q.rateIdx]
}

// Play starts the current track, or the first one when nothing is selected.
func (q *Queue) Play() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tracks) == 0 {
		return nil
	}
	if q.index < 0 {
		return q.jump(0)
	}
	return q.player.Play()
}

// Pause pauses playback without losing the selection.
func (q *Queue) Pause() error {
	return q.player.Pause()
}

// Toggle pauses when playing, plays otherwise.
func (q *Queue) Toggle() error {
	if q.player.Status().Playing {
		return q.Pause()
	}
	return q.Play()
}

// Next moves one track forward, clamped at the last track. With nothing
// selected it starts at the first track.
func (q *Queue) Next() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch {
	case len(q.tracks) == 0:
		return nil
	case q.index < 0:
		return q.jump(0)
	case q.index+1 < len(q.tracks):
		return q.jump(q.index + 1)
	default:
		return nil
	}
}

// Prev moves one track back, clamped at the first track.
func (q *Queue) Prev() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.index < 0 {
		return nil
	}
	return q.jump(max(0, q.index-1))
}

// JumpTo selects an arbitrary position.
func (q *Queue) JumpTo(i int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i < 0 || i >= len(q.tracks) {
		return fmt.Errorf("jump to %d: index out of range [0,%d)", i, len(q.tracks))
	}
	return q.jump(i)
}

// JumpToID selects the track carrying the given message id. An unknown id
// leaves the queue untouched.
func (q *Queue) JumpToID(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, tr := range q.tracks {
		if tr.ID == id {
			return q.jump(i)
		}
	}
	return nil
}

// CycleRate advances to the next speed multiplier, wrapping around, and
// returns it. The rate carries over to later tracks.
func (q *Queue) CycleRate() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rateIdx = (q.rateIdx + 1) % len(Rates)
	rate := Rates[q.rateIdx]
	_ = q.player.SetRate(rate)
	return rate
}

// Observe feeds a playback status report into the queue. When the current
// track has played out it advances to the next one, or clears the selection
// at the end of the list. Duplicate end-of-track reports for the same
// selection are absorbed, so a repeated signal cannot double-advance.
func (q *Queue) Observe(st audio.Status) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.index < 0 {
		return nil
	}
	ended := st.Duration > 0 && st.Position >= st.Duration-endEpsilon && !st.Playing
	if !ended || q.advanced {
		return nil
	}
	q.advanced = true
	if q.index+1 < len(q.tracks) {
		return q.jump(q.index + 1)
	}
	q.index = -1
	return nil
}

// jump loads and starts the track at i. Caller holds q.mu.
func (q *Queue) jump(i int) error {
	q.advanced = false
	q.index = i
	if err := q.player.Load(q.tracks[i].Ref); err != nil {
		return fmt.Errorf("load track %d: %w", i, err)
	}
	_ = q.player.SetRate(Rates[q.rateIdx])
	return q.player.Play()
}
