// Package message defines the persisted voice-message record and its
// display helpers.
package message

import (
	"fmt"
	"strings"
	"time"
)

// Origin tags who produced a message. This core only ever records FromMe;
// FromThem exists for the conversation-style history grouping.
type Origin string

const (
	FromMe   Origin = "me"
	FromThem Origin = "them"
)

// VoiceMessage is one recorded utterance. The JSON shape is the
// VOICE_MESSAGES_V1 wire format; optional fields are omitted when unset so
// older readers keep working, and unknown fields from newer writers are
// ignored on decode.
type VoiceMessage struct {
	ID          string  `json:"id"`
	From        Origin  `json:"from"`
	URI         string  `json:"uri"`
	DurationSec float64 `json:"durationSec,omitempty"`
	At          string  `json:"at"`
	MIME        string  `json:"mime,omitempty"`
	Transcript  string  `json:"transcript,omitempty"`
}

// Time parses the capture timestamp. The zero time is returned for records
// whose timestamp cannot be parsed.
func (m VoiceMessage) Time() time.Time {
	t, err := time.Parse(time.RFC3339, m.At)
	if err != nil {
		return time.Time{}
	}
	return t
}

// isoMillis matches the JavaScript Date.toISOString format the original
// store was written with: UTC, millisecond precision, trailing Z.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Timestamp formats a capture time for the At field.
func Timestamp(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

// NewID mints a message ID from the capture time. Millisecond resolution is
// collision-free for a single device pressing one button.
func NewID(t time.Time) string {
	return fmt.Sprintf("vm_%d", t.UnixMilli())
}

var fileNameSanitizer = strings.NewReplacer(":", "-", ".", "-")

// FileName derives a durable capture filename from the capture time, with
// the colon and period characters no filesystem likes replaced.
func FileName(t time.Time, ext string) string {
	return "ptt_" + fileNameSanitizer.Replace(Timestamp(t)) + ext
}

// FormatDuration renders a clip length for display: empty for unset, a
// "< 1 sec." marker for sub-second clips, m:ss otherwise.
func FormatDuration(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	if seconds < 1 {
		return "< 1 sec."
	}
	secs := int(seconds + 0.5)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
