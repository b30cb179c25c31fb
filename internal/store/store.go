// Package store persists the ordered voice-message history as a single JSON
// array blob.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/ronaldolimacloud/whisper-local-mobile/internal/blob"
	"github.com/ronaldolimacloud/whisper-local-mobile/internal/message"
)

// Key is the fixed blob key the message history lives under.
const Key = "VOICE_MESSAGES_V1"

// Store reads and mutates the voice-message history. Mutations within one
// Store are serialized, so in-process appends cannot interleave their
// read-modify-write. Two Stores over the same backing blob remain
// last-writer-wins; this is a single-user, single-device app.
type Store struct {
	mu    sync.Mutex
	blobs blob.Store
}

// New returns a Store over the given blob backend.
func New(blobs blob.Store) *Store {
	return &Store{blobs: blobs}
}

// Load returns all messages in insertion order. Malformed or unreadable
// persisted data yields an empty history rather than an error; a corrupt
// blob must never brick the message list.
func (s *Store) Load() []message.VoiceMessage {
	raw, err := s.blobs.Get(Key)
	if err != nil || len(raw) == 0 {
		return nil
	}
	var msgs []message.VoiceMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil
	}
	return msgs
}

// History returns all messages re-sorted by capture time ascending, the
// order the history screen displays them in.
func (s *Store) History() []message.VoiceMessage {
	msgs := s.Load()
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Time().Before(msgs[j].Time())
	})
	return msgs
}

// Append adds msg to the end of the history.
func (s *Store) Append(msg message.VoiceMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(append(s.Load(), msg))
}

// UpdateTranscript replaces the transcript of the message with the given id,
// leaving every other field untouched. Unknown ids are a no-op, not an
// error: the record may have been cleared while transcription ran.
func (s *Store) UpdateTranscript(id, transcript string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.Load()
	for i := range msgs {
		if msgs[i].ID == id {
			msgs[i].Transcript = transcript
			return s.save(msgs)
		}
	}
	return nil
}

// Clear removes all messages.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.blobs.Delete(Key); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}

func (s *Store) save(msgs []message.VoiceMessage) error {
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	if err := s.blobs.Set(Key, data); err != nil {
		return fmt.Errorf("save messages: %w", err)
	}
	return nil
}
