// Package playback keeps the most recent spoken response of each session so
// the front end can fetch and play it.
package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MIMETypeMP3 is the content type of every clip.
const MIMETypeMP3 = "audio/mp3"

// ErrEmptyClip means the staged file held no audio.
var ErrEmptyClip = errors.New("audio file is empty")

// Clip is one synthesized response ready for playback.
type Clip struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	MIME      string    `json:"mime"`
	Data      []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store holds the latest clip per session. A new clip replaces the previous
// one.
type Store struct {
	mu     sync.RWMutex
	latest map[string]Clip
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{latest: make(map[string]Clip)}
}

// Present reads the staged file at path into memory and records it as the
// session's latest clip. The caller may delete the file afterwards.
func (s *Store) Present(ctx context.Context, sessionID, path, mime string) (Clip, error) {
	if err := ctx.Err(); err != nil {
		return Clip{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Clip{}, fmt.Errorf("read audio file: %w", err)
	}
	if len(data) == 0 {
		return Clip{}, ErrEmptyClip
	}

	clip := Clip{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		MIME:      mime,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.latest[sessionID] = clip
	s.mu.Unlock()

	return clip, nil
}

// Latest returns the session's most recent clip.
func (s *Store) Latest(sessionID string) (Clip, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clip, ok := s.latest[sessionID]
	return clip, ok
}

// Clip returns the clip with clipID if it is still the session's latest.
func (s *Store) Clip(sessionID, clipID string) (Clip, bool) {
	clip, ok := s.Latest(sessionID)
	if !ok || clip.ID != clipID {
		return Clip{}, false
	}
	return clip, true
}
