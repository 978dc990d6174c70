package chat

import (
	"sync"
	"time"
)

// Session captures one user's selection and chat history. It lives until the
// process exits; nothing ever clears it.
//
// Callers hold Lock for the whole user action (voice capture, selection,
// submit) so a session handles one action at a time.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	mu       sync.Mutex
	selected string
	history  []Turn
}

// NewSession returns an idle session with an empty history.
func NewSession(id string, createdAt time.Time) *Session {
	return &Session{
		ID:        id,
		CreatedAt: createdAt,
		history:   make([]Turn, 0, 16),
	}
}

// Lock acquires exclusive access to the session state.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session state.
func (s *Session) Unlock() { s.mu.Unlock() }

// Selected returns the current emotion label, if any.
func (s *Session) Selected() (string, bool) {
	return s.selected, s.selected != ""
}

// Select overwrites the current emotion label. Last write wins.
func (s *Session) Select(label string) {
	s.selected = label
}

// Append records a turn and returns the new history length.
func (s *Session) Append(turn Turn) int {
	s.history = append(s.history, turn)
	return len(s.history)
}

// History returns a copy of the turns in append order.
func (s *Session) History() []Turn {
	copied := make([]Turn, len(s.history))
	copy(copied, s.history)
	return copied
}

// Len returns the number of recorded turns.
func (s *Session) Len() int {
	return len(s.history)
}
