package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/emotion-voice/backend/internal/model/chat"
)

var ErrSessionNotFound = errors.New("session not found")

// Service is the in-memory registry of assistant sessions. Sessions live
// until the process exits.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*chat.Session
	now      func() time.Time
}

// NewService creates an empty registry.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]*chat.Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession provisions an idle session with a fresh id.
func (s *Service) CreateSession(_ context.Context) (*chat.Session, error) {
	session := chat.NewSession(uuid.NewString(), s.now())

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (*chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
