package memory

import (
	"context"
	"sync"
	"time"

	"skillscape/internal/domain"
)

// SessionStore is an in-memory implementation of app.QuizSessionRepository.
// Sessions idle for longer than ttl are treated as gone.
type SessionStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]storedSession
}

type storedSession struct {
	session   domain.QuizSession
	expiresAt time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]storedSession),
	}
}

func (s *SessionStore) Get(_ context.Context, id string) (domain.QuizSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.sessions[id]
	if !ok || s.expired(stored) {
		return domain.QuizSession{}, domain.ErrQuizSessionNotFound
	}
	session := stored.session
	session.Answers = stored.session.Answers.Clone()
	return session, nil
}

func (s *SessionStore) Save(_ context.Context, session domain.QuizSession) error {
	session.Answers = session.Answers.Clone()
	stored := storedSession{session: session}
	if s.ttl > 0 {
		stored.expiresAt = s.clock().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = stored
	s.sweepLocked()
	return nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *SessionStore) expired(stored storedSession) bool {
	return !stored.expiresAt.IsZero() && !stored.expiresAt.After(s.clock())
}

func (s *SessionStore) sweepLocked() {
	for id, stored := range s.sessions {
		if s.expired(stored) {
			delete(s.sessions, id)
		}
	}
}
