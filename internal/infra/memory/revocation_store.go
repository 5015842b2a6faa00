package memory

import (
	"context"
	"sync"
	"time"
)

// RevocationStore remembers signed-out session ids until their expiry.
type RevocationStore struct {
	clock func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewRevocationStore() *RevocationStore {
	return &RevocationStore{clock: time.Now, revoked: make(map[string]time.Time)}
}

func (s *RevocationStore) Revoke(_ context.Context, sessionID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	for id, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, id)
		}
	}
	s.revoked[sessionID] = until
	return nil
}

func (s *RevocationStore) Revoked(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.revoked[sessionID]
	return ok && until.After(s.clock()), nil
}
