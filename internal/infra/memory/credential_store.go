package memory

import (
	"context"
	"sync"
	"time"

	"skillscape/internal/domain"
)

// CredentialStore keeps identity provider accounts in memory.
type CredentialStore struct {
	mu        sync.RWMutex
	byID      map[string]domain.Credential
	byEmail   map[string]string
	bySubject map[string]string
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		byID:      make(map[string]domain.Credential),
		byEmail:   make(map[string]string),
		bySubject: make(map[string]string),
	}
}

func (s *CredentialStore) CreateCredential(_ context.Context, cred domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cred.Email != "" {
		if _, taken := s.byEmail[cred.Email]; taken {
			return domain.ErrIdentityExists
		}
	}
	if cred.Subject != "" {
		if _, taken := s.bySubject[subjectKey(cred.Provider, cred.Subject)]; taken {
			return domain.ErrIdentityExists
		}
		s.bySubject[subjectKey(cred.Provider, cred.Subject)] = cred.UID
	}
	if cred.Email != "" {
		s.byEmail[cred.Email] = cred.UID
	}
	s.byID[cred.UID] = cred
	return nil
}

func (s *CredentialStore) CredentialByEmail(_ context.Context, email string) (domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uid, ok := s.byEmail[email]
	if !ok {
		return domain.Credential{}, domain.ErrIdentityNotFound
	}
	return s.byID[uid], nil
}

func (s *CredentialStore) CredentialBySubject(_ context.Context, provider, subject string) (domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uid, ok := s.bySubject[subjectKey(provider, subject)]
	if !ok {
		return domain.Credential{}, domain.ErrIdentityNotFound
	}
	return s.byID[uid], nil
}

func (s *CredentialStore) UpdateDisplayName(_ context.Context, uid, displayName string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.byID[uid]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	cred.DisplayName = displayName
	cred.UpdatedAt = at
	s.byID[uid] = cred
	return nil
}

func subjectKey(provider, subject string) string {
	return provider + "|" + subject
}
