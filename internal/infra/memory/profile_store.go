package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"skillscape/internal/domain"
)

// ProfileStore is an in-memory users collection. Documents are kept encoded so
// readers never share state with writers.
type ProfileStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{docs: make(map[string][]byte)}
}

func (s *ProfileStore) GetProfile(_ context.Context, uid string) (domain.UserProfile, error) {
	s.mu.RLock()
	raw, ok := s.docs[uid]
	s.mu.RUnlock()
	if !ok {
		return domain.UserProfile{}, domain.ErrProfileNotFound
	}
	var profile domain.UserProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return domain.UserProfile{}, fmt.Errorf("decode profile %s: %w", uid, err)
	}
	return profile, nil
}

// SetProfile replaces the whole document.
func (s *ProfileStore) SetProfile(_ context.Context, profile domain.UserProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", profile.UID, err)
	}
	s.mu.Lock()
	s.docs[profile.UID] = raw
	s.mu.Unlock()
	return nil
}

// MergeProfile sets the given top-level fields, creating the document if needed.
func (s *ProfileStore) MergeProfile(_ context.Context, uid string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := map[string]any{"uid": uid}
	if raw, ok := s.docs[uid]; ok {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("decode profile %s: %w", uid, err)
		}
	}
	for key, value := range fields {
		doc[key] = value
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", uid, err)
	}
	s.docs[uid] = raw
	return nil
}
