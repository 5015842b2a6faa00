package memory

import (
	"context"
	"sync"

	"skillscape/internal/domain"
)

// AnswerStore keeps completed onboarding answer sets per client.
type AnswerStore struct {
	mu      sync.RWMutex
	answers map[string]domain.Answers
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{answers: make(map[string]domain.Answers)}
}

func (s *AnswerStore) SaveAnswers(_ context.Context, clientID string, answers domain.Answers) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[clientID] = answers.Clone()
	return nil
}

func (s *AnswerStore) LoadAnswers(_ context.Context, clientID string) (domain.Answers, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	answers, ok := s.answers[clientID]
	if !ok {
		return nil, false, nil
	}
	return answers.Clone(), true, nil
}

func (s *AnswerStore) ClearAnswers(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.answers, clientID)
	return nil
}
