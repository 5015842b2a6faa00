package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"skillscape/internal/domain"
)

// AnswerStore persists completed onboarding answer sets per client under
// onboardingAnswers:{clientID}.
type AnswerStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAnswerStore keeps answer sets for ttl; zero keeps them until cleared.
func NewAnswerStore(client *redis.Client, ttl time.Duration) *AnswerStore {
	return &AnswerStore{client: client, ttl: ttl}
}

func (s *AnswerStore) SaveAnswers(ctx context.Context, clientID string, answers domain.Answers) error {
	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	return s.client.Set(ctx, s.key(clientID), raw, s.ttl).Err()
}

func (s *AnswerStore) LoadAnswers(ctx context.Context, clientID string) (domain.Answers, bool, error) {
	raw, err := s.client.Get(ctx, s.key(clientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load answers: %w", err)
	}
	var answers domain.Answers
	if err := json.Unmarshal(raw, &answers); err != nil {
		return nil, false, fmt.Errorf("decode answers: %w", err)
	}
	return answers, true, nil
}

func (s *AnswerStore) ClearAnswers(ctx context.Context, clientID string) error {
	return s.client.Del(ctx, s.key(clientID)).Err()
}

func (s *AnswerStore) key(clientID string) string {
	return domain.OnboardingAnswersKey + ":" + clientID
}
