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

// SessionStore keeps quiz sessions in Redis so any instance can serve them.
// Each save refreshes the idle TTL.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Get(ctx context.Context, id string) (domain.QuizSession, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.QuizSession{}, domain.ErrQuizSessionNotFound
	}
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("get quiz session %s: %w", id, err)
	}
	var session domain.QuizSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.QuizSession{}, fmt.Errorf("decode quiz session %s: %w", id, err)
	}
	if session.Answers == nil {
		session.Answers = domain.Answers{}
	}
	return session, nil
}

func (s *SessionStore) Save(ctx context.Context, session domain.QuizSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode quiz session %s: %w", session.ID, err)
	}
	return s.client.Set(ctx, s.key(session.ID), raw, s.ttl).Err()
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *SessionStore) key(id string) string {
	return "quiz:session:" + id
}
