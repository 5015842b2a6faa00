package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore marks signed-out session ids until their tokens expire.
type RevocationStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRevocationStore(client *redis.Client) *RevocationStore {
	return &RevocationStore{client: client, now: time.Now}
}

func (s *RevocationStore) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.key(sessionID), "1", ttl).Err()
}

func (s *RevocationStore) Revoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RevocationStore) key(sessionID string) string {
	return "auth:revoked:" + sessionID
}
