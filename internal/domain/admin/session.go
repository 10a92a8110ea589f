package admin

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "admin:session:"

// SessionStore keeps opaque admin sessions in Redis with a sliding TTL
type SessionStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl == 0 {
		ttl = 12 * time.Hour
	}
	return &SessionStore{redis: client, ttl: ttl}
}

func (s *SessionStore) Create(ctx context.Context, username string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: session token", ErrInternal)
	}
	token := hex.EncodeToString(buf)

	if err := s.redis.Set(ctx, sessionKeyPrefix+token, username, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: store session", ErrInternal)
	}
	return token, nil
}

// Validate returns the admin username behind a token and refreshes its TTL
func (s *SessionStore) Validate(ctx context.Context, token string) (string, error) {
	key := sessionKeyPrefix + token
	username, err := s.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: read session", ErrInternal)
	}

	s.redis.Expire(ctx, key, s.ttl)
	return username, nil
}

func (s *SessionStore) Destroy(ctx context.Context, token string) error {
	return s.redis.Del(ctx, sessionKeyPrefix+token).Err()
}

func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}
