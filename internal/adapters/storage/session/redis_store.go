package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domain "rancho/internal/domain/session"
)

// DefaultKeyPrefix namespaces session keys in a shared Redis.
const DefaultKeyPrefix = "rancho:session:"

// RedisStore keeps sessions in Redis with a key TTL matching ExpiresAt.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore wraps a connected client.
// PRE: client is non-nil
// POST: keys are written under prefix (DefaultKeyPrefix when empty)
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// NewRedisClient parses a redis:// URL and pings the server.
// PRE: url is a valid Redis URL
// POST: returns a live client or an error
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

type redisRecord struct {
	Authenticated bool      `json:"authenticated"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func (r *RedisStore) key(token string) string {
	return r.prefix + token
}

// Get retrieves a live session by token.
// PRE: none
// POST: returns the session, or domain.ErrNotFound if missing or expired
func (r *RedisStore) Get(ctx context.Context, token string) (domain.Session, error) {
	raw, err := r.client.Get(ctx, r.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("session get: %w", err)
	}
	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Session{}, fmt.Errorf("session decode: %w", err)
	}
	s := domain.Session{
		Token:         token,
		Authenticated: rec.Authenticated,
		CreatedAt:     rec.CreatedAt,
		ExpiresAt:     rec.ExpiresAt,
	}
	if s.Expired(r.now()) {
		return domain.Session{}, domain.ErrNotFound
	}
	return s, nil
}

// Save stores a session with a key TTL of its remaining lifetime.
// PRE: s.Token is non-empty
// POST: key written; an already-expired session is deleted instead
func (r *RedisStore) Save(ctx context.Context, s domain.Session) error {
	ttl := s.TTL(r.now())
	if ttl <= 0 {
		return r.Delete(ctx, s.Token)
	}
	raw, err := json.Marshal(redisRecord{
		Authenticated: s.Authenticated,
		CreatedAt:     s.CreatedAt,
		ExpiresAt:     s.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	if err := r.client.Set(ctx, r.key(s.Token), raw, ttl).Err(); err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	return nil
}

// Delete removes a session. Deleting an unknown token is not an error.
func (r *RedisStore) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, r.key(token)).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}
