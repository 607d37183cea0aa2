package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedSessionPrefix = "session:revoked:"

var errMissingSessionID = errors.New("revocation: session id required")

// RevocationStore records sessions that were ended before their expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, sessionID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// NoopRevocationStore never revokes; sign-out then relies on clearing the cookie.
type NoopRevocationStore struct{}

func (NoopRevocationStore) Revoke(context.Context, string, time.Time) error {
	return nil
}

func (NoopRevocationStore) IsRevoked(context.Context, string) (bool, error) {
	return false, nil
}

// RedisRevocationStore keeps revoked session ids in Redis until the session would have expired.
type RedisRevocationStore struct {
	client redis.Cmdable
	prefix string
	clock  func() time.Time
}

// NewRedisRevocationStore creates a Redis-backed revocation store.
func NewRedisRevocationStore(client redis.Cmdable) *RedisRevocationStore {
	return &RedisRevocationStore{
		client: client,
		prefix: revokedSessionPrefix,
		clock:  time.Now,
	}
}

func (r *RedisRevocationStore) key(sessionID string) string {
	return r.prefix + sessionID
}

// Revoke marks the session as ended. Sessions already past expiry are ignored.
func (r *RedisRevocationStore) Revoke(ctx context.Context, sessionID string, expiresAt time.Time) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errMissingSessionID
	}
	ttl := expiresAt.Sub(r.clock())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.key(sessionID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revocation: set %s: %w", sessionID, err)
	}
	return nil
}

// IsRevoked reports whether the session was revoked.
func (r *RedisRevocationStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return false, errMissingSessionID
	}
	count, err := r.client.Exists(ctx, r.key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("revocation: lookup %s: %w", sessionID, err)
	}
	return count > 0, nil
}
