package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type stubRedis struct {
	redis.Cmdable
	ttls   map[string]time.Duration
	setErr error
}

func newStubRedis() *stubRedis {
	return &stubRedis{ttls: map[string]time.Duration{}}
}

func (s *stubRedis) Set(_ context.Context, key string, _ interface{}, expiration time.Duration) *redis.StatusCmd {
	if s.setErr != nil {
		return redis.NewStatusResult("", s.setErr)
	}
	s.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (s *stubRedis) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	var count int64
	for _, key := range keys {
		if _, ok := s.ttls[key]; ok {
			count++
		}
	}
	return redis.NewIntResult(count, nil)
}

func TestRedisRevocationStoreRevokesUntilExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	client := newStubRedis()
	store := NewRedisRevocationStore(client)
	store.clock = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Revoke(ctx, "session-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected revoke error: %v", err)
	}
	if ttl := client.ttls[revokedSessionPrefix+"session-1"]; ttl != time.Hour {
		t.Fatalf("expected one hour ttl, got %s", ttl)
	}

	revoked, err := store.IsRevoked(ctx, "session-1")
	if err != nil || !revoked {
		t.Fatalf("expected session to be revoked, revoked=%v err=%v", revoked, err)
	}
	revoked, err = store.IsRevoked(ctx, "session-2")
	if err != nil || revoked {
		t.Fatalf("expected unrelated session to be active, revoked=%v err=%v", revoked, err)
	}
}

func TestRedisRevocationStoreSkipsExpiredSessions(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	client := newStubRedis()
	store := NewRedisRevocationStore(client)
	store.clock = func() time.Time { return now }

	if err := store.Revoke(context.Background(), "session-1", now.Add(-time.Second)); err != nil {
		t.Fatalf("unexpected revoke error: %v", err)
	}
	if len(client.ttls) != 0 {
		t.Fatalf("expected no redis writes for expired session, got %v", client.ttls)
	}
}

func TestRedisRevocationStoreErrors(t *testing.T) {
	client := newStubRedis()
	client.setErr = errors.New("connection refused")
	store := NewRedisRevocationStore(client)

	if err := store.Revoke(context.Background(), "", time.Now().Add(time.Hour)); !errors.Is(err, errMissingSessionID) {
		t.Fatalf("expected missing session id error, got %v", err)
	}
	if err := store.Revoke(context.Background(), "session-1", time.Now().Add(time.Hour)); err == nil {
		t.Fatalf("expected redis error to propagate")
	}
}
