package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisLocker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisLocker(client, "pathway:")
}

func TestTryLock_Exclusive(t *testing.T) {
	mr, l := setupTestRedis(t)
	ctx := context.Background()

	token, ok, err := l.TryLock(ctx, "patient-1", time.Minute)
	if err != nil || !ok || token == "" {
		t.Fatalf("expected lock, got token=%q ok=%v err=%v", token, ok, err)
	}
	if got, _ := mr.Get("pathway:patient-1"); got != token {
		t.Errorf("expected stored token %q, got %q", token, got)
	}

	_, ok, err = l.TryLock(ctx, "patient-1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("second TryLock on held key should fail")
	}

	if _, ok, _ := l.TryLock(ctx, "patient-2", time.Minute); !ok {
		t.Error("different key should be lockable")
	}
}

func TestUnlock_ReleasesOwnedLock(t *testing.T) {
	mr, l := setupTestRedis(t)
	ctx := context.Background()

	token, _, _ := l.TryLock(ctx, "patient-1", time.Minute)
	if err := l.Unlock(ctx, "patient-1", token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mr.Exists("pathway:patient-1") {
		t.Error("expected key to be deleted")
	}
	if _, ok, _ := l.TryLock(ctx, "patient-1", time.Minute); !ok {
		t.Error("expected lock to be available again")
	}
}

func TestUnlock_WrongToken(t *testing.T) {
	mr, l := setupTestRedis(t)
	ctx := context.Background()

	l.TryLock(ctx, "patient-1", time.Minute)
	err := l.Unlock(ctx, "patient-1", "not-mine")
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if !mr.Exists("pathway:patient-1") {
		t.Error("lock held by another owner must survive")
	}
}

func TestUnlock_Expired(t *testing.T) {
	mr, l := setupTestRedis(t)
	ctx := context.Background()

	token, _, _ := l.TryLock(ctx, "patient-1", time.Second)
	mr.FastForward(2 * time.Second)

	if err := l.Unlock(ctx, "patient-1", token); err != nil {
		t.Errorf("unlocking an expired lock should not fail, got %v", err)
	}
}

func TestPing(t *testing.T) {
	mr, l := setupTestRedis(t)
	if err := l.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mr.Close()
	if err := l.Ping(context.Background()); err == nil {
		t.Error("expected error after server shutdown")
	}
}
