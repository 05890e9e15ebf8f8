package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memLockStore struct {
	data map[string]string
}

func newMemLockStore() *memLockStore {
	return &memLockStore{data: map[string]string{}}
}

func (s *memLockStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = value.(string)
	return true, nil
}

func (s *memLockStore) Get(ctx context.Context, key string) (string, error) {
	if val, ok := s.data[key]; ok {
		return val, nil
	}
	return "", redis.Nil
}

func (s *memLockStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func TestRedisLockAcquireIsExclusive(t *testing.T) {
	store := newMemLockStore()
	lockA, err := NewRedisLock(store, "bata:cron:lock:test", time.Minute)
	if err != nil {
		t.Fatalf("build lock: %v", err)
	}
	lockB, err := NewRedisLock(store, "bata:cron:lock:test", time.Minute)
	if err != nil {
		t.Fatalf("build lock: %v", err)
	}

	held, err := lockA.Acquire(context.Background())
	if err != nil || !held {
		t.Fatalf("expected first acquire to win, held=%v err=%v", held, err)
	}
	held, err = lockB.Acquire(context.Background())
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if held {
		t.Fatal("expected second acquire to lose")
	}
}

func TestRedisLockReleaseOnlyByOwner(t *testing.T) {
	store := newMemLockStore()
	owner, _ := NewRedisLock(store, "bata:cron:lock:test", time.Minute)
	intruder, _ := NewRedisLock(store, "bata:cron:lock:test", time.Minute)

	if held, err := owner.Acquire(context.Background()); err != nil || !held {
		t.Fatalf("owner acquire failed, held=%v err=%v", held, err)
	}

	if err := intruder.Release(context.Background()); err != nil {
		t.Fatalf("non-owner release: %v", err)
	}
	if _, ok := store.data["bata:cron:lock:test"]; !ok {
		t.Fatal("non-owner release must not drop the lease")
	}

	if err := owner.Release(context.Background()); err != nil {
		t.Fatalf("owner release: %v", err)
	}
	if _, ok := store.data["bata:cron:lock:test"]; ok {
		t.Fatal("owner release should drop the lease")
	}
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	store := newMemLockStore()
	lock, _ := NewRedisLock(store, "bata:cron:lock:test", time.Minute)

	if held, err := lock.Acquire(context.Background()); err != nil || !held {
		t.Fatalf("acquire failed, held=%v err=%v", held, err)
	}
	// TTL expiry simulated by the key vanishing.
	delete(store.data, "bata:cron:lock:test")

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release after expiry: %v", err)
	}
}
