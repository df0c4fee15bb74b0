package kvstore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Put(ctx, "pending_upload:b", []byte("two")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, "pending_upload:a", []byte("one")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, "other:x", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, "pending_upload:a", []byte("one-v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := s.Get(ctx, "pending_upload:a")
	if err != nil || string(got) != "one-v2" {
		t.Fatalf("unexpected value %q (%v)", got, err)
	}

	keys, err := s.Keys(ctx, "pending_upload:")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "pending_upload:a" || keys[1] != "pending_upload:b" {
		t.Fatalf("unexpected keys %v", keys)
	}

	if err := s.Delete(ctx, "pending_upload:a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "pending_upload:a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted key to be gone")
	}
	if err := s.Delete(ctx, "never-there"); err != nil {
		t.Fatalf("deleting a missing key should not fail: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	m := NewMemory()
	buf := []byte("abc")
	_ = m.Put(context.Background(), "k", buf)
	buf[0] = 'z'
	got, _ := m.Get(context.Background(), "k")
	if string(got) != "abc" {
		t.Fatalf("store must not alias caller buffers")
	}
}

func TestRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	exerciseStore(t, NewRedis(client))
}

func TestRedisStoreError(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	s.Close()
	defer client.Close()

	store := NewRedis(client)
	if err := store.Put(context.Background(), "k", []byte("v")); err == nil {
		t.Fatalf("expected error from closed redis")
	}
	if _, err := store.Keys(context.Background(), "k"); err == nil {
		t.Fatalf("expected scan error from closed redis")
	}
}
