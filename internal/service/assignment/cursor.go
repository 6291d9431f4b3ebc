package assignment

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

// CursorStore hands out the monotonically increasing round-robin cursor for
// a scope key. Next must be atomic per scope: two concurrent decisions may
// never observe the same value.
type CursorStore interface {
	Next(ctx context.Context, scopeKey string) (int, error)
}

type MemoryCursorStore struct {
	mu      sync.Mutex
	cursors map[string]int
}

func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{
		cursors: make(map[string]int),
	}
}

func (s *MemoryCursorStore) Next(ctx context.Context, scopeKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cursor := s.cursors[scopeKey]
	s.cursors[scopeKey] = cursor + 1
	return cursor, nil
}

// RedisCursorStore shares the cursor across processes via INCR, so a scaled
// out deployment keeps the rotation fair.
type RedisCursorStore struct {
	client *redis.Client
	prefix string
}

func NewRedisCursorStore(client *redis.Client) *RedisCursorStore {
	return &RedisCursorStore{
		client: client,
		prefix: "assignment:cursor:",
	}
}

func (s *RedisCursorStore) Next(ctx context.Context, scopeKey string) (int, error) {
	val, err := s.client.Incr(ctx, s.prefix+scopeKey).Result()
	if err != nil {
		return 0, fmt.Errorf("cursor incr %s: %w", scopeKey, err)
	}
	// INCR returns the post-increment value; the cursor is the value before.
	return int(val - 1), nil
}
