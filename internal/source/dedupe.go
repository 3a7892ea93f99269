package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper is a set of already-seen keys. Add reports whether key was new.
// Implementations are safe for concurrent use.
type Deduper interface {
	Add(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context) error
}

// MemorySet is a process-local Deduper.
type MemorySet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemorySet() *MemorySet {
	return &MemorySet{seen: make(map[string]struct{})}
}

func (s *MemorySet) Add(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = struct{}{}
	return true, nil
}

func (s *MemorySet) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.seen)
	return nil
}

func (s *MemorySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// RedisSet keeps the seen keys in a Redis set. A govmap sweep resets the set when it
// starts, so only one collector may sweep per key at a time.
type RedisSet struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisSet(client *redis.Client, key string, ttl time.Duration) *RedisSet {
	return &RedisSet{client: client, key: key, ttl: ttl}
}

func (s *RedisSet) Add(ctx context.Context, key string) (bool, error) {
	n, err := s.client.SAdd(ctx, s.key, key).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe: failed to add %q: %w", key, err)
	}
	if n == 1 && s.ttl > 0 {
		if err := s.client.Expire(ctx, s.key, s.ttl).Err(); err != nil {
			return true, fmt.Errorf("dedupe: failed to set expiry: %w", err)
		}
	}
	return n == 1, nil
}

func (s *RedisSet) Reset(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("dedupe: failed to reset %s: %w", s.key, err)
	}
	return nil
}
