package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryBackend keeps sessions in process memory. Suitable for a single replica and
// for tests.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// NewMemoryBackend constructs an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: map[string]memoryEntry{}, now: time.Now}
}

// Load implements Backend.
func (b *MemoryBackend) Load(_ context.Context, id string) (*Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !b.now().Before(entry.expiresAt) {
		delete(b.entries, id)
		return nil, ErrNotFound
	}
	s := entry.session
	return &s, nil
}

// Save implements Backend.
func (b *MemoryBackend) Save(_ context.Context, s *Session, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry := memoryEntry{session: *s}
	if ttl > 0 {
		entry.expiresAt = b.now().Add(ttl)
	}
	b.entries[s.ID] = entry
	return nil
}

// Delete implements Backend.
func (b *MemoryBackend) Delete(_ context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.entries[id]
	if !ok {
		return false, nil
	}
	delete(b.entries, id)
	return entry.expiresAt.IsZero() || b.now().Before(entry.expiresAt), nil
}

// RedisBackend stores sessions as JSON values with a TTL.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend constructs a redis backend. Keys are prefixed with prefix.
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "crm:session:"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) key(id string) string {
	return b.prefix + id
}

// Load implements Backend.
func (b *RedisBackend) Load(ctx context.Context, id string) (*Session, error) {
	raw, err := b.client.Get(ctx, b.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}

// Save implements Backend.
func (b *RedisBackend) Save(ctx context.Context, s *Session, ttl time.Duration) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := b.client.Set(ctx, b.key(s.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Delete implements Backend.
func (b *RedisBackend) Delete(ctx context.Context, id string) (bool, error) {
	n, err := b.client.Del(ctx, b.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis delete session: %w", err)
	}
	return n > 0, nil
}
