// Package session provides per-browser-session key/value storage for the
// small set of state that must survive a page reload.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Session storage keys.
const (
	KeySecurityContext = "security-context"
	KeyMasterLink      = "master-link"
	KeySelectedRecords = "selected-records"
	KeyQueryStates     = "query-states"
	KeyColumnLayouts   = "column-layouts"
	KeySidebarOpen     = "sidebar-open"
)

// Storage is the storage scoped to a single session. Values are opaque bytes;
// callers encode them as JSON.
type Storage interface {
	// Get returns the value stored under key. found is false when the key is
	// absent or has expired.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// Backend hands out the Storage for a session id.
type Backend interface {
	Session(id string) Storage
}

// ErrNoSession is returned when a storage is requested without a session id.
var ErrNoSession = errors.New("session: empty session id")

// FormatKey builds the backend key "session:{id}:{key}".
func FormatKey(sessionID, key string) string {
	return fmt.Sprintf("session:%s:%s", sessionID, key)
}

// --- MemoryBackend ---

// MemoryBackend keeps every session in process memory with a sliding TTL.
// Suitable for testing and single-instance deployments.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
	ttl     time.Duration
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryBackend creates an in-memory backend. A zero ttl never expires.
func NewMemoryBackend(ttl time.Duration) *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]*memEntry),
		ttl:     ttl,
	}
}

// Session returns the storage for the given session id.
func (b *MemoryBackend) Session(id string) Storage {
	return &memoryStorage{backend: b, id: id}
}

// Len returns the number of entries across all sessions (including expired
// ones). For testing.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

func (b *MemoryBackend) expiry() time.Time {
	if b.ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(b.ttl)
}

type memoryStorage struct {
	backend *MemoryBackend
	id      string
}

func (s *memoryStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.id == "" {
		return nil, false, ErrNoSession
	}
	k := FormatKey(s.id, key)

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	entry, ok := s.backend.entries[k]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(s.backend.entries, k)
		return nil, false, nil
	}
	entry.expiresAt = s.backend.expiry()

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true, nil
}

func (s *memoryStorage) Set(_ context.Context, key string, value []byte) error {
	if s.id == "" {
		return ErrNoSession
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	s.backend.entries[FormatKey(s.id, key)] = &memEntry{
		value:     stored,
		expiresAt: s.backend.expiry(),
	}
	return nil
}

func (s *memoryStorage) Remove(_ context.Context, key string) error {
	if s.id == "" {
		return ErrNoSession
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	delete(s.backend.entries, FormatKey(s.id, key))
	return nil
}

// --- RedisBackend ---

// RedisBackend stores sessions in Redis. Every read or write of a key
// extends its TTL.
type RedisBackend struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisBackend creates a Redis-backed session backend.
func NewRedisBackend(client redis.Cmdable, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

// Session returns the storage for the given session id.
func (b *RedisBackend) Session(id string) Storage {
	return &redisStorage{backend: b, id: id}
}

type redisStorage struct {
	backend *RedisBackend
	id      string
}

func (s *redisStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.id == "" {
		return nil, false, ErrNoSession
	}
	k := FormatKey(s.id, key)

	raw, err := s.backend.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", k, err)
	}

	if s.backend.ttl > 0 {
		if err := s.backend.client.Expire(ctx, k, s.backend.ttl).Err(); err != nil {
			return nil, false, fmt.Errorf("redis expire %q: %w", k, err)
		}
	}
	return raw, true, nil
}

func (s *redisStorage) Set(ctx context.Context, key string, value []byte) error {
	if s.id == "" {
		return ErrNoSession
	}
	k := FormatKey(s.id, key)
	if err := s.backend.client.Set(ctx, k, value, s.backend.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", k, err)
	}
	return nil
}

func (s *redisStorage) Remove(ctx context.Context, key string) error {
	if s.id == "" {
		return ErrNoSession
	}
	k := FormatKey(s.id, key)
	if err := s.backend.client.Del(ctx, k).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", k, err)
	}
	return nil
}
