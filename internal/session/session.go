// Package session stores short-lived values keyed by an opaque token, such
// as the state of an in-flight OAuth handshake.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/starford/lynx/internal/apperr"
)

// Store keeps JSON-encoded values until they expire. Get, Take and Delete of
// a missing or expired key report apperr.ErrNotFound.
type Store interface {
	Put(ctx context.Context, key string, v any, ttl time.Duration) error
	Get(ctx context.Context, key string, v any) error
	// Take is Get followed by Delete, atomically.
	Take(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}

func missing(key string) error {
	return apperr.NotFound("session %q does not exist or has expired", key)
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// Memory is a process-local Store. Expired entries are dropped when they
// are next touched and on every Put.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: map[string]memoryEntry{}, now: time.Now}
}

func (m *Memory) Put(_ context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: encode %q: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = memoryEntry{data: data, expires: now.Add(ttl)}
	return nil
}

func (m *Memory) Get(_ context.Context, key string, v any) error {
	m.mu.Lock()
	data, ok := m.lookup(key)
	m.mu.Unlock()
	if !ok {
		return missing(key)
	}
	return decode(key, data, v)
}

func (m *Memory) Take(_ context.Context, key string, v any) error {
	m.mu.Lock()
	data, ok := m.lookup(key)
	delete(m.entries, key)
	m.mu.Unlock()
	if !ok {
		return missing(key)
	}
	return decode(key, data, v)
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lookup(key); !ok {
		return missing(key)
	}
	delete(m.entries, key)
	return nil
}

// lookup must be called with mu held.
func (m *Memory) lookup(key string) ([]byte, bool) {
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false
	}
	return e.data, true
}

func decode(key string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("session: decode %q: %w", key, err)
	}
	return nil
}
