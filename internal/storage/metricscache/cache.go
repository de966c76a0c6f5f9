// Package metricscache caches computed balances and performance metrics.
//
// Values are stored JSON-encoded so the in-memory and redis backends behave
// the same. Entries are dropped explicitly by the owner on invalidation
// events; the TTL only bounds staleness when an event is missed.
package metricscache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Memory process-local cache.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemory creates a cache whose entries expire after ttl. Zero ttl never expires.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Get decodes the cached value into dst and reports whether it was found.
func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if entry.expired(m.now()) {
		m.deleteExpired(key)
		return false, nil
	}

	if err := json.Unmarshal(entry.payload, dst); err != nil {
		return false, errors.Wrapf(err, "decode cached %s", key)
	}

	return true, nil
}

// deleteExpired removes key only if the entry stored under it is still
// expired; a concurrent Set may have replaced it since the read.
func (m *Memory) deleteExpired(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[key]; ok && entry.expired(m.now()) {
		delete(m.entries, key)
	}
}

// Set stores value under key, replacing any previous entry.
func (m *Memory) Set(_ context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s for cache", key)
	}

	entry := memoryEntry{payload: payload}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()

	return nil
}

// DeletePrefix drops every entry whose key starts with prefix.
func (m *Memory) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}

	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
