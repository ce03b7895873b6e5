package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ceramicnetwork/go-pulse/models"
)

var _ models.KeyValueStore = &MemoryStore{}

type memoryValue struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is a process-local KeyValueStore. It backs tests and single-process development runs.
type MemoryStore struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	strings map[string]memoryValue
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		hashes:  make(map[string]map[string]string),
		strings: make(map[string]memoryValue),
		now:     now,
	}
}

func (m *MemoryStore) HSet(_ context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hash(key)[field] = value
	return nil
}

func (m *MemoryStore) HSetAll(_ context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(fields) == 0 {
		return nil
	}
	hash := m.hash(key)
	for field, value := range fields {
		hash[field] = value
	}
	return nil
}

func (m *MemoryStore) HGet(_ context.Context, key, field string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, found := m.hashes[key][field]
	return value, found, nil
}

func (m *MemoryStore) HDel(_ context.Context, key, field string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hash, found := m.hashes[key]; found {
		delete(hash, field)
		if len(hash) == 0 {
			delete(m.hashes, key)
		}
	}
	return nil
}

func (m *MemoryStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields := make(map[string]string, len(m.hashes[key]))
	for field, value := range m.hashes[key] {
		fields[field] = value
	}
	return fields, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, found := m.live(key); found {
		return entry.value, true, nil
	}
	return "", false, nil
}

func (m *MemoryStore) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryValue{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.strings[key] = entry
	return nil
}

func (m *MemoryStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.strings, key)
	delete(m.hashes, key)
	return nil
}

func (m *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0)
	for key := range m.hashes {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	for key := range m.strings {
		if _, found := m.live(key); found && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) hash(key string) map[string]string {
	hash, found := m.hashes[key]
	if !found {
		hash = make(map[string]string)
		m.hashes[key] = hash
	}
	return hash
}

// live returns the string entry for key, evicting it if it has expired. Callers hold the lock.
func (m *MemoryStore) live(key string) (memoryValue, bool) {
	entry, found := m.strings[key]
	if !found {
		return memoryValue{}, false
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.strings, key)
		return memoryValue{}, false
	}
	return entry, true
}
