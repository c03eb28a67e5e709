package otp

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when no live code exists for a phone number.
var ErrNotFound = errors.New("no code issued")

// Store keeps the last-issued code per phone number until it expires.
type Store interface {
	Set(ctx context.Context, phone, code string, ttl time.Duration) error
	Get(ctx context.Context, phone string) (string, error)
	Delete(ctx context.Context, phone string) error
}

type memoryEntry struct {
	code    string
	expires time.Time
}

// MemoryStore is the in-process fallback used when no redis address is
// configured. Good enough for a single instance.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Set(_ context.Context, phone, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[phone] = memoryEntry{code: code, expires: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, phone string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[phone]
	if !ok || time.Now().After(entry.expires) {
		delete(s.entries, phone)
		return "", ErrNotFound
	}
	return entry.code, nil
}

func (s *MemoryStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, phone)
	return nil
}
